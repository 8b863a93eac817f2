package upstream

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// CredentialSource は発信リクエストに添付するトークンの読み取り元。
// repository.CredentialRepositoryの部分集合として定義する。
type CredentialSource interface {
	Get(ctx context.Context, sessionID string) (string, error)
}

// SessionTerminator は認可拒否時の強制サインアウトの実行先。
// セッションマネージャーが実装する。
type SessionTerminator interface {
	ForceSignOut(ctx context.Context, sessionID string) error
}

// bearerTransport は保護クライアントのインターセプターペア。
//
// 発信側: 資格情報ストアにトークンがあればベアラーヘッダーとして添付する。
// トークンが無くてもエラーにはせず、未認証のまま送信してサーバーに判断を委ねる。
// 期限切れトークンは黙って添付せず、欠落として扱う。
//
// 受信側: 401/403応答で強制サインアウトを発火し、サインイン画面への遷移を
// シグナルする（元のエラーは呼び出し元へそのまま伝播される）。
// 同一セッションの複数リクエストが同時に401を受けても、サインアウトは
// singleflightにより1回だけ実行される。
type bearerTransport struct {
	base       http.RoundTripper
	creds      CredentialSource
	terminator SessionTerminator
	logger     *slog.Logger
	group      singleflight.Group
	now        func() time.Time
}

func newBearerTransport(creds CredentialSource, terminator SessionTerminator, logger *slog.Logger) *bearerTransport {
	return &bearerTransport{
		base:       http.DefaultTransport,
		creds:      creds,
		terminator: terminator,
		logger:     logger,
		now:        time.Now,
	}
}

// RoundTrip はhttp.RoundTripperを実装する。
func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	sessionID, hasSession := SessionIDFromContext(req.Context())

	if hasSession {
		token, err := t.creds.Get(req.Context(), sessionID)
		if err != nil {
			// 読み取り失敗はトークン欠落として扱い、未認証のまま送信する
			t.logger.Warn("credential read failed, sending unauthenticated",
				slog.String("error", err.Error()),
			)
		} else if token != "" {
			if t.isStale(token) {
				t.logger.Warn("refusing to attach stale bearer token",
					slog.String("path", req.URL.Path),
				)
			} else {
				req = req.Clone(req.Context())
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) && hasSession {
		t.forceSignOut(req.Context(), sessionID, resp.StatusCode)
	}

	return resp, nil
}

// forceSignOut はセッションの強制サインアウトを1回だけ実行する。
// 同一セッションで同時に複数の401/403が返った場合もサインアウトの嵐にはしない。
func (t *bearerTransport) forceSignOut(ctx context.Context, sessionID string, status int) {
	_, _, _ = t.group.Do(sessionID, func() (any, error) {
		t.logger.Info("upstream rejected authorization, forcing sign-out",
			slog.Int("status", status),
		)
		// リクエストのキャンセルでサインアウトが中断されないよう切り離す
		if err := t.terminator.ForceSignOut(context.WithoutCancel(ctx), sessionID); err != nil {
			t.logger.Error("forced sign-out failed",
				slog.String("error", err.Error()),
			)
		}
		return nil, nil
	})
}

// isStale はトークンがJWTとして期限切れかどうかを判定する。
// JWTでないトークンや有効期限クレームを持たないトークンは添付可能として扱う
// （トークンの形式検証はサーバーの責務）。
func (t *bearerTransport) isStale(token string) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(t.now())
}

// compile-time interface check
var _ http.RoundTripper = (*bearerTransport)(nil)
