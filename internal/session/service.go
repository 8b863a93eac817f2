// Package session はブラウザセッションのライフサイクル管理を提供する。
// IDプロバイダーでのサインイン・サインアップ、トークン交換、
// 強制サインアウトまでを一つのサービスに束ねる。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/keisuke/tabegoro/internal/identity"
	"github.com/keisuke/tabegoro/internal/model"
	"github.com/keisuke/tabegoro/internal/repository"
	"github.com/keisuke/tabegoro/internal/upstream"
)

// コンパイル時チェック
var _ upstream.SessionTerminator = (*Service)(nil)

// TokenExchanger はメールアドレスをセッショントークンへ交換するインターフェース。
// 交換は認証前に行われるため、公開クライアントが実装する。
type TokenExchanger interface {
	ExchangeToken(ctx context.Context, email string) (string, error)
}

// TokenObserver はトークン交換と強制サインアウトの観測フック。メトリクス収集用。
type TokenObserver interface {
	RecordTokenExchange(outcome string)
	RecordForcedSignOut()
}

// ViewEvictor はセッション終了時に破棄すべきセッション付随状態の破棄先。
// 管理ビューのストアが実装する。
type ViewEvictor interface {
	Evict(sessionID string)
}

// Service はセッションのライフサイクルを管理するサービス層。
type Service struct {
	provider    identity.Provider
	sessionRepo repository.SessionRepository
	credRepo    repository.CredentialRepository
	exchanger   TokenExchanger
	maxAge      time.Duration
	observer    TokenObserver
	evictor     ViewEvictor

	// テストからの差し替え用
	newID func() string
	now   func() time.Time
	// asyncが真の場合、トークン交換はサインイン応答をブロックしない
	async bool
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	provider identity.Provider,
	sessionRepo repository.SessionRepository,
	credRepo repository.CredentialRepository,
	exchanger TokenExchanger,
	maxAge time.Duration,
) *Service {
	return &Service{
		provider:    provider,
		sessionRepo: sessionRepo,
		credRepo:    credRepo,
		exchanger:   exchanger,
		maxAge:      maxAge,
		newID:       uuid.NewString,
		now:         time.Now,
		async:       true,
	}
}

// SetObserver はメトリクス観測フックを設定する。nilのままなら記録しない。
func (s *Service) SetObserver(o TokenObserver) {
	s.observer = o
}

// SetEvictor はセッション付随状態の破棄先を設定する。nilのままなら破棄しない。
// 明示的なサインアウトはハンドラー側で破棄するため、ここからは
// 強制サインアウト経路のみが呼び出す。
func (s *Service) SetEvictor(e ViewEvictor) {
	s.evictor = e
}

func (s *Service) recordExchange(outcome string) {
	if s.observer != nil {
		s.observer.RecordTokenExchange(outcome)
	}
}

// SignUp はアカウントを作成し、新しいセッションを確立する。
// 表示名・写真URLが指定されていればプロバイダー側のプロフィールにも反映する。
func (s *Service) SignUp(ctx context.Context, email, password, displayName, photoURL string) (*model.Session, error) {
	// 1. IDプロバイダーでアカウント作成
	ident, err := s.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}

	// 2. プロフィール反映（失敗してもサインアップ自体は成立させる）
	if displayName != "" || photoURL != "" {
		updated, err := s.provider.UpdateProfile(ctx, ident.UID, displayName, photoURL)
		if err != nil {
			slog.Warn("サインアップ直後のプロフィール更新に失敗しました",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
		} else {
			ident = updated
		}
	}

	// 3. セッション確立
	return s.establish(ctx, ident)
}

// SignIn はメールアドレスとパスワードでサインインし、新しいセッションを確立する。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	ident, err := s.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, ident)
}

// establish はアイデンティティからセッションを作成し、トークン交換を開始する。
// 交換が完了するまでセッションは pending 状態で永続化される。
func (s *Service) establish(ctx context.Context, ident *model.Identity) (*model.Session, error) {
	now := s.now()
	sess := &model.Session{
		ID:          s.newID(),
		UID:         ident.UID,
		Email:       ident.Email,
		DisplayName: ident.DisplayName,
		PhotoURL:    ident.PhotoURL,
		TokenState:  model.TokenStatePending,
		ExpiresAt:   now.Add(s.maxAge),
		CreatedAt:   now,
	}
	if err := s.sessionRepo.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("セッションの作成に失敗しました: %w", err)
	}

	if s.async {
		// リクエストのキャンセルに巻き込まれないよう切り離したコンテキストで交換する
		go s.settleToken(context.WithoutCancel(ctx), sess.ID, sess.Email)
	} else {
		s.settleToken(ctx, sess.ID, sess.Email)
		// 同期モードでは確定後の状態を呼び出し元へ返す
		settled, err := s.sessionRepo.FindByID(ctx, sess.ID)
		if err == nil && settled != nil {
			return settled, nil
		}
	}
	return sess, nil
}

// settleToken はトークン交換を実行し、結果に応じてセッション状態を確定させる。
// 失敗はフェイルクローズ: 資格情報を残さず failed 状態へ落とし、ログのみ残す。
func (s *Service) settleToken(ctx context.Context, sessionID, email string) {
	token, err := s.exchanger.ExchangeToken(ctx, email)
	if err != nil || token == "" {
		if err == nil {
			err = fmt.Errorf("空のトークンが返されました")
		}
		exchErr := &model.TokenExchangeError{Err: err}
		slog.Warn("トークン交換に失敗しました。フェイルクローズします",
			slog.String("session_id", sessionID),
			slog.String("error", exchErr.Error()),
		)
		if err := s.credRepo.Clear(ctx, sessionID); err != nil {
			slog.Error("資格情報のクリアに失敗しました",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
		if err := s.sessionRepo.UpdateTokenState(ctx, sessionID, model.TokenStateFailed); err != nil {
			slog.Error("トークン状態の更新に失敗しました",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
		s.recordExchange("failed")
		return
	}

	// 保存 → 状態確定の順。逆順だと issued なのにトークンが無い窓が生じる。
	if err := s.credRepo.Set(ctx, sessionID, token); err != nil {
		slog.Error("資格情報の保存に失敗しました。フェイルクローズします",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		if err := s.sessionRepo.UpdateTokenState(ctx, sessionID, model.TokenStateFailed); err != nil {
			slog.Error("トークン状態の更新に失敗しました",
				slog.String("session_id", sessionID),
				slog.String("error", err.Error()),
			)
		}
		s.recordExchange("failed")
		return
	}
	if err := s.sessionRepo.UpdateTokenState(ctx, sessionID, model.TokenStateIssued); err != nil {
		slog.Error("トークン状態の更新に失敗しました",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}
	s.recordExchange("issued")
}

// SignOut はセッションを破棄し、保存済みトークンを削除する。
// 資格情報 → セッションの順で消す。セッション行の削除はCASCADEで資格情報も消すが、
// 途中失敗時にトークンだけが残る窓を作らない。
func (s *Service) SignOut(ctx context.Context, sessionID string) error {
	if err := s.credRepo.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("資格情報の削除に失敗しました: %w", err)
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}
	slog.Info("サインアウトしました",
		slog.String("session_id", sessionID),
	)
	return nil
}

// ForceSignOut は保護された呼び出しが401/403で拒否された際の強制サインアウト。
// upstream.SessionTerminator を実装する。通常のSignOutと同じ経路で破棄する。
func (s *Service) ForceSignOut(ctx context.Context, sessionID string) error {
	slog.Warn("上流からの認証拒否により強制サインアウトします",
		slog.String("session_id", sessionID),
	)
	if s.observer != nil {
		s.observer.RecordForcedSignOut()
	}
	if s.evictor != nil {
		s.evictor.Evict(sessionID)
	}
	return s.SignOut(ctx, sessionID)
}

// Current は指定IDの有効なセッションを返す。存在しない・期限切れの場合はnilを返す。
func (s *Service) Current(ctx context.Context, sessionID string) (*model.Session, error) {
	sess, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	return sess, nil
}

// UpdateProfile はアクティブなセッションのプロフィールを更新する。
// IDプロバイダー側を先に更新し、成功した場合のみセッションへ反映する。
// アクティブなセッションが無い場合は model.ErrNoActiveIdentity を返す。
func (s *Service) UpdateProfile(ctx context.Context, sessionID, displayName, photoURL string) (*model.Session, error) {
	sess, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("セッションの取得に失敗しました: %w", err)
	}
	if sess == nil {
		return nil, model.ErrNoActiveIdentity
	}

	ident, err := s.provider.UpdateProfile(ctx, sess.UID, displayName, photoURL)
	if err != nil {
		return nil, err
	}

	if err := s.sessionRepo.UpdateProfile(ctx, sessionID, ident.DisplayName, ident.PhotoURL); err != nil {
		return nil, fmt.Errorf("セッションのプロフィール更新に失敗しました: %w", err)
	}
	sess.DisplayName = ident.DisplayName
	sess.PhotoURL = ident.PhotoURL
	return sess, nil
}
