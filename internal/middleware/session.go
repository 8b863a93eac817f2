// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/keisuke/tabegoro/internal/model"
	"github.com/keisuke/tabegoro/internal/upstream"
)

// SessionCookieName はセッションIDを保持するHTTP Only Cookieの名前。
const SessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// SessionFinder はセッションの検索に必要なインターフェース。
// session.Serviceの部分集合として定義する。
type SessionFinder interface {
	Current(ctx context.Context, sessionID string) (*model.Session, error)
}

// NewSessionLoader はHTTP Only Cookieからセッションを読み取り、
// リクエストコンテキストに注入するミドルウェアを返す。
// ここでは拒否しない: 未認証リクエストもそのまま通し、サインイン要否の
// 判定はルートガード側で行う。
func NewSessionLoader(finder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			session, err := finder.Current(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to load session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if session == nil {
				// 期限切れ・破棄済みCookieは未認証として通す
				next.ServeHTTP(w, r)
				return
			}

			ctx := ContextWithSession(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// 未認証の場合はnilを返す。
func SessionFromContext(ctx context.Context) *model.Session {
	session, _ := ctx.Value(sessionContextKey).(*model.Session)
	return session
}

// IdentityFromContext はリクエストコンテキストからアイデンティティを取得する。
// セッションが無い場合はエラーを返す。ガード通過後のハンドラーで使用する。
func IdentityFromContext(ctx context.Context) (*model.Identity, error) {
	session := SessionFromContext(ctx)
	if session == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return session.Identity(), nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// セキュアクライアント用のセッションIDも同時に伝播させる。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	ctx = context.WithValue(ctx, sessionContextKey, session)
	return upstream.WithSessionID(ctx, session.ID)
}
