// Package role は管理者権限の解決を提供する。
// 権限は三値（未解決・管理者・非管理者）で表現し、トークン交換が
// 確定するまでは問い合わせ自体を抑制する。
package role

import (
	"context"
	"log/slog"
	"sync"

	"github.com/keisuke/tabegoro/internal/model"
)

// State は権限解決の状態を表す。
// Known が偽の間は「管理者ではない」と「まだ分からない」を区別する。
// 二値に潰すと未解決を非管理者として扱ってしまい、設定済み管理者が
// 読み込み中に一般画面へ誤誘導される。
type State struct {
	Known bool
	Admin bool
}

// Unresolved は未解決状態を返す。
func Unresolved() State { return State{} }

// Resolved は解決済み状態を返す。
func Resolved(admin bool) State { return State{Known: true, Admin: admin} }

// AdminChecker は管理者権限の問い合わせインターフェース。
// セキュアクライアントが実装する。
type AdminChecker interface {
	CheckAdmin(ctx context.Context, email string) (bool, error)
}

// Resolver はセッションのアイデンティティから管理者権限を解決する。
// 成功した結果のみメールアドレス単位でキャッシュする。
type Resolver struct {
	checker AdminChecker

	mu    sync.Mutex
	cache map[string]bool
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(checker AdminChecker) *Resolver {
	return &Resolver{
		checker: checker,
		cache:   make(map[string]bool),
	}
}

// Resolve はセッションの管理者権限を解決する。
//   - セッションが無い、メールアドレスが無い、トークン交換が未確定の
//     いずれかの場合は問い合わせを行わず Unresolved を返す。
//   - 問い合わせが失敗した場合はフェイルクローズで Resolved(false) を返すが、
//     キャッシュには残さない（次回は再問い合わせする）。
func (r *Resolver) Resolve(ctx context.Context, sess *model.Session) State {
	if sess == nil || sess.Email == "" || !sess.TokenState.Settled() {
		return Unresolved()
	}

	r.mu.Lock()
	if admin, ok := r.cache[sess.Email]; ok {
		r.mu.Unlock()
		return Resolved(admin)
	}
	r.mu.Unlock()

	admin, err := r.checker.CheckAdmin(ctx, sess.Email)
	if err != nil {
		slog.Warn("管理者権限の問い合わせに失敗しました。非管理者として扱います",
			slog.String("email", sess.Email),
			slog.String("error", err.Error()),
		)
		return Resolved(false)
	}

	r.mu.Lock()
	r.cache[sess.Email] = admin
	r.mu.Unlock()
	return Resolved(admin)
}

// Invalidate は指定メールアドレスのキャッシュを破棄する。
// 権限変更の反映やサインアウト時に呼び出す。
func (r *Resolver) Invalidate(email string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, email)
}
