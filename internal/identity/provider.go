// Package identity は外部IDプロバイダーとの連携を提供する。
package identity

import (
	"context"

	"github.com/keisuke/tabegoro/internal/model"
)

// Provider はIDプロバイダーのインターフェース。
// 失敗はすべて *model.IdentityError として返し、自動リトライは行わない。
type Provider interface {
	// SignUp はメールアドレスとパスワードでアカウントを作成する。
	// 重複メール・弱いパスワード・不正なメールはIdentityErrorで失敗する。
	SignUp(ctx context.Context, email, password string) (*model.Identity, error)

	// SignInWithPassword はメールアドレスとパスワードでサインインする。
	// 資格情報不一致はIdentityErrorで失敗する。
	SignInWithPassword(ctx context.Context, email, password string) (*model.Identity, error)

	// UpdateProfile は指定UIDのアカウントの表示名・写真URLを更新する。
	UpdateProfile(ctx context.Context, uid, displayName, photoURL string) (*model.Identity, error)
}
