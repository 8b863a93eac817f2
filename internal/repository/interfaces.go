// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/keisuke/tabegoro/internal/model"
)

// SessionRepository はブラウザセッションの永続化インターフェース。
// セッションはリロードをまたいで生存する必要があるためpostgresに保存する。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// UpdateProfile はセッションに表示名・写真URLを反映する。
	UpdateProfile(ctx context.Context, id, displayName, photoURL string) error
	// UpdateTokenState はトークン交換状態を更新する。
	UpdateTokenState(ctx context.Context, id string, state model.TokenState) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// CredentialRepository はセッショントークン（ベアラー資格情報）の永続化インターフェース。
// 書き込みはセッションマネージャーと強制サインアウト経路のみに許可される。
// トークンの形式検証は行わない（検証はサーバーの責務）。
type CredentialRepository interface {
	// Set はトークンを固定キー名で永続化する。既存の値は上書きされる。
	Set(ctx context.Context, sessionID, token string) error
	// Get は保存済みトークンを返す。未保存の場合は空文字列を返す（エラーではない）。
	Get(ctx context.Context, sessionID string) (string, error)
	// Clear は保存済みトークンを削除する。未保存でもエラーにしない。
	Clear(ctx context.Context, sessionID string) error
}
