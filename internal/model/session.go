package model

import "time"

// TokenState はセッショントークン交換の状態を表す。
// pending の間は依存コンポーネント（ロールリゾルバ、ルートガード）は
// アイデンティティを確定情報として扱ってはならない。
type TokenState string

const (
	// TokenStatePending はトークン交換が未完了の状態。
	TokenStatePending TokenState = "pending"
	// TokenStateIssued はトークン交換が成功し資格情報が保存された状態。
	TokenStateIssued TokenState = "issued"
	// TokenStateFailed はトークン交換が失敗しフェイルクローズした状態。
	// IDプロバイダー上はサインイン済みでも、保護された呼び出しには未認証として扱う。
	TokenStateFailed TokenState = "failed"
)

// Settled はトークン交換が完了（成功または失敗）しているかを返す。
func (s TokenState) Settled() bool {
	return s == TokenStateIssued || s == TokenStateFailed
}

// Session はブラウザセッションを表す。
// リロードをまたいで生存させるためpostgresに永続化する。
type Session struct {
	ID          string
	UID         string // IDプロバイダーのユーザーID
	Email       string
	DisplayName string
	PhotoURL    string
	TokenState  TokenState
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// Identity はセッションに紐づくアイデンティティを返す。
func (s *Session) Identity() *Identity {
	if s == nil {
		return nil
	}
	return &Identity{
		UID:         s.UID,
		Email:       s.Email,
		DisplayName: s.DisplayName,
		PhotoURL:    s.PhotoURL,
	}
}
