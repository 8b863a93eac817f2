package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeSessionSettling   = "SESSION_SETTLING"
	ErrCodeIdentityRejected  = "IDENTITY_REJECTED"
	ErrCodeUpstreamFailed    = "UPSTREAM_FAILED"
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeInvalidImageURL   = "INVALID_IMAGE_URL"
	ErrCodeSSRFBlocked       = "SSRF_BLOCKED"
	ErrCodeItemNotFound      = "ITEM_NOT_FOUND"
)

// IdentityError はIDプロバイダーによる拒否を表す。
// 自動リトライは行わず、ブロッキング通知としてユーザーに提示する。
type IdentityError struct {
	Code    string // プロバイダー定義のコード（EMAIL_EXISTS, WEAK_PASSWORD等）
	Message string
}

// Error はerrorインターフェースを実装する。
func (e *IdentityError) Error() string {
	return fmt.Sprintf("identity provider rejected: %s (%s)", e.Code, e.Message)
}

// ErrNoActiveIdentity はアクティブなアイデンティティが無い状態での
// プロフィール更新要求に対するエラー。
var ErrNoActiveIdentity = &IdentityError{
	Code:    "NO_ACTIVE_IDENTITY",
	Message: "アクティブなサインイン状態がありません",
}

// TokenExchangeError は/jwtトークン交換の失敗を表す。
// フェイルクローズで処理され、ブロッキングエラーとしては提示しない（診断用にログのみ）。
type TokenExchangeError struct {
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed: %v", e.Err)
}

// Unwrap はラップされたエラーを返す。
func (e *TokenExchangeError) Unwrap() error { return e.Err }

// UnauthorizedError は保護された呼び出しに対する401/403応答を表す。
// 強制サインアウトとリダイレクトを必ず伴い、呼び出し元へもそのまま伝播される。
type UnauthorizedError struct {
	Status int
}

// Error はerrorインターフェースを実装する。
func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("upstream rejected authorization with status %d", e.Status)
}

// UpstreamError は上流APIのCRUD操作におけるネットワーク・サーバーエラーを表す。
// 呼び出し元でローカルに提示し、表示済み状態は変更しない。自動リトライは行わない。
type UpstreamError struct {
	Op     string // 失敗した操作（例: "menu page fetch"）
	Status int    // HTTPステータス（ネットワークエラー時は0）
	Err    error
}

// Error はerrorインターフェースを実装する。
func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s failed with status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("upstream %s failed: %v", e.Op, e.Err)
}

// Unwrap はラップされたエラーを返す。
func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUnauthorized はエラーが認可拒否（401/403）かどうかを判定する。
func IsUnauthorized(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue)
}

// NewUnauthorizedAPIError は未認証エラーを生成する。
func NewUnauthorizedAPIError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "サインインしてください。",
	}
}

// NewForbiddenAPIError は権限不足エラーを生成する。
func NewForbiddenAPIError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作には管理者権限が必要です。",
		Category: "auth",
		Action:   "管理者アカウントでサインインしてください。",
	}
}

// NewSessionSettlingAPIError はトークン交換未確定中のプレースホルダー応答を生成する。
func NewSessionSettlingAPIError() *APIError {
	return &APIError{
		Code:     ErrCodeSessionSettling,
		Message:  "セッションの確立処理中です。",
		Category: "auth",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewIdentityRejectedAPIError はIDプロバイダー拒否エラーを生成する。
func NewIdentityRejectedAPIError(identityErr *IdentityError) *APIError {
	return &APIError{
		Code:     ErrCodeIdentityRejected,
		Message:  fmt.Sprintf("サインイン処理が拒否されました: %s", identityErr.Code),
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewUpstreamFailedAPIError は上流API呼び出し失敗エラーを生成する。
func NewUpstreamFailedAPIError(op string) *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  fmt.Sprintf("サーバーとの通信に失敗しました: %s", op),
		Category: "upstream",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidInputAPIError は入力検証エラーを生成する。
func NewInvalidInputAPIError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力内容が不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidImageURLAPIError は画像URL検証エラーを生成する。
func NewInvalidImageURLAPIError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImageURL,
		Message:  fmt.Sprintf("画像URLが不正です: %s", reason),
		Category: "validation",
		Action:   "http:// または https:// で始まる公開画像URLを指定してください。",
	}
}

// NewSSRFBlockedAPIError はSSRFブロックエラーを生成する。
func NewSSRFBlockedAPIError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを指定してください。プライベートIPへのアクセスは許可されていません。",
	}
}

// NewItemNotFoundAPIError はメニュー項目未検出エラーを生成する。
func NewItemNotFoundAPIError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定されたメニュー項目が見つかりません: %s", itemID),
		Category: "upstream",
		Action:   "一覧を更新してから再度お試しください。",
	}
}
