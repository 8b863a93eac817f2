package model

// UserRole はユーザーの権限区分を表す。
type UserRole string

const (
	// UserRoleAdmin は管理者権限。
	UserRoleAdmin UserRole = "admin"
	// UserRoleUser は一般ユーザー権限。
	UserRoleUser UserRole = "user"
)

// User は上流APIが保持するユーザー記録を表す。
// 権限フラグ（RoleFlag）の正は上流サーバー側にあり、本システムはメモリ上でのみキャッシュする。
type User struct {
	ID    string   `json:"_id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Role  UserRole `json:"role"`
}

// NewUser はユーザー初期登録（サインアップブートストラップ）のペイロードを表す。
type NewUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Photo string `json:"photo,omitempty"`
}
