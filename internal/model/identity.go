// Package model はドメインモデルを定義する。
package model

// Identity はIDプロバイダーが発行したサインイン済みユーザーのプロフィールを表す。
// IDプロバイダーが所有するデータであり、本システムからは表示名・写真の更新以外は読み取り専用。
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}
