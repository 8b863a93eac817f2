package model

// Payment は決済記録を表す。上流APIが所有する。
type Payment struct {
	ID            string   `json:"_id"`
	Email         string   `json:"email"`
	Price         float64  `json:"price"`
	TransactionID string   `json:"transactionId"`
	Date          string   `json:"date"`
	CartIDs       []string `json:"cartIds"`
	MenuIDs       []string `json:"menuItemIds"`
	Status        string   `json:"status"`
}

// Review はユーザーのレビュー投稿を表す。
// Details は保存前にサニタイズ済みであること。
type Review struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Rating  float64 `json:"rating"`
	Details string  `json:"details"`
}

// AdminStats は管理ダッシュボードの集計値を表す。
type AdminStats struct {
	Revenue   float64 `json:"revenue"`
	Users     int     `json:"users"`
	MenuItems int     `json:"menuItems"`
	Orders    int     `json:"orders"`
}

// OrderStat はカテゴリ別の注文集計を表す。
type OrderStat struct {
	Category string  `json:"category"`
	Quantity int     `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

// UserStats はユーザーホームの集計値を表す。
type UserStats struct {
	Orders   int `json:"orders"`
	Reviews  int `json:"reviews"`
	Bookings int `json:"bookings"`
	Payments int `json:"payments"`
}
