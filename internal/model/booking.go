package model

// BookingStatus は予約の処理状態を表す。
type BookingStatus string

const (
	// BookingStatusPending は未処理の予約状態。
	BookingStatusPending BookingStatus = "pending"
	// BookingStatusConfirmed は承認済みの予約状態。
	BookingStatusConfirmed BookingStatus = "confirmed"
	// BookingStatusCancelled はキャンセル済みの予約状態。
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking はテーブル予約を表す。上流APIが所有する。
type Booking struct {
	ID     string        `json:"_id"`
	Email  string        `json:"email"`
	Name   string        `json:"name"`
	Phone  string        `json:"phone"`
	Date   string        `json:"date"` // YYYY-MM-DD
	Time   string        `json:"time"` // HH:MM
	Guests int           `json:"guests"`
	Status BookingStatus `json:"status"`
}

// NewBooking は予約作成リクエストのペイロードを表す。
type NewBooking struct {
	Email  string `json:"email"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Date   string `json:"date"`
	Time   string `json:"time"`
	Guests int    `json:"guests"`
}

// CartEntry はカート内の1件を表す。メニュー項目への参照とユーザーのメールを持つ。
type CartEntry struct {
	ID       string  `json:"_id"`
	MenuID   string  `json:"menuId"`
	Email    string  `json:"email"`
	Name     string  `json:"name"`
	Image    string  `json:"image"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}
