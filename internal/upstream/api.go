package upstream

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/keisuke/tabegoro/internal/model"
)

// --- 認証・権限 ---

// ExchangeToken はメールアドレスをセッショントークンに交換する。
// POST /jwt {email} → {token}
// 公開クライアントから呼び出すこと（交換前はトークンが存在しない）。
func (c *Client) ExchangeToken(ctx context.Context, email string) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/jwt", nil, map[string]string{"email": email}, &resp, "token exchange"); err != nil {
		return "", err
	}
	return resp.Token, nil
}

// CheckAdmin は指定メールアドレスが管理者権限を持つかを問い合わせる。
// GET /users/admin/{email} → {admin}
func (c *Client) CheckAdmin(ctx context.Context, email string) (bool, error) {
	var resp struct {
		Admin bool `json:"admin"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/admin/"+url.PathEscape(email), nil, nil, &resp, "admin check"); err != nil {
		return false, err
	}
	return resp.Admin, nil
}

// --- メニュー ---

// FetchMenuPage はメニューコレクションの1ページを取得する。
// GET /menu?page=&size= → {result, count}
func (c *Client) FetchMenuPage(ctx context.Context, page, size int) (*model.MenuPage, error) {
	q := url.Values{
		"page": {strconv.Itoa(page)},
		"size": {strconv.Itoa(size)},
	}
	var resp struct {
		Result []model.MenuItem `json:"result"`
		Count  int              `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/menu", q, nil, &resp, "menu page fetch"); err != nil {
		return nil, err
	}
	return &model.MenuPage{
		Items:      resp.Result,
		TotalCount: resp.Count,
		PageIndex:  page,
		PageSize:   size,
	}, nil
}

// FetchAllMenu は全メニュー項目を取得する。公開エンドポイント。
// GET /menu-all
func (c *Client) FetchAllMenu(ctx context.Context) ([]model.MenuItem, error) {
	var items []model.MenuItem
	if err := c.do(ctx, http.MethodGet, "/menu-all", nil, nil, &items, "menu fetch"); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateMenuItem はメニュー項目を登録し、採番されたIDを返す。
// POST /menu → {insertedId}
func (c *Client) CreateMenuItem(ctx context.Context, item model.NewMenuItem) (string, error) {
	var resp struct {
		InsertedID string `json:"insertedId"`
	}
	if err := c.do(ctx, http.MethodPost, "/menu", nil, item, &resp, "menu item create"); err != nil {
		return "", err
	}
	return resp.InsertedID, nil
}

// UpdateMenuItem は指定IDのメニュー項目を更新し、更新件数を返す。
// PATCH /menu/{id} → {modifiedCount}
func (c *Client) UpdateMenuItem(ctx context.Context, id string, item model.NewMenuItem) (int, error) {
	var resp struct {
		ModifiedCount int `json:"modifiedCount"`
	}
	if err := c.do(ctx, http.MethodPatch, "/menu/"+url.PathEscape(id), nil, item, &resp, "menu item update"); err != nil {
		return 0, err
	}
	return resp.ModifiedCount, nil
}

// DeleteMenuItem は指定IDのメニュー項目を削除し、削除件数を返す。
// DELETE /menu/{id} → {deletedCount}
func (c *Client) DeleteMenuItem(ctx context.Context, id string) (int, error) {
	var resp struct {
		DeletedCount int `json:"deletedCount"`
	}
	if err := c.do(ctx, http.MethodDelete, "/menu/"+url.PathEscape(id), nil, nil, &resp, "menu item delete"); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

// --- カート ---

// ListCarts は指定メールアドレスのカート内容を取得する。
// GET /carts?email=
func (c *Client) ListCarts(ctx context.Context, email string) ([]model.CartEntry, error) {
	var entries []model.CartEntry
	if err := c.do(ctx, http.MethodGet, "/carts", url.Values{"email": {email}}, nil, &entries, "cart list"); err != nil {
		return nil, err
	}
	return entries, nil
}

// AddCartEntry はカートに1件追加し、採番されたIDを返す。
// POST /carts → {insertedId}
func (c *Client) AddCartEntry(ctx context.Context, entry model.CartEntry) (string, error) {
	var resp struct {
		InsertedID string `json:"insertedId"`
	}
	if err := c.do(ctx, http.MethodPost, "/carts", nil, entry, &resp, "cart add"); err != nil {
		return "", err
	}
	return resp.InsertedID, nil
}

// DeleteCartEntry はカートから1件削除し、削除件数を返す。
// DELETE /carts/{id} → {deletedCount}
func (c *Client) DeleteCartEntry(ctx context.Context, id string) (int, error) {
	var resp struct {
		DeletedCount int `json:"deletedCount"`
	}
	if err := c.do(ctx, http.MethodDelete, "/carts/"+url.PathEscape(id), nil, nil, &resp, "cart delete"); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

// --- 予約 ---

// ListBookings は指定メールアドレスの予約一覧を取得する。
// GET /bookings?email=
func (c *Client) ListBookings(ctx context.Context, email string) ([]model.Booking, error) {
	var bookings []model.Booking
	if err := c.do(ctx, http.MethodGet, "/bookings", url.Values{"email": {email}}, nil, &bookings, "booking list"); err != nil {
		return nil, err
	}
	return bookings, nil
}

// CreateBooking は予約を作成し、採番されたIDを返す。
// POST /bookings → {insertedId}
func (c *Client) CreateBooking(ctx context.Context, booking model.NewBooking) (string, error) {
	var resp struct {
		InsertedID string `json:"insertedId"`
	}
	if err := c.do(ctx, http.MethodPost, "/bookings", nil, booking, &resp, "booking create"); err != nil {
		return "", err
	}
	return resp.InsertedID, nil
}

// DeleteBooking は予約を削除し、削除件数を返す。
// DELETE /bookings/{id} → {deletedCount}
func (c *Client) DeleteBooking(ctx context.Context, id string) (int, error) {
	var resp struct {
		DeletedCount int `json:"deletedCount"`
	}
	if err := c.do(ctx, http.MethodDelete, "/bookings/"+url.PathEscape(id), nil, nil, &resp, "booking delete"); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

// ListAdminBookings は全ユーザーの予約一覧を取得する。管理者専用。
// GET /admin/bookings
func (c *Client) ListAdminBookings(ctx context.Context) ([]model.Booking, error) {
	var bookings []model.Booking
	if err := c.do(ctx, http.MethodGet, "/admin/bookings", nil, nil, &bookings, "admin booking list"); err != nil {
		return nil, err
	}
	return bookings, nil
}

// UpdateBookingStatus は予約の処理状態を更新し、更新件数を返す。
// PATCH /bookings/status/{id} {status} → {modifiedCount}
func (c *Client) UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus) (int, error) {
	var resp struct {
		ModifiedCount int `json:"modifiedCount"`
	}
	body := map[string]model.BookingStatus{"status": status}
	if err := c.do(ctx, http.MethodPatch, "/bookings/status/"+url.PathEscape(id), nil, body, &resp, "booking status update"); err != nil {
		return 0, err
	}
	return resp.ModifiedCount, nil
}

// --- ユーザー ---

// RegisterUser はユーザー初期登録を行う。公開エンドポイント（サインアップブートストラップ）。
// POST /users → {insertedId}
func (c *Client) RegisterUser(ctx context.Context, user model.NewUser) (string, error) {
	var resp struct {
		InsertedID string `json:"insertedId"`
	}
	if err := c.do(ctx, http.MethodPost, "/users", nil, user, &resp, "user register"); err != nil {
		return "", err
	}
	return resp.InsertedID, nil
}

// ListUsers は全ユーザー一覧を取得する。管理者専用。
// GET /users
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.do(ctx, http.MethodGet, "/users", nil, nil, &users, "user list"); err != nil {
		return nil, err
	}
	return users, nil
}

// DeleteUser は指定IDのユーザーを削除し、削除件数を返す。管理者専用。
// DELETE /users/{id} → {deletedCount}
func (c *Client) DeleteUser(ctx context.Context, id string) (int, error) {
	var resp struct {
		DeletedCount int `json:"deletedCount"`
	}
	if err := c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil, &resp, "user delete"); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

// UpdateUserRole は指定IDのユーザーの権限を更新し、更新件数を返す。管理者専用。
// PATCH /users/role/{id} {role} → {modifiedCount}
func (c *Client) UpdateUserRole(ctx context.Context, id string, role model.UserRole) (int, error) {
	var resp struct {
		ModifiedCount int `json:"modifiedCount"`
	}
	body := map[string]model.UserRole{"role": role}
	if err := c.do(ctx, http.MethodPatch, "/users/role/"+url.PathEscape(id), nil, body, &resp, "user role update"); err != nil {
		return 0, err
	}
	return resp.ModifiedCount, nil
}

// FetchUserProfile は指定メールアドレスのユーザー記録を取得する。
// GET /users/profile/{email}
func (c *Client) FetchUserProfile(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, http.MethodGet, "/users/profile/"+url.PathEscape(email), nil, nil, &user, "user profile fetch"); err != nil {
		return nil, err
	}
	return &user, nil
}

// --- 統計 ---

// FetchAdminStats は管理ダッシュボードの集計値を取得する。管理者専用。
// GET /admin-stats
func (c *Client) FetchAdminStats(ctx context.Context) (*model.AdminStats, error) {
	var stats model.AdminStats
	if err := c.do(ctx, http.MethodGet, "/admin-stats", nil, nil, &stats, "admin stats fetch"); err != nil {
		return nil, err
	}
	return &stats, nil
}

// FetchOrderStats はカテゴリ別の注文集計を取得する。管理者専用。
// GET /order-stats
func (c *Client) FetchOrderStats(ctx context.Context) ([]model.OrderStat, error) {
	var stats []model.OrderStat
	if err := c.do(ctx, http.MethodGet, "/order-stats", nil, nil, &stats, "order stats fetch"); err != nil {
		return nil, err
	}
	return stats, nil
}

// FetchUserStats はユーザーホームの集計値を取得する。
// GET /user-stats?email=
func (c *Client) FetchUserStats(ctx context.Context, email string) (*model.UserStats, error) {
	var stats model.UserStats
	if err := c.do(ctx, http.MethodGet, "/user-stats", url.Values{"email": {email}}, nil, &stats, "user stats fetch"); err != nil {
		return nil, err
	}
	return &stats, nil
}

// --- 決済・レビュー ---

// CreatePaymentIntent は決済インテントを作成し、クライアントシークレットを返す。
// POST /create-payment-intent {price} → {clientSecret}
func (c *Client) CreatePaymentIntent(ctx context.Context, price float64) (string, error) {
	var resp struct {
		ClientSecret string `json:"clientSecret"`
	}
	body := map[string]float64{"price": price}
	if err := c.do(ctx, http.MethodPost, "/create-payment-intent", nil, body, &resp, "payment intent create"); err != nil {
		return "", err
	}
	return resp.ClientSecret, nil
}

// RecordPayment は決済記録を保存する。
// POST /payments
func (c *Client) RecordPayment(ctx context.Context, payment model.Payment) error {
	return c.do(ctx, http.MethodPost, "/payments", nil, payment, nil, "payment record")
}

// ListPayments は指定メールアドレスの決済履歴を取得する。
// GET /payments/{email}
func (c *Client) ListPayments(ctx context.Context, email string) ([]model.Payment, error) {
	var payments []model.Payment
	if err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(email), nil, nil, &payments, "payment list"); err != nil {
		return nil, err
	}
	return payments, nil
}

// CreateReview はレビューを投稿する。Detailsはサニタイズ済みであること。
// POST /reviews
func (c *Client) CreateReview(ctx context.Context, review model.Review) error {
	return c.do(ctx, http.MethodPost, "/reviews", nil, review, nil, "review create")
}
