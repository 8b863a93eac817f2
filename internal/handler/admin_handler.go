package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keisuke/tabegoro/internal/middleware"
	"github.com/keisuke/tabegoro/internal/model"
	"github.com/keisuke/tabegoro/internal/role"
)

// AdminServiceInterface は管理ハンドラーが必要とする上流操作のインターフェース。
type AdminServiceInterface interface {
	ListUsers(ctx context.Context) ([]model.User, error)
	DeleteUser(ctx context.Context, id string) (int, error)
	UpdateUserRole(ctx context.Context, id string, userRole model.UserRole) (int, error)
	ListAdminBookings(ctx context.Context) ([]model.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus) (int, error)
	FetchAdminStats(ctx context.Context) (*model.AdminStats, error)
	FetchOrderStats(ctx context.Context) ([]model.OrderStat, error)
}

// AdminHandler は管理者向け操作のHTTPハンドラー。
// ルーティング側でRequireAdminガードを通過したリクエストのみが到達する。
type AdminHandler struct {
	service  AdminServiceInterface
	resolver *role.Resolver
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(service AdminServiceInterface, resolver *role.Resolver) *AdminHandler {
	return &AdminHandler{
		service:  service,
		resolver: resolver,
	}
}

// updateUserRoleRequest は権限変更リクエストのボディ。
// Emailは権限キャッシュ無効化のために受け取る。
type updateUserRoleRequest struct {
	Role  string `json:"role"`
	Email string `json:"email"`
}

// updateBookingStatusRequest は予約状態変更リクエストのボディ。
type updateBookingStatusRequest struct {
	Status string `json:"status"`
}

// ListUsers は全ユーザーの一覧を返す。
// GET /api/admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// DeleteUser はユーザーを削除する。
// DELETE /api/admin/users/{id}
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.service.DeleteUser(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if deleted == 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewItemNotFoundAPIError(id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deletedCount": deleted})
}

// UpdateUserRole はユーザーの権限区分を変更する。
// 変更後は対象ユーザーのキャッシュ済み権限を無効化する。
// PATCH /api/admin/users/{id}/role
func (h *AdminHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateUserRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}
	userRole := model.UserRole(req.Role)
	if userRole != model.UserRoleAdmin && userRole != model.UserRoleUser {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("roleはadminまたはuserを指定してください"))
		return
	}

	modified, err := h.service.UpdateUserRole(r.Context(), id, userRole)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if modified == 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewItemNotFoundAPIError(id))
		return
	}

	// 古い権限でガードを通過し続けないよう、キャッシュを無効化する
	if req.Email != "" {
		h.resolver.Invalidate(req.Email)
	}
	writeJSON(w, http.StatusOK, map[string]int{"modifiedCount": modified})
}

// ListBookings は全予約の一覧を返す。
// GET /api/admin/bookings
func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.service.ListAdminBookings(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// UpdateBookingStatus は予約の処理状態を変更する。
// PATCH /api/admin/bookings/{id}/status
func (h *AdminHandler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateBookingStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}
	status := model.BookingStatus(req.Status)
	switch status {
	case model.BookingStatusPending, model.BookingStatusConfirmed, model.BookingStatusCancelled:
	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("statusの値が不正です"))
		return
	}

	modified, err := h.service.UpdateBookingStatus(r.Context(), id, status)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if modified == 0 {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewItemNotFoundAPIError(id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"modifiedCount": modified})
}

// Stats は管理ダッシュボードの集計値を返す。
// GET /api/admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.FetchAdminStats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// OrderStats はカテゴリ別の注文集計を返す。
// GET /api/admin/order-stats
func (h *AdminHandler) OrderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.FetchOrderStats(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RoleState は自分の権限解決状態を返す。未解決の場合は known=false を返す。
// GET /api/auth/role
func (h *AdminHandler) RoleState(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	state := h.resolver.Resolve(r.Context(), sess)
	writeJSON(w, http.StatusOK, map[string]bool{
		"known": state.Known,
		"admin": state.Admin,
	})
}
