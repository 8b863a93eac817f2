package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"

	"github.com/keisuke/tabegoro/internal/middleware"
	"github.com/keisuke/tabegoro/internal/model"
)

// BookingServiceInterface は予約ハンドラーが必要とする上流操作のインターフェース。
type BookingServiceInterface interface {
	ListBookings(ctx context.Context, email string) ([]model.Booking, error)
	CreateBooking(ctx context.Context, booking model.NewBooking) (string, error)
	DeleteBooking(ctx context.Context, id string) (int, error)
}

// BookingHandler はテーブル予約のHTTPハンドラー。
type BookingHandler struct {
	service BookingServiceInterface
}

// NewBookingHandler はBookingHandlerを生成する。
func NewBookingHandler(service BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: service}
}

// createBookingRequest は予約作成リクエストのボディ。
type createBookingRequest struct {
	Name   string `json:"name"`
	Phone  string `json:"phone"`
	Date   string `json:"date"` // YYYY-MM-DD
	Time   string `json:"time"` // HH:MM
	Guests int    `json:"guests"`
}

var (
	bookingDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	bookingTimePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// ListBookings はサインイン済みユーザーの予約一覧を返す。
// GET /api/bookings
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	ident, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	bookings, err := h.service.ListBookings(r.Context(), ident.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

// CreateBooking は予約を作成する。メールはセッションから補完する。
// POST /api/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	ident, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}
	if !bookingDatePattern.MatchString(req.Date) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("日付はYYYY-MM-DD形式で指定してください"))
		return
	}
	if !bookingTimePattern.MatchString(req.Time) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("時刻はHH:MM形式で指定してください"))
		return
	}
	if req.Guests < 1 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("人数は1以上で指定してください"))
		return
	}

	id, err := h.service.CreateBooking(r.Context(), model.NewBooking{
		Email:  ident.Email,
		Name:   req.Name,
		Phone:  req.Phone,
		Date:   req.Date,
		Time:   req.Time,
		Guests: req.Guests,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"insertedId": id})
}

// DeleteBooking は予約を取り消す。
// DELETE /api/bookings/{id}
func (h *BookingHandler) DeleteBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.service.DeleteBooking(r.Context(), id)
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
