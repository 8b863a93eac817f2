package handler

import (
	"context"
	"net/http"

	"github.com/keisuke/tabegoro/internal/middleware"
	"github.com/keisuke/tabegoro/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とする上流操作のインターフェース。
type UserServiceInterface interface {
	FetchUserProfile(ctx context.Context, email string) (*model.User, error)
	FetchUserStats(ctx context.Context, email string) (*model.UserStats, error)
}

// UserHandler はサインイン済みユーザー自身の情報を返すHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// Profile は上流に保存された自分のユーザー記録を返す。
// GET /api/users/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ident, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	user, err := h.service.FetchUserProfile(r.Context(), ident.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Stats は自分のホーム画面用の集計値を返す。
// GET /api/users/stats
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ident, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	stats, err := h.service.FetchUserStats(r.Context(), ident.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
