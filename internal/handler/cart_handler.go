package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keisuke/tabegoro/internal/middleware"
	"github.com/keisuke/tabegoro/internal/model"
)

// CartServiceInterface はカートハンドラーが必要とする上流操作のインターフェース。
type CartServiceInterface interface {
	ListCarts(ctx context.Context, email string) ([]model.CartEntry, error)
	AddCartEntry(ctx context.Context, entry model.CartEntry) (string, error)
	DeleteCartEntry(ctx context.Context, id string) (int, error)
}

// CartHandler はカート管理のHTTPハンドラー。
// すべての操作はサインイン済みユーザー自身のカートに限定される。
type CartHandler struct {
	service CartServiceInterface
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(service CartServiceInterface) *CartHandler {
	return &CartHandler{service: service}
}

// addCartRequest はカート追加リクエストのボディ。
type addCartRequest struct {
	MenuID   string  `json:"menuId"`
	Name     string  `json:"name"`
	Image    string  `json:"image"`
	Price    float64 `json:"price"`
	Category string  `json:"category"`
}

// ListCarts はサインイン済みユーザーのカート一覧を返す。
// GET /api/carts
func (h *CartHandler) ListCarts(w http.ResponseWriter, r *http.Request) {
	ident, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	entries, err := h.service.ListCarts(r.Context(), ident.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// AddCartEntry はカートへ1件追加する。メールはセッションから補完する。
// POST /api/carts
func (h *CartHandler) AddCartEntry(w http.ResponseWriter, r *http.Request) {
	ident, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	var req addCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.MenuID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("menuIdは必須です"))
		return
	}

	id, err := h.service.AddCartEntry(r.Context(), model.CartEntry{
		MenuID:   req.MenuID,
		Email:    ident.Email,
		Name:     req.Name,
		Image:    req.Image,
		Price:    req.Price,
		Category: req.Category,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"insertedId": id})
}

// DeleteCartEntry はカートから1件削除する。
// DELETE /api/carts/{id}
func (h *CartHandler) DeleteCartEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	deleted, err := h.service.DeleteCartEntry(r.Context(), id)
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
