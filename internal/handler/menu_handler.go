package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/keisuke/tabegoro/internal/model"
	"github.com/keisuke/tabegoro/internal/security"
)

// MenuServiceInterface はメニューハンドラーが必要とする上流操作のインターフェース。
type MenuServiceInterface interface {
	FetchMenuPage(ctx context.Context, page, size int) (*model.MenuPage, error)
	FetchAllMenu(ctx context.Context) ([]model.MenuItem, error)
	CreateMenuItem(ctx context.Context, item model.NewMenuItem) (string, error)
	UpdateMenuItem(ctx context.Context, id string, item model.NewMenuItem) (int, error)
}

// ImageResolver はメニュー画像URLの検証・解決インターフェース。
type ImageResolver interface {
	Resolve(ctx context.Context, inputURL string) (string, error)
}

// MenuHandler はメニュー閲覧・管理のHTTPハンドラー。
type MenuHandler struct {
	service   MenuServiceInterface
	sanitizer security.ContentSanitizerService
	resolver  ImageResolver
}

// NewMenuHandler はMenuHandlerを生成する。
func NewMenuHandler(service MenuServiceInterface, sanitizer security.ContentSanitizerService, resolver ImageResolver) *MenuHandler {
	return &MenuHandler{
		service:   service,
		sanitizer: sanitizer,
		resolver:  resolver,
	}
}

// menuPageResponse はページングされたメニュー一覧のAPIレスポンス。
type menuPageResponse struct {
	Items      []model.MenuItem `json:"items"`
	TotalCount int              `json:"totalCount"`
	PageIndex  int              `json:"pageIndex"`
	PageSize   int              `json:"pageSize"`
}

// ListMenu はページングされたメニュー一覧を返す。
// GET /api/menu?page=0&size=10
func (h *MenuHandler) ListMenu(w http.ResponseWriter, r *http.Request) {
	page := parseIntQuery(r, "page", 0)
	size := parseIntQuery(r, "size", 10)
	if page < 0 || size < 1 || size > 100 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("page・sizeの値が不正です"))
		return
	}

	menuPage, err := h.service.FetchMenuPage(r.Context(), page, size)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, menuPageResponse{
		Items:      menuPage.Items,
		TotalCount: menuPage.TotalCount,
		PageIndex:  menuPage.PageIndex,
		PageSize:   menuPage.PageSize,
	})
}

// ListAllMenu は全メニュー項目を返す。
// GET /api/menu/all
func (h *MenuHandler) ListAllMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.FetchAllMenu(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// CreateMenuItem はメニュー項目を登録する。レシピはサニタイズし、
// 画像URLはSSRF検証と代表画像解決を通す。
// POST /api/admin/menu
func (h *MenuHandler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	var req model.NewMenuItem
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.Name == "" || req.Category == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("名前とカテゴリは必須です"))
		return
	}

	prepared, err := h.prepare(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	id, err := h.service.CreateMenuItem(r.Context(), prepared)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"insertedId": id})
}

// UpdateMenuItem はメニュー項目を更新する。
// PATCH /api/admin/menu/{id}
func (h *MenuHandler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.NewMenuItem
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}

	prepared, err := h.prepare(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	modified, err := h.service.UpdateMenuItem(r.Context(), id, prepared)
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

// prepare はレシピのサニタイズと画像URLの解決を行う。
func (h *MenuHandler) prepare(ctx context.Context, req model.NewMenuItem) (model.NewMenuItem, error) {
	req.Recipe = h.sanitizer.SanitizeRecipe(req.Recipe)
	if req.Image != "" {
		resolved, err := h.resolver.Resolve(ctx, req.Image)
		if err != nil {
			return model.NewMenuItem{}, err
		}
		req.Image = resolved
	}
	return req, nil
}

// parseIntQuery はクエリパラメータを整数として取得する。欠落時はデフォルト値を返す。
func parseIntQuery(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
