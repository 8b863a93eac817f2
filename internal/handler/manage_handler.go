package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keisuke/tabegoro/internal/manageview"
	"github.com/keisuke/tabegoro/internal/middleware"
	"github.com/keisuke/tabegoro/internal/model"
)

// ManageHandler は管理画面のメニュー一覧ビューを操作するHTTPハンドラー。
// ビュー状態はセッションごとにサーバー側で保持される。
type ManageHandler struct {
	store *manageview.Store
}

// NewManageHandler はManageHandlerを生成する。
func NewManageHandler(store *manageview.Store) *ManageHandler {
	return &ManageHandler{store: store}
}

// setPageRequest はページ移動リクエストのボディ。
type setPageRequest struct {
	Page int `json:"page"`
}

// setPageSizeRequest はページサイズ変更リクエストのボディ。
type setPageSizeRequest struct {
	Size int `json:"size"`
}

// searchRequest は名前検索リクエストのボディ。
type searchRequest struct {
	Query string `json:"query"`
}

// snapshotResponse はビュー状態のAPIレスポンス。
type snapshotResponse struct {
	Items      []model.MenuItem `json:"items"`
	TotalCount int              `json:"totalCount"`
	PageIndex  int              `json:"pageIndex"`
	PageSize   int              `json:"pageSize"`
	Filter     string           `json:"filter"`
	Loading    bool             `json:"loading"`
}

func toSnapshotResponse(snap manageview.Snapshot) snapshotResponse {
	return snapshotResponse{
		Items:      snap.Items,
		TotalCount: snap.TotalCount,
		PageIndex:  snap.PageIndex,
		PageSize:   snap.PageSize,
		Filter:     snap.Filter,
		Loading:    snap.Loading,
	}
}

// view はリクエストのセッションに対応するビューを返す。
func (h *ManageHandler) view(r *http.Request) (*manageview.View, bool) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		return nil, false
	}
	return h.store.ForSession(sess.ID), true
}

// Snapshot は現在のビュー状態を返す。初回アクセス時は1ページ目を読み込む。
// GET /api/admin/manage
func (h *ManageHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	snap := v.Snapshot()
	if snap.TotalCount == 0 && len(snap.Items) == 0 && !snap.Loading {
		if err := v.Load(r.Context()); err != nil {
			handleServiceError(w, err)
			return
		}
		snap = v.Snapshot()
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

// Reload はビューを明示的に再読み込みする。
// POST /api/admin/manage/reload
func (h *ManageHandler) Reload(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	if err := v.Load(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(v.Snapshot()))
}

// SetPage は表示ページを移動する。
// POST /api/admin/manage/page
func (h *ManageHandler) SetPage(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	var req setPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}

	if err := v.SetPage(r.Context(), req.Page); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(v.Snapshot()))
}

// SetPageSize は1ページあたりの件数を変更する。1ページ目に戻る。
// POST /api/admin/manage/page-size
func (h *ManageHandler) SetPageSize(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	var req setPageSizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}

	if err := v.SetPageSize(r.Context(), req.Size); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(v.Snapshot()))
}

// Search は名前検索のクエリを設定する。デバウンス後に反映される。
// POST /api/admin/manage/search
func (h *ManageHandler) Search(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}

	v.Search(req.Query)
	writeJSON(w, http.StatusOK, toSnapshotResponse(v.Snapshot()))
}

// DeleteItem はメニュー項目を楽観的に削除する。
// 一覧からは即座に消え、上流削除の失敗時は再読み込みで復元される。
// DELETE /api/admin/manage/items/{id}
func (h *ManageHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(r)
	if !ok {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	id := chi.URLParam(r, "id")
	if err := v.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(v.Snapshot()))
}
