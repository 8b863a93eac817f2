package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/keisuke/tabegoro/internal/middleware"
	"github.com/keisuke/tabegoro/internal/model"
	"github.com/keisuke/tabegoro/internal/security"
)

// PaymentServiceInterface は決済ハンドラーが必要とする上流操作のインターフェース。
type PaymentServiceInterface interface {
	CreatePaymentIntent(ctx context.Context, price float64) (string, error)
	RecordPayment(ctx context.Context, payment model.Payment) error
	ListPayments(ctx context.Context, email string) ([]model.Payment, error)
}

// ReviewCreator はレビュー投稿のインターフェース。
type ReviewCreator interface {
	CreateReview(ctx context.Context, review model.Review) error
}

// PaymentHandler は決済とレビュー投稿のHTTPハンドラー。
type PaymentHandler struct {
	service   PaymentServiceInterface
	reviews   ReviewCreator
	sanitizer security.ContentSanitizerService
}

// NewPaymentHandler はPaymentHandlerを生成する。
func NewPaymentHandler(service PaymentServiceInterface, reviews ReviewCreator, sanitizer security.ContentSanitizerService) *PaymentHandler {
	return &PaymentHandler{
		service:   service,
		reviews:   reviews,
		sanitizer: sanitizer,
	}
}

// createIntentRequest は決済インテント作成リクエストのボディ。
type createIntentRequest struct {
	Price float64 `json:"price"`
}

// recordPaymentRequest は決済記録リクエストのボディ。
type recordPaymentRequest struct {
	Price         float64  `json:"price"`
	TransactionID string   `json:"transactionId"`
	Date          string   `json:"date"`
	CartIDs       []string `json:"cartIds"`
	MenuIDs       []string `json:"menuItemIds"`
}

// createReviewRequest はレビュー投稿リクエストのボディ。
type createReviewRequest struct {
	Name    string  `json:"name"`
	Rating  float64 `json:"rating"`
	Details string  `json:"details"`
}

// CreateIntent は決済インテントを作成しclient secretを返す。
// POST /api/payments/intent
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.Price <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("金額は正の値で指定してください"))
		return
	}

	clientSecret, err := h.service.CreatePaymentIntent(r.Context(), req.Price)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"clientSecret": clientSecret})
}

// RecordPayment は完了した決済を記録する。メールはセッションから補完する。
// POST /api/payments
func (h *PaymentHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	ident, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.TransactionID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("transactionIdは必須です"))
		return
	}

	if err := h.service.RecordPayment(r.Context(), model.Payment{
		Email:         ident.Email,
		Price:         req.Price,
		TransactionID: req.TransactionID,
		Date:          req.Date,
		CartIDs:       req.CartIDs,
		MenuIDs:       req.MenuIDs,
		Status:        "pending",
	}); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// ListPayments はサインイン済みユーザーの決済履歴を返す。
// GET /api/payments
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ident, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	payments, err := h.service.ListPayments(r.Context(), ident.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// CreateReview はレビューを投稿する。本文はサニタイズ済みで保存する。
// POST /api/reviews
func (h *PaymentHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	ident, err := middleware.IdentityFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	var req createReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.Rating < 0 || req.Rating > 5 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("評価は0〜5の範囲で指定してください"))
		return
	}

	details := h.sanitizer.SanitizeReview(req.Details)
	if details == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("レビュー本文が空です"))
		return
	}

	if err := h.reviews.CreateReview(r.Context(), model.Review{
		Name:    req.Name,
		Email:   ident.Email,
		Rating:  req.Rating,
		Details: details,
	}); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}
