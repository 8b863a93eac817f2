package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/keisuke/tabegoro/internal/middleware"
	"github.com/keisuke/tabegoro/internal/model"
)

// --- テストヘルパー ---

// testSession はテスト用のissued済みセッションを返す。
func testSession() *model.Session {
	return &model.Session{
		ID:          "sess-1",
		UID:         "uid-1",
		Email:       "taro@example.com",
		DisplayName: "Taro",
		TokenState:  model.TokenStateIssued,
	}
}

// withSession はテスト用にリクエストコンテキストへセッションを注入するヘルパー。
func withSession(r *http.Request, sess *model.Session) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), sess))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// passthroughSanitizer はテスト用の素通しサニタイザー。
type passthroughSanitizer struct{}

func (passthroughSanitizer) SanitizeReview(raw string) string { return raw }

func (passthroughSanitizer) SanitizeRecipe(rawHTML string) string { return rawHTML }
