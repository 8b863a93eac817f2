package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/keisuke/tabegoro/internal/model"
)

// TestMiddlewareChain_LoaderThenGuard_GETRequest は
// SessionLoader -> RequireSignIn のチェーンでGETリクエストが通ることを検証する。
func TestMiddlewareChain_LoaderThenGuard_GETRequest(t *testing.T) {
	finder := &mockSessionFinder{
		currentFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{
				ID:         "valid-session",
				Email:      "taro@example.com",
				TokenState: model.TokenStateIssued,
				ExpiresAt:  time.Now().Add(1 * time.Hour),
			}, nil
		},
	}

	var capturedEmail string
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := SessionFromContext(r.Context())
		capturedEmail = session.Email
		w.WriteHeader(http.StatusOK)
	})
	handler = RequireSignIn()(handler)
	handler = NewSessionLoader(finder)(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if capturedEmail != "taro@example.com" {
		t.Errorf("email = %q, want %q", capturedEmail, "taro@example.com")
	}
}

// TestMiddlewareChain_LoaderThenGuard_POSTRequest は
// セッション付きPOSTリクエストがチェーンを通ることを検証する。
func TestMiddlewareChain_LoaderThenGuard_POSTRequest(t *testing.T) {
	finder := &mockSessionFinder{
		currentFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{
				ID:         "valid-session",
				Email:      "taro@example.com",
				TokenState: model.TokenStateIssued,
				ExpiresAt:  time.Now().Add(1 * time.Hour),
			}, nil
		},
	}

	handlerCalled := false
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})
	handler = RequireSignIn()(handler)
	handler = NewSessionLoader(finder)(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if !handlerCalled {
		t.Error("handler should have been called")
	}
}

// TestMiddlewareChain_NoSession_Returns401 は
// セッションがない場合にガードで401が返されることを検証する。
func TestMiddlewareChain_NoSession_Returns401(t *testing.T) {
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})
	handler = RequireSignIn()(handler)
	handler = NewSessionLoader(&mockSessionFinder{})(handler)

	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
