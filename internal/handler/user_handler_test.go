package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/keisuke/tabegoro/internal/model"
)

// --- テスト ---

func TestUserHandler_Profile_ReturnsOwnRecord(t *testing.T) {
	service := &mockUserService{
		fetchUserProfileFn: func(_ context.Context, email string) (*model.User, error) {
			if email != "taro@example.com" {
				t.Errorf("email = %q, want taro@example.com", email)
			}
			return &model.User{ID: "u-1", Name: "Taro", Email: email, Role: model.UserRoleUser}, nil
		},
	}
	h := NewUserHandler(service)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/users/profile", nil), testSession())
	w := httptest.NewRecorder()
	h.Profile(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var user model.User
	if err := json.NewDecoder(w.Body).Decode(&user); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if user.Email != "taro@example.com" {
		t.Errorf("Email = %q, want taro@example.com", user.Email)
	}
}

func TestUserHandler_Profile_WithoutSession_ReturnsUnauthorized(t *testing.T) {
	h := NewUserHandler(&mockUserService{})

	req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
	w := httptest.NewRecorder()
	h.Profile(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != "UNAUTHORIZED" {
		t.Errorf("code = %q, want UNAUTHORIZED", resp["code"])
	}
}

func TestUserHandler_Stats_ScopedToSessionEmail(t *testing.T) {
	var gotEmail string
	service := &mockUserService{
		fetchUserStatsFn: func(_ context.Context, email string) (*model.UserStats, error) {
			gotEmail = email
			return &model.UserStats{Bookings: 2, Reviews: 1, Payments: 3}, nil
		},
	}
	h := NewUserHandler(service)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/users/stats", nil), testSession())
	w := httptest.NewRecorder()
	h.Stats(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotEmail != "taro@example.com" {
		t.Errorf("email = %q, want taro@example.com", gotEmail)
	}
}

func TestUserHandler_Stats_UpstreamFailure_ReturnsBadGateway(t *testing.T) {
	service := &mockUserService{
		fetchUserStatsFn: func(_ context.Context, _ string) (*model.UserStats, error) {
			return nil, &model.UpstreamError{Op: "user_stats", Status: http.StatusInternalServerError}
		},
	}
	h := NewUserHandler(service)

	req := withSession(httptest.NewRequest(http.MethodGet, "/api/users/stats", nil), testSession())
	w := httptest.NewRecorder()
	h.Stats(w, req)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadGateway)
	}
}
