// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/keisuke/tabegoro/internal/middleware"
	"github.com/keisuke/tabegoro/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignUp(ctx context.Context, email, password, displayName, photoURL string) (*model.Session, error)
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
	SignOut(ctx context.Context, sessionID string) error
	Current(ctx context.Context, sessionID string) (*model.Session, error)
	UpdateProfile(ctx context.Context, sessionID, displayName, photoURL string) (*model.Session, error)
}

// UserRegistrar はサインアップ時に上流のユーザー台帳へ初期登録するインターフェース。
type UserRegistrar interface {
	RegisterUser(ctx context.Context, user model.NewUser) (string, error)
}

// ViewEvictor はサインアウト時にセッションのビュー状態を破棄するインターフェース。
type ViewEvictor interface {
	Evict(sessionID string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はサインアップ・サインイン・サインアウトのHTTPハンドラー。
type AuthHandler struct {
	service   AuthServiceInterface
	registrar UserRegistrar
	evictor   ViewEvictor
	config    AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。registrar・evictorはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, registrar UserRegistrar, evictor ViewEvictor, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:   service,
		registrar: registrar,
		evictor:   evictor,
		config:    config,
	}
}

// signUpRequest はサインアップリクエストのボディ。
type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// signInRequest はサインインリクエストのボディ。
type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// sessionResponse はセッション情報のAPIレスポンス。
type sessionResponse struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	TokenState  string `json:"tokenState"`
}

func toSessionResponse(sess *model.Session) sessionResponse {
	return sessionResponse{
		UID:         sess.UID,
		Email:       sess.Email,
		DisplayName: sess.DisplayName,
		PhotoURL:    sess.PhotoURL,
		TokenState:  string(sess.TokenState),
	}
}

// SignUp はアカウント作成とセッション確立を処理する。
// POST /api/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("メールアドレスとパスワードは必須です"))
		return
	}

	sess, err := h.service.SignUp(r.Context(), req.Email, req.Password, req.DisplayName, req.PhotoURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// 上流のユーザー台帳へ初期登録（失敗してもサインアップ自体は成立させる）
	if h.registrar != nil {
		if _, err := h.registrar.RegisterUser(r.Context(), model.NewUser{
			Name:  req.DisplayName,
			Email: req.Email,
			Photo: req.PhotoURL,
		}); err != nil {
			slog.Warn("上流へのユーザー登録に失敗しました",
				slog.String("email", req.Email),
				slog.String("error", err.Error()),
			)
		}
	}

	h.setSessionCookie(w, sess.ID)
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

// SignIn はサインインとセッション確立を処理する。
// POST /api/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("メールアドレスとパスワードは必須です"))
		return
	}

	sess, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, sess.ID)
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// SignOut はセッションを破棄する。
// POST /api/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if h.evictor != nil {
			h.evictor.Evict(cookie.Value)
		}
		if signOutErr := h.service.SignOut(r.Context(), cookie.Value); signOutErr != nil {
			slog.Error("サインアウト処理に失敗しました", slog.String("error", signOutErr.Error()))
			// 失敗してもCookieはクリアする
		}
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のセッション情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// UpdateProfile は表示名と写真URLを更新する。
// PUT /api/auth/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedAPIError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputAPIError("リクエストボディの解析に失敗しました"))
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), sess.ID, req.DisplayName, req.PhotoURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(updated))
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
