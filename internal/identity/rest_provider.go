package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/keisuke/tabegoro/internal/model"
)

const (
	defaultSignUpURL = "https://identitytoolkit.googleapis.com/v1/accounts:signUp"
	defaultSignInURL = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"
	defaultUpdateURL = "https://identitytoolkit.googleapis.com/v1/accounts:update"
)

// RESTProviderConfig はREST APIベースのIDプロバイダーの設定。
type RESTProviderConfig struct {
	APIKey string

	// テスト用にオーバーライド可能なURL
	SignUpURL string
	SignInURL string
	UpdateURL string
}

// RESTProvider はIdentity Toolkit互換のREST APIによるIDプロバイダー実装。
type RESTProvider struct {
	config     RESTProviderConfig
	httpClient *http.Client
}

// NewRESTProvider はRESTProviderを生成する。
// httpClientがnilの場合はhttp.DefaultClientを使用する。
func NewRESTProvider(config RESTProviderConfig, httpClient *http.Client) *RESTProvider {
	if config.SignUpURL == "" {
		config.SignUpURL = defaultSignUpURL
	}
	if config.SignInURL == "" {
		config.SignInURL = defaultSignInURL
	}
	if config.UpdateURL == "" {
		config.UpdateURL = defaultUpdateURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RESTProvider{config: config, httpClient: httpClient}
}

// accountResponse はプロバイダーのアカウント系エンドポイントのレスポンス。
type accountResponse struct {
	LocalID     string `json:"localId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
}

// providerErrorResponse はプロバイダーのエラーレスポンス。
type providerErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SignUp はメールアドレスとパスワードでアカウントを作成する。
func (p *RESTProvider) SignUp(ctx context.Context, email, password string) (*model.Identity, error) {
	acc, err := p.postAccount(ctx, p.config.SignUpURL, map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}
	return accountToIdentity(acc), nil
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
func (p *RESTProvider) SignInWithPassword(ctx context.Context, email, password string) (*model.Identity, error) {
	acc, err := p.postAccount(ctx, p.config.SignInURL, map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return nil, err
	}
	return accountToIdentity(acc), nil
}

// UpdateProfile は指定UIDのアカウントの表示名・写真URLを更新する。
func (p *RESTProvider) UpdateProfile(ctx context.Context, uid, displayName, photoURL string) (*model.Identity, error) {
	acc, err := p.postAccount(ctx, p.config.UpdateURL, map[string]any{
		"localId":     uid,
		"displayName": displayName,
		"photoUrl":    photoURL,
	})
	if err != nil {
		return nil, err
	}
	return accountToIdentity(acc), nil
}

// postAccount はアカウント系エンドポイントへJSONをPOSTし、レスポンスをパースする。
// 4xxレスポンスはプロバイダー定義コード付きのIdentityErrorに変換する。
func (p *RESTProvider) postAccount(ctx context.Context, endpoint string, payload map[string]any) (*accountResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?key="+p.config.APIKey, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	// 4xxはプロバイダーによる拒否。コードを抽出してIdentityErrorに変換する。
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, parseProviderError(respBody)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var acc accountResponse
	if err := json.Unmarshal(respBody, &acc); err != nil {
		return nil, fmt.Errorf("failed to parse provider response: %w", err)
	}

	if acc.LocalID == "" {
		return nil, fmt.Errorf("empty localId in provider response")
	}

	return &acc, nil
}

// parseProviderError はプロバイダーのエラーレスポンスをIdentityErrorに変換する。
// メッセージは "EMAIL_EXISTS" や "INVALID_PASSWORD : ..." の形式で返る。
func parseProviderError(body []byte) *model.IdentityError {
	var pe providerErrorResponse
	if err := json.Unmarshal(body, &pe); err != nil || pe.Error.Message == "" {
		return &model.IdentityError{Code: "UNKNOWN", Message: string(body)}
	}

	code := pe.Error.Message
	if idx := strings.IndexAny(code, " :"); idx > 0 {
		code = code[:idx]
	}

	return &model.IdentityError{Code: code, Message: pe.Error.Message}
}

func accountToIdentity(acc *accountResponse) *model.Identity {
	return &model.Identity{
		UID:         acc.LocalID,
		Email:       acc.Email,
		DisplayName: acc.DisplayName,
		PhotoURL:    acc.PhotoURL,
	}
}

// compile-time interface check
var _ Provider = (*RESTProvider)(nil)
