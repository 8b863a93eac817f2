package upstream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/keisuke/tabegoro/internal/model"
)

// --- モック定義 ---

type mockCredentialSource struct {
	mu     sync.Mutex
	tokens map[string]string
	getErr error
}

func (m *mockCredentialSource) Get(_ context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.tokens[sessionID], nil
}

type mockTerminator struct {
	mu    sync.Mutex
	calls []string
	delay time.Duration
}

func (m *mockTerminator) ForceSignOut(_ context.Context, sessionID string) error {
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sessionID)
	return nil
}

func (m *mockTerminator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ CredentialSource = (*mockCredentialSource)(nil)
var _ SessionTerminator = (*mockTerminator)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// 有効期限付きのHS256テストトークンを生成するヘルパー
func makeJWT(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "taro@example.com",
		"exp":   exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return signed
}

// --- テスト ---

// トークンが保存されている場合にベアラーヘッダーが添付されることを検証
func TestBearerTransport_AttachesToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"result": []any{}, "count": 0})
	}))
	defer srv.Close()

	token := makeJWT(t, time.Now().Add(time.Hour))
	creds := &mockCredentialSource{tokens: map[string]string{"sess-1": token}}
	term := &mockTerminator{}
	client := NewSecureClient(srv.URL, 5*time.Second, creds, term, testLogger(), nil)

	ctx := WithSessionID(context.Background(), "sess-1")
	if _, err := client.FetchMenuPage(ctx, 0, 10); err != nil {
		t.Fatalf("FetchMenuPage() error = %v", err)
	}

	if gotAuth != "Bearer "+token {
		t.Errorf("Authorization = %q, want Bearer token", gotAuth)
	}
}

// トークンが無い場合にヘッダー無しで送信されること（ブロックしないこと）を検証
func TestBearerTransport_NoTokenStillSends(t *testing.T) {
	var gotAuth string
	var called bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"result": []any{}, "count": 0})
	}))
	defer srv.Close()

	creds := &mockCredentialSource{tokens: map[string]string{}}
	term := &mockTerminator{}
	client := NewSecureClient(srv.URL, 5*time.Second, creds, term, testLogger(), nil)

	ctx := WithSessionID(context.Background(), "sess-1")
	if _, err := client.FetchMenuPage(ctx, 0, 10); err != nil {
		t.Fatalf("FetchMenuPage() error = %v", err)
	}

	if !called {
		t.Fatal("request was not sent")
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

// 期限切れJWTが黙って添付されないことを検証
func TestBearerTransport_RefusesStaleToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"result": []any{}, "count": 0})
	}))
	defer srv.Close()

	stale := makeJWT(t, time.Now().Add(-time.Hour))
	creds := &mockCredentialSource{tokens: map[string]string{"sess-1": stale}}
	term := &mockTerminator{}
	client := NewSecureClient(srv.URL, 5*time.Second, creds, term, testLogger(), nil)

	ctx := WithSessionID(context.Background(), "sess-1")
	if _, err := client.FetchMenuPage(ctx, 0, 10); err != nil {
		t.Fatalf("FetchMenuPage() error = %v", err)
	}

	if gotAuth != "" {
		t.Errorf("Authorization = %q, stale token must not be attached", gotAuth)
	}
}

// JWTでない不透明トークンはそのまま添付されることを検証
func TestBearerTransport_OpaqueTokenAttached(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"result": []any{}, "count": 0})
	}))
	defer srv.Close()

	creds := &mockCredentialSource{tokens: map[string]string{"sess-1": "opaque-token-value"}}
	term := &mockTerminator{}
	client := NewSecureClient(srv.URL, 5*time.Second, creds, term, testLogger(), nil)

	ctx := WithSessionID(context.Background(), "sess-1")
	if _, err := client.FetchMenuPage(ctx, 0, 10); err != nil {
		t.Fatalf("FetchMenuPage() error = %v", err)
	}

	if gotAuth != "Bearer opaque-token-value" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

// 401応答で強制サインアウトが発火し、エラーが呼び出し元へ伝播することを検証
func TestBearerTransport_UnauthorizedForcesSignOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	creds := &mockCredentialSource{tokens: map[string]string{}}
	term := &mockTerminator{}
	client := NewSecureClient(srv.URL, 5*time.Second, creds, term, testLogger(), nil)

	ctx := WithSessionID(context.Background(), "sess-1")
	_, err := client.FetchMenuPage(ctx, 0, 10)

	if !model.IsUnauthorized(err) {
		t.Fatalf("error = %v, want UnauthorizedError", err)
	}
	if term.callCount() != 1 {
		t.Errorf("ForceSignOut calls = %d, want 1", term.callCount())
	}
}

// 403応答でも強制サインアウトが発火することを検証
func TestBearerTransport_ForbiddenForcesSignOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	creds := &mockCredentialSource{tokens: map[string]string{}}
	term := &mockTerminator{}
	client := NewSecureClient(srv.URL, 5*time.Second, creds, term, testLogger(), nil)

	ctx := WithSessionID(context.Background(), "sess-1")
	_, err := client.FetchMenuPage(ctx, 0, 10)

	if !model.IsUnauthorized(err) {
		t.Fatalf("error = %v, want UnauthorizedError", err)
	}
	if term.callCount() != 1 {
		t.Errorf("ForceSignOut calls = %d, want 1", term.callCount())
	}
}

// 同一セッションの並行401でサインアウトが1回だけ実行されることを検証
func TestBearerTransport_ConcurrentUnauthorized_SingleSignOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	creds := &mockCredentialSource{tokens: map[string]string{}}
	// サインアウト処理に時間がかかる間に後続の401が到着する状況を再現する
	term := &mockTerminator{delay: 200 * time.Millisecond}
	client := NewSecureClient(srv.URL, 5*time.Second, creds, term, testLogger(), nil)

	ctx := WithSessionID(context.Background(), "sess-1")

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, _ = client.FetchMenuPage(ctx, 0, 10)
		}()
	}
	wg.Wait()

	if term.callCount() != 1 {
		t.Errorf("ForceSignOut calls = %d, want exactly 1", term.callCount())
	}
}

// セッションIDがコンテキストに無い場合は資格情報を読まないことを検証
func TestBearerTransport_NoSessionContext(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"result": []any{}, "count": 0})
	}))
	defer srv.Close()

	creds := &mockCredentialSource{tokens: map[string]string{"sess-1": "token"}}
	term := &mockTerminator{}
	client := NewSecureClient(srv.URL, 5*time.Second, creds, term, testLogger(), nil)

	if _, err := client.FetchMenuPage(context.Background(), 0, 10); err != nil {
		t.Fatalf("FetchMenuPage() error = %v", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty without session", gotAuth)
	}
}
