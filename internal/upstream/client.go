package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/keisuke/tabegoro/internal/model"
)

// userAgent は上流APIへのリクエストに付与するUser-Agent。
const userAgent = "Tabegoro/1.0 BFF"

// Recorder は上流API呼び出しのメトリクス記録インターフェース。
// metrics.Collectorの部分集合として定義する。
type Recorder interface {
	RecordUpstreamRequest(op string, status int, duration time.Duration)
}

// noopRecorder はメトリクス未設定時のRecorder実装。
type noopRecorder struct{}

func (noopRecorder) RecordUpstreamRequest(string, int, time.Duration) {}

// Client は上流REST APIのクライアント。1つのベースURLに束縛される。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    Recorder
}

// NewPublicClient はインターセプターを持たない公開クライアントを生成する。
// トークン交換（POST /jwt）、公開メニュー、サインアップブートストラップ専用。
func NewPublicClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics Recorder) *Client {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		metrics:    metrics,
	}
}

// NewSecureClient はベアラートークン添付と強制サインアウトの
// インターセプターペアを持つ保護クライアントを生成する。
// インターセプターはトランスポートとして1回だけ組み込まれ、
// クライアントを共有しても二重添付・二重サインアウトは発生しない。
func NewSecureClient(baseURL string, timeout time.Duration, creds CredentialSource, terminator SessionTerminator, logger *slog.Logger, metrics Recorder) *Client {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: newBearerTransport(creds, terminator, logger),
		},
		logger:  logger,
		metrics: metrics,
	}
}

// do は上流APIへの1リクエストを実行し、JSONレスポンスをoutにデコードする。
// opはエラーメッセージとメトリクスに使う操作名。
//
// エラー変換:
//   - ネットワークエラー → *model.UpstreamError (Status=0)
//   - 401/403 → *model.UnauthorizedError（強制サインアウトはトランスポートで実施済み）
//   - その他の非2xx → *model.UpstreamError
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any, op string) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamRequest(op, 0, time.Since(start))
		c.logger.Error("upstream request failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
		return &model.UpstreamError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.metrics.RecordUpstreamRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &model.UnauthorizedError{Status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("upstream returned error status",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
		)
		return &model.UpstreamError{Op: op, Status: resp.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &model.UpstreamError{Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
		}
	}

	return nil
}
