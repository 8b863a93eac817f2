// Package menuimage はメニュー項目の画像URL解決を提供する。
// 管理者が指定したURLが画像そのものであればそのまま採用し、
// Webページであればog:image等のメタタグから代表画像を検出する。
package menuimage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/keisuke/tabegoro/internal/model"
)

// SSRFValidator はSSRF検証のインターフェース。
// security.SSRFGuardServiceを抽象化してテスタビリティを向上させる。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Resolver は画像URLの検証と解決機能を提供する。
type Resolver struct {
	ssrfGuard SSRFValidator
}

// NewResolver はResolverの新しいインスタンスを生成する。
func NewResolver(ssrfGuard SSRFValidator) *Resolver {
	return &Resolver{
		ssrfGuard: ssrfGuard,
	}
}

// metaImageProperties は代表画像として認識するmetaタグのproperty/name。
// 優先度順: og:image > twitter:image
var metaImageProperties = []string{
	"og:image",
	"twitter:image",
}

// Resolve はURLが画像かWebページかを判定し、採用する画像URLを返す。
//  1. SSRF検証を実行
//  2. URLにHTTPリクエストを送信
//  3. Content-Typeが画像であれば入力URLをそのまま返す
//  4. HTMLの場合はheadタグのog:image / twitter:imageを検出する
//  5. 検出した画像URLも再度SSRF検証にかける
func (r *Resolver) Resolve(ctx context.Context, inputURL string) (string, error) {
	if inputURL == "" {
		return "", model.NewInvalidImageURLAPIError("URLが入力されていません")
	}

	// SSRF検証
	if err := r.ssrfGuard.ValidateURL(inputURL); err != nil {
		return "", model.NewSSRFBlockedAPIError()
	}

	// HTTPリクエスト送信
	client := r.ssrfGuard.NewSafeClient(10*time.Second, 5*1024*1024)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, inputURL, nil)
	if err != nil {
		return "", model.NewInvalidImageURLAPIError(err.Error())
	}
	req.Header.Set("User-Agent", "Tabegoro/1.0 BFF")
	req.Header.Set("Accept", "image/*, text/html, */*")

	resp, err := client.Do(req)
	if err != nil {
		return "", model.NewInvalidImageURLAPIError(fmt.Sprintf("URLへのアクセスに失敗: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", model.NewInvalidImageURLAPIError(fmt.Sprintf("ステータス %d が返されました", resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	// 画像直接判定
	if strings.HasPrefix(mediaType, "image/") {
		return inputURL, nil
	}

	if !strings.Contains(mediaType, "html") {
		return "", model.NewInvalidImageURLAPIError("画像でもWebページでもありません")
	}

	// レスポンスボディを読み込み（最大5MB）
	const maxBodySize = 5 * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", model.NewInvalidImageURLAPIError(fmt.Sprintf("レスポンスの読み取りに失敗: %v", err))
	}

	// HTMLからog:image等を検出
	imageURL := parseMetaImageFromHTML(body, inputURL)
	if imageURL == "" {
		return "", model.NewInvalidImageURLAPIError("ページから代表画像を検出できませんでした")
	}

	// 検出した画像URLも検証する
	if err := r.ssrfGuard.ValidateURL(imageURL); err != nil {
		return "", model.NewSSRFBlockedAPIError()
	}

	return imageURL, nil
}

// parseMetaImageFromHTML はHTMLのheadタグから代表画像URLを解析・検出する。
// 相対URLはbaseURLを基準に絶対URLに解決される。
// 複数候補がある場合はmetaImagePropertiesの優先度順に選択する。
func parseMetaImageFromHTML(htmlBody []byte, baseURL string) string {
	baseU, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	// property -> content のマップ。優先度判定は走査後に行う。
	found := make(map[string]string)

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return selectMetaImage(found, baseU)

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}

			if tagName == "body" {
				// bodyに入ったらheadの解析を終了
				return selectMetaImage(found, baseU)
			}

			if !inHead || tagName != "meta" || !hasAttr {
				continue
			}

			// meta要素の属性を解析
			var property, content string
			for {
				key, val, more := tokenizer.TagAttr()
				k := strings.ToLower(string(key))
				v := string(val)
				switch k {
				case "property", "name":
					property = strings.ToLower(v)
				case "content":
					content = v
				}
				if !more {
					break
				}
			}

			if property == "" || content == "" {
				continue
			}
			for _, candidate := range metaImageProperties {
				if property == candidate {
					if _, exists := found[candidate]; !exists {
						found[candidate] = content
					}
					break
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return selectMetaImage(found, baseU)
			}
		}
	}
}

// selectMetaImage は検出済みの候補から優先度順に選択し、絶対URLへ解決する。
func selectMetaImage(found map[string]string, base *url.URL) string {
	for _, property := range metaImageProperties {
		if content, ok := found[property]; ok {
			if resolved := resolveURL(base, content); resolved != "" {
				return resolved
			}
		}
	}
	return ""
}

// resolveURL は相対URLをベースURLを基準に絶対URLに解決する。
func resolveURL(base *url.URL, rawRef string) string {
	ref, err := url.Parse(rawRef)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
