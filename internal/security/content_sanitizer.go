// ContentSanitizerService はユーザー投稿テキストをサニタイズし、
// XSS攻撃などのセキュリティリスクから保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// レビュー本文は全タグ除去、レシピ説明は最小限の整形タグのみ通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はユーザー投稿コンテンツのサニタイズ機能の
// インターフェースを定義する。保存前およびAPI応答時に使用される。
type ContentSanitizerService interface {
	// SanitizeReview はレビュー本文をサニタイズしてプレーンテキストを返す。
	// レビューにHTMLは許可しない: すべてのタグと属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeReview(raw string) string

	// SanitizeRecipe はメニュー項目のレシピ説明をサニタイズする。
	// 整形用の最小限のタグ（p, br, ul, ol, li, strong, em）のみ通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	SanitizeRecipe(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	strict *bluemonday.Policy
	recipe *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのポリシーを2種類構築する:
//   - レビュー用: StrictPolicy。全タグ・全属性を除去する。
//   - レシピ用: p, br, ul, ol, li, strong, em のみ許可。リンクと画像は
//     許可しない（レシピ説明に外部参照は不要）。
func NewContentSanitizer() *contentSanitizer {
	recipe := bluemonday.NewPolicy()
	recipe.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em",
	)

	return &contentSanitizer{
		strict: bluemonday.StrictPolicy(),
		recipe: recipe,
	}
}

// SanitizeReview はレビュー本文をサニタイズしてプレーンテキストを返す。
func (s *contentSanitizer) SanitizeReview(raw string) string {
	return strings.TrimSpace(s.strict.Sanitize(raw))
}

// SanitizeRecipe はメニュー項目のレシピ説明をサニタイズする。
func (s *contentSanitizer) SanitizeRecipe(rawHTML string) string {
	return s.recipe.Sanitize(rawHTML)
}
