package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DescriptionSanitizer は求人説明のHTMLを許可リスト方式で無害化する。
//
// 許可するのは段落・改行・リスト・強調・見出し(h3, h4)・リンク・httpsの画像のみ。
// リンクには target="_blank" と rel="noopener noreferrer" が付与される。
type DescriptionSanitizer struct {
	policy *bluemonday.Policy
	plain  *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerを生成する。
func NewDescriptionSanitizer() *DescriptionSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em", "b", "i",
		"h3", "h4", "blockquote",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(*url.URL) bool { return true })

	return &DescriptionSanitizer{
		policy: p,
		plain:  bluemonday.StrictPolicy(),
	}
}

// Sanitize は求人説明のHTMLを無害化する。同じ入力には常に同じ出力を返す。
func (s *DescriptionSanitizer) Sanitize(rawHTML string) string {
	return strings.TrimSpace(s.policy.Sanitize(rawHTML))
}

// StripTags はタグをすべて取り除いたテキストを返す。タイトルなど単一行の項目に使う。
func (s *DescriptionSanitizer) StripTags(raw string) string {
	return strings.TrimSpace(s.plain.Sanitize(raw))
}
