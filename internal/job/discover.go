package job

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// feedLink はHTMLのheadで告知されているフィードへのリンク。
type feedLink struct {
	URL  string
	Atom bool
}

var feedMediaTypes = []string{"application/rss+xml", "application/atom+xml"}

var xmlMediaTypes = []string{"text/xml", "application/xml"}

// isFeed はContent-Typeと本文の先頭からRSS/Atomフィードかを判定する。
func isFeed(contentType string, body []byte) bool {
	mediaType := mediaTypeOf(contentType)
	for _, mt := range feedMediaTypes {
		if mediaType == mt {
			return true
		}
	}

	isXML := false
	for _, mt := range xmlMediaTypes {
		if mediaType == mt {
			isXML = true
			break
		}
	}
	if !isXML || len(body) == 0 {
		return false
	}

	// ルート要素は先頭4KBに収まる
	prefix := body
	if len(prefix) > 4096 {
		prefix = prefix[:4096]
	}
	head := strings.ToLower(string(prefix))
	if strings.Contains(head, "<rss") || strings.Contains(head, "<rdf:rdf") {
		return true
	}
	return strings.Contains(head, "<feed") && strings.Contains(head, "http://www.w3.org/2005/atom")
}

func isHTML(contentType string) bool {
	return strings.Contains(mediaTypeOf(contentType), "html")
}

func mediaTypeOf(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mediaType)
}

// findFeedLinks はheadの<link rel="alternate">からフィードのURLを集める。
// 相対URLはbaseURLで解決する。
func findFeedLinks(body []byte, baseURL string) []feedLink {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	var links []feedLink
	z := html.NewTokenizer(bytes.NewReader(body))
	inHead := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return links

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "head":
				inHead = true
				continue
			case "body":
				return links
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}

			var rel, typ, href string
			for more := true; more; {
				var key, val []byte
				key, val, more = z.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					typ = strings.ToLower(string(val))
				case "href":
					href = string(val)
				}
			}
			if rel != "alternate" || href == "" {
				continue
			}
			if typ != "application/rss+xml" && typ != "application/atom+xml" {
				continue
			}
			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			links = append(links, feedLink{
				URL:  base.ResolveReference(ref).String(),
				Atom: typ == "application/atom+xml",
			})

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return links
			}
		}
	}
}

// bestFeedLink は同一ホストのリンクを最優先に、次にAtomを優先して1件選ぶ。
// 同点の場合は先に現れたものを選ぶ。
func bestFeedLink(links []feedLink, pageURL string) (feedLink, bool) {
	if len(links) == 0 {
		return feedLink{}, false
	}
	host := hostOf(pageURL)
	best, bestScore := 0, -1
	for i, l := range links {
		score := 0
		if hostOf(l.URL) == host {
			score += 100
		}
		if l.Atom {
			score += 10
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return links[best], true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
