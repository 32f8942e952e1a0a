package scraper

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// DiscoverLinks returns the absolute http(s) hyperlinks in doc in document
// order without duplicates. Malformed markup is tolerated; the tokenizer
// simply yields what it can.
func DiscoverLinks(doc string) []string {
	links := []string{}
	seen := make(map[string]struct{})

	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return links
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.A {
				continue
			}
			for _, attr := range tok.Attr {
				if attr.Key != "href" {
					continue
				}
				href := strings.TrimSpace(attr.Val)
				if !isAbsoluteHTTP(href) {
					break
				}
				if _, dup := seen[href]; !dup {
					seen[href] = struct{}{}
					links = append(links, href)
				}
				break
			}
		}
	}
}
