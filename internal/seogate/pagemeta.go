package seogate

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// extractPageMeta pulls the descriptive metadata out of a rendered document.
// Best-effort: a document goquery cannot parse yields empty fields, never an
// error, since the metadata is informational and not used for routing.
func extractPageMeta(html []byte) (title, description, canonical string) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", "", ""
	}
	title = strings.TrimSpace(doc.Find("title").First().Text())
	if v, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		description = strings.TrimSpace(v)
	}
	if v, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		canonical = strings.TrimSpace(v)
	}
	return title, description, canonical
}
