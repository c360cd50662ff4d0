package seogate

import (
	"net/url"
	"sort"
	"strings"
)

// keyRule canonicalizes query parameters into the cache key for routes where
// the query is semantically part of the page. Everything else keys on the
// path verbatim, so parameter ordering or tracking params never fragment the
// cache.
type keyRule struct {
	prefix string
	params []string // whitelisted params, emitted in sorted order
}

var cacheKeyRules = []keyRule{
	{prefix: "/sitemap", params: []string{"country"}},
	{prefix: "/news", params: []string{"topic"}},
}

// CacheKey derives the canonical cache key for a request path and its query
// parameters.
func CacheKey(path string, query url.Values) string {
	for _, rule := range cacheKeyRules {
		if !strings.HasPrefix(path, rule.prefix) {
			continue
		}
		kept := make([]string, 0, len(rule.params))
		for _, p := range rule.params {
			if v := query.Get(p); v != "" {
				kept = append(kept, p+"="+url.QueryEscape(v))
			}
		}
		if len(kept) == 0 {
			return path
		}
		sort.Strings(kept)
		return path + "?" + strings.Join(kept, "&")
	}
	return path
}
