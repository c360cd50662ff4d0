package seogate

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"time"
)

// pingSearchEngines fires a best-effort GET at each engine's ping endpoint.
// Engines are independent: one failing or timing out never prevents the
// others from being attempted. Any 2xx counts as success.
func pingSearchEngines(ctx context.Context, client *http.Client, engines map[string]string, sitemapURL string) map[string]bool {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]bool, len(names))
	for _, name := range names {
		results[name] = pingOne(ctx, client, engines[name], sitemapURL)
	}
	return results
}

func pingOne(ctx context.Context, client *http.Client, endpoint, sitemapURL string) bool {
	pingURL := endpoint + "?sitemap=" + url.QueryEscape(sitemapURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 2048))
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// pingSitemap notifies the configured engines about a variant and records the
// outcome in the metadata row. Never surfaced to any HTTP response.
func (s *Service) pingSitemap(ctx context.Context, variant string) {
	cfg := s.cfg.Sitemap
	if len(cfg.Ping) == 0 || cfg.BaseURL == "" || s.content == nil {
		return
	}
	sitemapURL := cfg.BaseURL + variantPath(variant)
	results := pingSearchEngines(ctx, s.httpClient, cfg.Ping, sitemapURL)

	now := time.Now()
	if err := s.content.RecordPingResults(ctx, variant, results, now); err != nil {
		log.Printf("sitemap %s: record ping results: %v", variant, err)
	}
	for name, ok := range results {
		if !ok {
			log.Printf("sitemap %s: ping %s failed", variant, name)
		}
	}
}
