package seogate

import (
	"context"
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// fixedPages are the named routes every main sitemap carries.
var fixedPages = []string{"/", "/news", "/wiki", "/about", "/timeline"}

type urlsetXML struct {
	XMLName xml.Name      `xml:"urlset"`
	Xmlns   string        `xml:"xmlns,attr"`
	URLs    []urlEntryXML `xml:"url"`
}

type urlEntryXML struct {
	Loc     string `xml:"loc"`
	Lastmod string `xml:"lastmod,omitempty"`
}

func buildSitemapPaths(cfg SitemapConfig) map[string]string {
	paths := map[string]string{"/sitemap.xml": "main"}
	for _, cc := range cfg.Countries {
		paths["/sitemap-news-"+cc+".xml"] = "news-" + cc
	}
	return paths
}

func variantPath(variant string) string {
	if variant == "main" {
		return "/sitemap.xml"
	}
	return "/sitemap-" + variant + ".xml"
}

// bucketLastmod rounds a timestamp down to the bucket boundary so repeated
// generations within the bucket are byte-stable.
func bucketLastmod(t time.Time, bucket time.Duration) string {
	return t.UTC().Truncate(bucket).Format("2006-01-02T15:04:05Z")
}

func (s *Service) serveSitemap(w http.ResponseWriter, r *http.Request, variant string) {
	key := variantPath(variant)
	refresh := r.URL.Query().Get("refresh") == "true"
	now := time.Now().Unix()

	if !refresh {
		if page, ok := s.store.Get(key); ok && page.Fresh(now) {
			s.writeXML(w, page.HTML, "sitemap-hit", "cache")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	body, err := s.generateAndStore(ctx, variant)
	if err != nil {
		log.Printf("sitemap %s: generation failed: %v", variant, err)
		// Stale beats nothing; only a variant that was never generated 404s.
		if page, ok := s.store.Get(key); ok {
			s.writeXML(w, page.HTML, "sitemap-stale", "cache")
			return
		}
		setGateHeaders(w.Header(), "sitemap-unavailable", "")
		http.NotFound(w, r)
		return
	}

	s.writeXML(w, body, "sitemap-refresh", "live")

	// Ping happens after the response is already sent, never blocking it.
	s.runAfterResponse(func(ctx context.Context) {
		s.pingSitemap(ctx, variant)
	})
}

func (s *Service) writeXML(w http.ResponseWriter, body []byte, outcome, source string) {
	h := w.Header()
	h.Set("Content-Type", "application/xml; charset=utf-8")
	h.Set("Cache-Control", "public, max-age=3600")
	setGateHeaders(h, outcome, source)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// generateAndStore builds the variant's XML, writes it into the page store
// under the sitemap path, and records generation metadata.
func (s *Service) generateAndStore(ctx context.Context, variant string) ([]byte, error) {
	start := time.Now()
	body, count, err := s.generateSitemap(ctx, variant)
	if err != nil {
		return nil, err
	}
	took := time.Since(start)

	key := variantPath(variant)
	now := time.Now()
	s.store.Put(key, CachedPage{
		Path:       key,
		HTML:       body,
		StoredAt:   now.Unix(),
		ExpiresAt:  now.Add(s.cfg.Sitemap.ttlDur).Unix(),
		SizeBytes:  int64(len(body)),
		RenderedBy: "sitemap",
	})

	if err := s.content.RecordGeneration(ctx, variant, count, took, int64(len(body))); err != nil {
		log.Printf("sitemap %s: record generation: %v", variant, err)
	}
	return body, nil
}

func (s *Service) generateSitemap(ctx context.Context, variant string) ([]byte, int, error) {
	cfg := s.cfg.Sitemap
	var entries []urlEntryXML
	var err error

	switch {
	case variant == "main":
		entries, err = s.mainEntries(ctx)
	case strings.HasPrefix(variant, "news-"):
		entries, err = s.newsEntries(ctx, strings.TrimPrefix(variant, "news-"))
	default:
		return nil, 0, fmt.Errorf("unknown sitemap variant %q", variant)
	}
	if err != nil {
		return nil, 0, err
	}
	if len(entries) > cfg.MaxEntries {
		entries = entries[:cfg.MaxEntries]
	}

	doc := urlsetXML{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  entries,
	}
	b, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, 0, err
	}
	out := append([]byte(xml.Header), b...)
	out = append(out, '\n')
	return out, len(entries), nil
}

func (s *Service) mainEntries(ctx context.Context) ([]urlEntryXML, error) {
	cfg := s.cfg.Sitemap
	nowmod := bucketLastmod(time.Now(), cfg.bucketDur)

	entries := make([]urlEntryXML, 0, len(fixedPages))
	for _, p := range fixedPages {
		entries = append(entries, urlEntryXML{Loc: cfg.BaseURL + p, Lastmod: nowmod})
	}

	wiki, err := s.content.WikiEntities(ctx, cfg.MaxEntries)
	if err != nil {
		return nil, err
	}
	for _, e := range wiki {
		entries = append(entries, urlEntryXML{
			Loc:     cfg.BaseURL + "/wiki/" + e.Slug,
			Lastmod: bucketLastmod(e.UpdatedAt, cfg.bucketDur),
		})
	}

	topics, err := s.content.TopTopics(ctx, cfg.MaxEntries)
	if err != nil {
		return nil, err
	}
	for _, t := range topics {
		entries = append(entries, urlEntryXML{
			Loc:     cfg.BaseURL + "/topic/" + t.Tag,
			Lastmod: nowmod,
		})
	}
	return entries, nil
}

func (s *Service) newsEntries(ctx context.Context, country string) ([]urlEntryXML, error) {
	cfg := s.cfg.Sitemap
	items, err := s.content.NewsItems(ctx, country, cfg.MaxEntries)
	if err != nil {
		return nil, err
	}
	entries := make([]urlEntryXML, 0, len(items))
	for _, it := range items {
		entries = append(entries, urlEntryXML{
			Loc:     cfg.BaseURL + "/news/" + it.Country + "/" + it.Slug,
			Lastmod: bucketLastmod(it.PublishedAt, cfg.bucketDur),
		})
	}
	return entries, nil
}

// GenerateSitemaps regenerates every configured variant. Scopes are
// independent, keyed by their own cache paths, so they run in parallel.
func (s *Service) GenerateSitemaps(ctx context.Context) error {
	if s.content == nil {
		return fmt.Errorf("sitemap.dbPath is not configured")
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, variant := range s.sitemapRoutes {
		variant := variant
		g.Go(func() error {
			_, err := s.generateAndStore(ctx, variant)
			if err != nil {
				return fmt.Errorf("sitemap %s: %w", variant, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// SitemapStatus returns the stored per-variant metadata rows.
func (s *Service) SitemapStatus(ctx context.Context) ([]SitemapMetadata, error) {
	if s.content == nil {
		return nil, fmt.Errorf("sitemap.dbPath is not configured")
	}
	return s.content.ListMetadata(ctx)
}

func (s *Service) sitemapLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			if err := s.GenerateSitemaps(ctx); err != nil {
				log.Printf("sitemap regeneration: %v", err)
				cancel()
				continue
			}
			for _, variant := range s.sitemapRoutes {
				s.pingSitemap(ctx, variant)
			}
			cancel()
		}
	}
}
