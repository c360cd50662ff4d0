package seogate

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Service is the edge gateway. Stateless per request: the only shared state
// is the page store and the content database, both external resources with
// last-write-wins upserts.
type Service struct {
	cfg Config

	classifier *Classifier
	store      *PageStore
	renderer   *renderClient
	content    *ContentDB

	// sitemapRoutes maps a request path to its sitemap variant; built once
	// from config.
	sitemapRoutes map[string]string

	httpClient *http.Client

	bgSem chan struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup

	renderFailLog *rateLimitedLogger

	stats *statsCollector
}

func NewService(cfg Config) (*Service, error) {
	classifier, err := newClassifier(cfg.Classify.BotAgents, cfg.Classify.AssetPrefixes, cfg.Classify.Routes)
	if err != nil {
		return nil, err
	}
	store, err := openPageStore(cfg.Storage.Path, cfg.Storage.maxBytes)
	if err != nil {
		return nil, err
	}

	s := &Service{
		cfg:           cfg,
		classifier:    classifier,
		store:         store,
		renderer:      newRenderClient(cfg.Renderer.URL, cfg.Renderer.Token, cfg.Renderer.timeoutDur),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		bgSem:         make(chan struct{}, 32),
		stopCh:        make(chan struct{}),
		renderFailLog: newRateLimitedLogger(1 * time.Minute),
	}

	if cfg.Sitemap.DBPath != "" {
		content, err := OpenContentDB(cfg.Sitemap.DBPath)
		if err != nil {
			store.close()
			return nil, err
		}
		s.content = content
		s.sitemapRoutes = buildSitemapPaths(cfg.Sitemap)
	}

	if cfg.Logging.logStatsEveryDur > 0 {
		s.stats = newStatsCollector()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.statsLoop(cfg.Logging.logStatsEveryDur)
		}()
	}

	if s.content != nil && cfg.Sitemap.regenDur > 0 {
		log.Printf("sitemap regeneration interval: %s", cfg.Sitemap.regenDur)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.sitemapLoop(cfg.Sitemap.regenDur)
		}()
	}

	return s, nil
}

func (s *Service) Close() {
	close(s.stopCh)
	s.wg.Wait()
	s.store.close()
	if s.content != nil {
		_ = s.content.Close()
	}
}

func (s *Service) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

// handle is the per-request decision function. Terminal outcomes only; no
// collaborator failure escapes as a 5xx -- the worst case for any request is
// pass-through to the SPA shell.
func (s *Service) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if variant, ok := s.sitemapRoutes[path]; ok {
		s.serveSitemap(w, r, variant)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		s.proxyPass(w, r, "pass-through")
		return
	}

	cls := s.classifier.Classify(path, r.Header.Get("User-Agent"))
	if cls.IsStaticAsset {
		s.proxyPass(w, r, "static")
		return
	}
	if !cls.IsRenderable || !cls.IsBot {
		// Humans always get the SPA shell, even on renderable routes: no
		// added latency on real-user traffic.
		s.proxyPass(w, r, "pass-through")
		return
	}

	s.serveBot(w, r)
}

func (s *Service) serveBot(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	key := CacheKey(path, r.URL.Query())
	now := time.Now().Unix()

	if s.cfg.Renderer.Mode == "cache-first" {
		if page, ok := s.store.Get(key); ok && page.Fresh(now) {
			s.writePage(w, page, "bot-cache")
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Renderer.timeoutDur)
	defer cancel()
	html, err := s.renderer.Render(ctx, path, s.cfg.Renderer.Lang, r.Header.Get("User-Agent"))
	if err == nil {
		s.writeHTML(w, html, "bot-live", "live")
		s.storeRendered(key, path, html)
		return
	}
	s.renderFailLog.Printf("live render failed for %s: %v", path, err)

	// Stale is acceptable here: a stored page beats the bare shell for a
	// crawler when the renderer is down.
	if page, ok := s.store.Get(key); ok {
		s.writePage(w, page, "bot-cache-fallback")
		return
	}
	s.proxyPass(w, r, "bot-fallback")
}

func (s *Service) writePage(w http.ResponseWriter, page CachedPage, outcome string) {
	s.writeHTML(w, page.HTML, outcome, "cache")
}

func (s *Service) writeHTML(w http.ResponseWriter, body []byte, outcome, source string) {
	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("Cache-Control", "public, max-age=3600")
	setGateHeaders(h, outcome, source)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	if s.stats != nil {
		s.stats.Observe(outcome, len(body))
	}
}

// storeRendered upserts a freshly rendered page into the store off the hot
// path, with its descriptive metadata extracted from the document.
func (s *Service) storeRendered(key, path string, html []byte) {
	body := append([]byte(nil), html...)
	s.runAfterResponse(func(ctx context.Context) {
		title, description, canonical := extractPageMeta(body)
		now := time.Now()
		s.store.PutAsync(key, CachedPage{
			Path:         path,
			HTML:         body,
			StoredAt:     now.Unix(),
			ExpiresAt:    now.Add(s.cfg.Storage.pageTTLDur).Unix(),
			SizeBytes:    int64(len(body)),
			Title:        title,
			Description:  description,
			CanonicalURL: canonical,
			RenderedBy:   "live",
		})
	})
}

// runAfterResponse schedules work to continue after the response is written.
// The task is tracked by the service WaitGroup so Close drains it; the
// semaphore bounds concurrency but the acquire blocks rather than dropping
// the task.
func (s *Service) runAfterResponse(task func(context.Context)) {
	select {
	case s.bgSem <- struct{}{}:
	case <-s.stopCh:
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() { <-s.bgSem }()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		task(ctx)
	}()
}

// ---- pass-through ----

type originResponse struct {
	status int
	header http.Header
	body   []byte
}

func (s *Service) proxyPass(w http.ResponseWriter, r *http.Request, outcome string) {
	resp, err := s.fetchFromOrigin(r)
	if err != nil {
		setGateHeaders(w.Header(), "bad-gateway", "origin")
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	for k, vs := range resp.header {
		if strings.EqualFold(k, "x-seogate") || strings.EqualFold(k, "x-seogate-source") {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	setGateHeaders(w.Header(), outcome, "origin")
	w.WriteHeader(resp.status)
	_, _ = w.Write(resp.body)
	if s.stats != nil {
		s.stats.Observe(outcome, len(resp.body))
	}
}

func (s *Service) fetchFromOrigin(r *http.Request) (originResponse, error) {
	originURL := s.cfg.Server.Origin + r.URL.RequestURI()
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, originURL, nil)
	if err != nil {
		return originResponse{}, err
	}
	copyHeaders(req.Header, r.Header)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return originResponse{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return originResponse{}, err
	}

	header := cloneHeader(resp.Header)
	header.Del("Content-Length")
	return originResponse{status: resp.StatusCode, header: header, body: body}, nil
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		if strings.EqualFold(k, "Host") {
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vs := range h {
		vv := make([]string, len(vs))
		copy(vv, vs)
		out[k] = vv
	}
	return out
}

// ---- diagnostic headers ----

func setGateHeaders(h http.Header, outcome, source string) {
	if outcome != "" {
		h.Set("X-Seogate", outcome)
	}
	if source != "" {
		h.Set("X-Seogate-Source", source)
	}
	// If this is used from a browser in a CORS context, custom headers are not
	// readable by JS unless explicitly exposed.
	ensureExposedHeader(h, "X-Seogate")
	ensureExposedHeader(h, "X-Seogate-Source")
}

func ensureExposedHeader(h http.Header, name string) {
	if name == "" {
		return
	}

	const expose = "Access-Control-Expose-Headers"
	cur := h.Values(expose)
	if len(cur) == 0 {
		h.Set(expose, name)
		return
	}

	// Merge into a single comma-separated value.
	merged := strings.Join(cur, ",")
	for _, part := range strings.Split(merged, ",") {
		if strings.EqualFold(strings.TrimSpace(part), name) {
			return
		}
	}

	h.Set(expose, strings.TrimSpace(merged)+", "+name)
}

func init() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}
