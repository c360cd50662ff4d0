package seogate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestPingEnginesAreIsolated(t *testing.T) {
	var bingCalls atomic.Int64
	bing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bingCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer bing.Close()

	// Google's endpoint is a server that has already gone away: connection
	// refused, the harshest failure mode.
	google := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	googleURL := google.URL
	google.Close()

	engines := map[string]string{"google": googleURL, "bing": bing.URL}
	client := &http.Client{Timeout: 2 * time.Second}
	results := pingSearchEngines(context.Background(), client, engines, "https://syncpoint.example/sitemap.xml")

	if got, ok := results["google"]; !ok || got {
		t.Errorf("google result = %v, %v; want false, recorded", got, ok)
	}
	if got, ok := results["bing"]; !ok || !got {
		t.Errorf("bing result = %v, %v; want true, recorded", got, ok)
	}
	if n := bingCalls.Load(); n != 1 {
		t.Errorf("bing attempted %d times despite google failing, want 1", n)
	}
}

func TestPingNon2xxIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 2 * time.Second}
	if pingOne(context.Background(), client, srv.URL, "https://syncpoint.example/sitemap.xml") {
		t.Error("pingOne() = true for a 429 response")
	}
}

func TestPingSitemapURLEncoding(t *testing.T) {
	var gotSitemap string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSitemap = r.URL.Query().Get("sitemap")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 2 * time.Second}
	if !pingOne(context.Background(), client, srv.URL, "https://syncpoint.example/sitemap-news-us.xml") {
		t.Fatal("pingOne() failed against a 200 server")
	}
	if gotSitemap != "https://syncpoint.example/sitemap-news-us.xml" {
		t.Errorf("sitemap param = %q", gotSitemap)
	}
}

// The ping runs after the sitemap response is already written, through the
// service's background facility, and its outcome lands in the metadata row.
func TestPingRunsAfterSitemapResponse(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ok.Close()

	b := newFakeBackends(t, okRenderer)
	svc := newSitemapService(t, b, func(cfg *Config) {
		cfg.Sitemap.Ping = map[string]string{"google": ok.URL, "bing": ok.URL}
	})
	seedContent(t, svc)

	rec := doRequest(svc, "/sitemap-news-us.xml?refresh=true", chromeUA)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	ctx := context.Background()
	deadline := time.Now().Add(2 * time.Second)
	for {
		m, err := svc.content.Metadata(ctx, "news-us")
		if err == nil && m.LastPingAt.Valid {
			if !m.GooglePingSuccess.Valid || !m.GooglePingSuccess.Bool {
				t.Errorf("google ping success = %+v, want true", m.GooglePingSuccess)
			}
			if !m.BingPingSuccess.Valid || !m.BingPingSuccess.Bool {
				t.Errorf("bing ping success = %+v, want true", m.BingPingSuccess)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("ping results never recorded")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
