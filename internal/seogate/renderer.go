package seogate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// RenderError is the tagged failure of a live render attempt. Status is 0 for
// network-level failures. Callers fall back to cache-or-pass-through; a
// render failure never becomes a 5xx to the end user.
type RenderError struct {
	Status  int
	Message string
}

func (e *RenderError) Error() string {
	if e.Status == 0 {
		return "render: " + e.Message
	}
	return fmt.Sprintf("render: status %d: %s", e.Status, e.Message)
}

// renderClient calls the external renderer. Single attempt, bounded timeout,
// no retries: retries belong upstream, not on the latency-bounded request
// path. Concurrent renders of the same path are collapsed into one call.
type renderClient struct {
	baseURL string
	token   string
	client  *http.Client

	inflight singleflight.Group
}

func newRenderClient(baseURL, token string, timeout time.Duration) *renderClient {
	return &renderClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// Render fetches fully-formed HTML for path. The original User-Agent is
// forwarded so the renderer can make its own bot decisions. The body is
// buffered in full before returning, so no partial document ever reaches a
// response writer.
func (rc *renderClient) Render(ctx context.Context, path, lang, userAgent string) ([]byte, error) {
	v, err, _ := rc.inflight.Do(path+"|"+lang, func() (any, error) {
		return rc.renderOnce(ctx, path, lang, userAgent)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (rc *renderClient) renderOnce(ctx context.Context, path, lang, userAgent string) ([]byte, error) {
	q := url.Values{}
	q.Set("path", path)
	q.Set("lang", lang)
	renderURL := rc.baseURL + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, renderURL, nil)
	if err != nil {
		return nil, &RenderError{Message: err.Error()}
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if rc.token != "" {
		req.Header.Set("Authorization", "Bearer "+rc.token)
	}

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, &RenderError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RenderError{Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return nil, &RenderError{Status: resp.StatusCode, Message: msg}
	}
	return body, nil
}
