package seogate

import "testing"

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := newClassifier(defaultBotAgents, defaultAssetPrefixes, defaultRoutePatterns)
	if err != nil {
		t.Fatalf("newClassifier() failed: %v", err)
	}
	return c
}

const (
	chromeUA    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"
	googlebotUA = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestClassifyStaticAssets(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		path string
		want bool
	}{
		{"/assets/app.js", true},
		{"/static/logo.svg", true},
		{"/favicon.ico", true},
		{"/api/votes", true},
		{"/news/us/some-slug.json", true}, // extension dot in final segment
		{"/", false},
		{"/news", false},
		{"/wiki/Aurora_Station", false},
	}
	for _, tt := range tests {
		got := c.Classify(tt.path, googlebotUA)
		if got.IsStaticAsset != tt.want {
			t.Errorf("Classify(%q).IsStaticAsset = %v, want %v", tt.path, got.IsStaticAsset, tt.want)
		}
		if tt.want && (got.IsBot || got.IsRenderable) {
			t.Errorf("Classify(%q): static asset must short-circuit bot/renderable, got %+v", tt.path, got)
		}
	}
}

func TestClassifyBots(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		name string
		ua   string
		want bool
	}{
		{"googlebot", googlebotUA, true},
		{"bingbot", "Mozilla/5.0 (compatible; bingbot/2.0; +http://www.bing.com/bingbot.htm)", true},
		{"uppercase", "GOOGLEBOT/2.1", true},
		{"twitter unfurler", "Twitterbot/1.0", true},
		{"ai crawler", "GPTBot/1.2", true},
		{"generic spider", "my-random-spider/0.1", true},
		{"desktop chrome", chromeUA, false},
		{"empty", "", false},
		{"curl", "curl/8.5.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Classify("/news", tt.ua); got.IsBot != tt.want {
				t.Errorf("IsBot = %v, want %v", got.IsBot, tt.want)
			}
		})
	}
}

func TestClassifyRenderableRoutes(t *testing.T) {
	c := newTestClassifier(t)

	tests := []struct {
		path string
		want bool
	}{
		{"/", true},
		{"/news", true},
		{"/news/us", true},
		{"/news/us/mars-landing", true},
		{"/news/us/2026-01-15/mars-landing", true},
		{"/date/2026-01-15", true},
		{"/volume/3", true},
		{"/volume/3/chapter/12", true},
		{"/wiki", true},
		{"/wiki/Aurora_Station", true},
		{"/topic/first-contact", true},
		{"/about", true},
		{"/timeline", true},
		{"/admin", false},
		{"/newsfeed", false},       // anchored: not a prefix match on /news
		{"/news/usa", false},       // country codes are two letters
		{"/news/us/extra/x", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := c.Classify(tt.path, chromeUA); got.IsRenderable != tt.want {
			t.Errorf("Classify(%q).IsRenderable = %v, want %v", tt.path, got.IsRenderable, tt.want)
		}
	}
}

func TestClassifyInjectedPatterns(t *testing.T) {
	c, err := newClassifier([]string{"testbot"}, []string{"/files/"}, []string{`^/only$`})
	if err != nil {
		t.Fatalf("newClassifier() failed: %v", err)
	}

	if got := c.Classify("/only", "TestBot/1.0"); !got.IsBot || !got.IsRenderable {
		t.Errorf("substituted patterns not honored: %+v", got)
	}
	if got := c.Classify("/news", googlebotUA); got.IsBot || got.IsRenderable {
		t.Errorf("default patterns leaked into substituted classifier: %+v", got)
	}
	if got := c.Classify("/files/x", googlebotUA); !got.IsStaticAsset {
		t.Errorf("substituted asset prefix not honored: %+v", got)
	}
}

func TestClassifyBadPattern(t *testing.T) {
	if _, err := newClassifier(nil, nil, []string{`^/[`}); err == nil {
		t.Fatal("expected error for invalid route pattern")
	}
}
