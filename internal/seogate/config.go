package seogate

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port   int    `yaml:"port"`
		Origin string `yaml:"origin"` // SPA shell / static upstream
	} `yaml:"server"`

	Renderer struct {
		URL     string `yaml:"url"`
		Token   string `yaml:"token"`
		Mode    string `yaml:"mode"` // live-first | cache-first
		Timeout string `yaml:"timeout"`
		Lang    string `yaml:"lang"`

		// compiled
		timeoutDur time.Duration
	} `yaml:"renderer"`

	Storage struct {
		Path    string `yaml:"path"`
		Max     string `yaml:"max"`
		PageTTL string `yaml:"pageTTL"`

		// compiled
		maxBytes   int64
		pageTTLDur time.Duration
	} `yaml:"storage"`

	Classify struct {
		BotAgents     []string `yaml:"botAgents"`
		AssetPrefixes []string `yaml:"assetPrefixes"`
		Routes        []string `yaml:"routes"`
	} `yaml:"classify"`

	Sitemap SitemapConfig `yaml:"sitemap"`

	Logging struct {
		LogStatsEvery string `yaml:"logStatsEvery"`

		// compiled
		logStatsEveryDur time.Duration
	} `yaml:"logging"`
}

type SitemapConfig struct {
	BaseURL         string            `yaml:"baseURL"`
	DBPath          string            `yaml:"dbPath"`
	Countries       []string          `yaml:"countries"`
	MaxEntries      int               `yaml:"maxEntries"`
	LastmodBucket   string            `yaml:"lastmodBucket"`
	TTL             string            `yaml:"ttl"`
	RegenerateEvery string            `yaml:"regenerateEvery"`
	Ping            map[string]string `yaml:"ping"`

	// compiled
	bucketDur time.Duration
	ttlDur    time.Duration
	regenDur  time.Duration
}

// defaultBotAgents are matched as lower-cased substrings of the User-Agent.
// Deliberately a substring test, not a UA parser: an impersonator is treated
// as a bot, an unlisted crawler as a human.
var defaultBotAgents = []string{
	"googlebot",
	"bingbot",
	"yandex",
	"baiduspider",
	"duckduckbot",
	"slurp",
	"facebookexternalhit",
	"facebot",
	"twitterbot",
	"linkedinbot",
	"whatsapp",
	"telegrambot",
	"discordbot",
	"slackbot",
	"pinterestbot",
	"applebot",
	"gptbot",
	"chatgpt-user",
	"claudebot",
	"anthropic-ai",
	"perplexitybot",
	"ccbot",
	"bytespider",
	"semrushbot",
	"ahrefsbot",
	"bot",
	"spider",
	"crawler",
}

// defaultRoutePatterns enumerate the SEO-significant routes. Anchored; no
// partial-path matches.
var defaultRoutePatterns = []string{
	`^/$`,
	`^/news$`,
	`^/news/[a-z]{2}$`,
	`^/news/[a-z]{2}/\d{4}-\d{2}-\d{2}/[a-z0-9-]+$`,
	`^/news/[a-z]{2}/[a-z0-9-]+$`,
	`^/date/\d{4}-\d{2}-\d{2}$`,
	`^/volume/\d+$`,
	`^/volume/\d+/chapter/\d+$`,
	`^/wiki$`,
	`^/wiki/[A-Za-z0-9_-]+$`,
	`^/topic/[a-z0-9-]+$`,
	`^/about$`,
	`^/timeline$`,
}

var defaultAssetPrefixes = []string{"/assets/", "/static/", "/@", "/favicon"}

func LoadConfig(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.compile(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) compile() error {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Origin == "" {
		return fmt.Errorf("server.origin is required")
	}
	cfg.Server.Origin = strings.TrimRight(cfg.Server.Origin, "/")

	if cfg.Renderer.URL == "" {
		return fmt.Errorf("renderer.url is required")
	}
	switch cfg.Renderer.Mode {
	case "":
		cfg.Renderer.Mode = "live-first"
	case "live-first", "cache-first":
	default:
		return fmt.Errorf("renderer.mode: unknown mode %q", cfg.Renderer.Mode)
	}
	if cfg.Renderer.Lang == "" {
		cfg.Renderer.Lang = "en"
	}
	cfg.Renderer.timeoutDur = 12 * time.Second
	if cfg.Renderer.Timeout != "" {
		d, err := time.ParseDuration(cfg.Renderer.Timeout)
		if err != nil {
			return fmt.Errorf("renderer.timeout: %w", err)
		}
		cfg.Renderer.timeoutDur = d
	}

	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "./data/pages"
	}
	if cfg.Storage.Max == "" {
		cfg.Storage.Max = "512mb"
	}
	maxBytes, err := parseBytes(cfg.Storage.Max)
	if err != nil {
		return fmt.Errorf("storage.max: %w", err)
	}
	cfg.Storage.maxBytes = maxBytes
	cfg.Storage.pageTTLDur = 1 * time.Hour
	if cfg.Storage.PageTTL != "" {
		d, err := time.ParseDuration(cfg.Storage.PageTTL)
		if err != nil {
			return fmt.Errorf("storage.pageTTL: %w", err)
		}
		cfg.Storage.pageTTLDur = d
	}

	if len(cfg.Classify.BotAgents) == 0 {
		cfg.Classify.BotAgents = defaultBotAgents
	}
	if len(cfg.Classify.AssetPrefixes) == 0 {
		cfg.Classify.AssetPrefixes = defaultAssetPrefixes
	}
	if len(cfg.Classify.Routes) == 0 {
		cfg.Classify.Routes = defaultRoutePatterns
	}

	if err := cfg.Sitemap.compile(); err != nil {
		return err
	}

	if cfg.Logging.LogStatsEvery != "" {
		d, err := time.ParseDuration(cfg.Logging.LogStatsEvery)
		if err != nil {
			return fmt.Errorf("logging.logStatsEvery: %w", err)
		}
		cfg.Logging.logStatsEveryDur = d
	}

	return nil
}

func (sc *SitemapConfig) compile() error {
	if sc.MaxEntries <= 0 {
		sc.MaxEntries = 5000
	}
	sc.bucketDur = 12 * time.Hour
	if sc.LastmodBucket != "" {
		d, err := time.ParseDuration(sc.LastmodBucket)
		if err != nil {
			return fmt.Errorf("sitemap.lastmodBucket: %w", err)
		}
		sc.bucketDur = d
	}
	sc.ttlDur = 24 * time.Hour
	if sc.TTL != "" {
		d, err := time.ParseDuration(sc.TTL)
		if err != nil {
			return fmt.Errorf("sitemap.ttl: %w", err)
		}
		sc.ttlDur = d
	}
	if sc.RegenerateEvery != "" {
		d, err := time.ParseDuration(sc.RegenerateEvery)
		if err != nil {
			return fmt.Errorf("sitemap.regenerateEvery: %w", err)
		}
		sc.regenDur = d
	}
	for _, cc := range sc.Countries {
		if len(cc) != 2 || strings.ToLower(cc) != cc {
			return fmt.Errorf("sitemap.countries: invalid country code %q", cc)
		}
	}
	if len(sc.Ping) == 0 && sc.BaseURL != "" {
		sc.Ping = map[string]string{
			"google": "https://www.google.com/ping",
			"bing":   "https://www.bing.com/ping",
		}
	}
	return nil
}
