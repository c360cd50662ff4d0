package seogate

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seogate.yaml")
	data := `
server:
  origin: http://localhost:3000/
renderer:
  url: https://render.example.com/render
  token: abc
sitemap:
  baseURL: https://syncpoint.example
  countries: [us, de]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Server.Origin != "http://localhost:3000" {
		t.Errorf("Origin = %q, want trailing slash trimmed", cfg.Server.Origin)
	}
	if cfg.Renderer.Mode != "live-first" {
		t.Errorf("Mode = %q, want live-first default", cfg.Renderer.Mode)
	}
	if cfg.Renderer.Lang != "en" {
		t.Errorf("Lang = %q, want en default", cfg.Renderer.Lang)
	}
	if cfg.Renderer.timeoutDur != 12*time.Second {
		t.Errorf("timeout = %s, want 12s default", cfg.Renderer.timeoutDur)
	}
	if len(cfg.Classify.BotAgents) == 0 || len(cfg.Classify.Routes) == 0 {
		t.Error("default classifier pattern sets not applied")
	}
	if cfg.Sitemap.bucketDur != 12*time.Hour {
		t.Errorf("lastmod bucket = %s, want 12h default", cfg.Sitemap.bucketDur)
	}
	if _, ok := cfg.Sitemap.Ping["google"]; !ok {
		t.Error("default ping endpoints not applied")
	}
	if cfg.Storage.maxBytes != 512*1024*1024 {
		t.Errorf("storage max = %d, want 512mb default", cfg.Storage.maxBytes)
	}
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing origin", "renderer:\n  url: http://r\n"},
		{"missing renderer url", "server:\n  origin: http://o\n"},
		{"bad mode", "server:\n  origin: http://o\nrenderer:\n  url: http://r\n  mode: eager\n"},
		{"bad country", "server:\n  origin: http://o\nrenderer:\n  url: http://r\nsitemap:\n  countries: [usa]\n"},
		{"bad timeout", "server:\n  origin: http://o\nrenderer:\n  url: http://r\n  timeout: fast\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "seogate.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
