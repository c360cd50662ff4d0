package seogate

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func setupTestContentDB(t *testing.T) *ContentDB {
	t.Helper()
	db, err := OpenContentDB(filepath.Join(t.TempDir(), "content.db"))
	if err != nil {
		t.Fatalf("OpenContentDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewsItemsOrderedAndLimited(t *testing.T) {
	db := setupTestContentDB(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	for i, slug := range []string{"oldest", "middle", "newest"} {
		it := NewsItem{Slug: slug, Country: "us", PublishedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := db.InsertNewsItem(ctx, it); err != nil {
			t.Fatalf("InsertNewsItem(%s) failed: %v", slug, err)
		}
	}

	items, err := db.NewsItems(ctx, "us", 2)
	if err != nil {
		t.Fatalf("NewsItems() failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Slug != "newest" || items[1].Slug != "middle" {
		t.Errorf("order = [%s %s], want [newest middle]", items[0].Slug, items[1].Slug)
	}
}

func TestTopTopicsByUsage(t *testing.T) {
	db := setupTestContentDB(t)
	ctx := context.Background()

	for _, tt := range []TopicTag{{Tag: "rare", UsageCount: 1}, {Tag: "hot", UsageCount: 100}, {Tag: "warm", UsageCount: 10}} {
		if err := db.InsertTopicTag(ctx, tt); err != nil {
			t.Fatalf("InsertTopicTag(%s) failed: %v", tt.Tag, err)
		}
	}

	topics, err := db.TopTopics(ctx, 2)
	if err != nil {
		t.Fatalf("TopTopics() failed: %v", err)
	}
	if len(topics) != 2 || topics[0].Tag != "hot" || topics[1].Tag != "warm" {
		t.Errorf("TopTopics() = %+v, want hot then warm", topics)
	}
}

func TestGenerationAndPingUpdateIndependently(t *testing.T) {
	db := setupTestContentDB(t)
	ctx := context.Background()

	if err := db.RecordGeneration(ctx, "news-us", 42, 150*time.Millisecond, 2048); err != nil {
		t.Fatalf("RecordGeneration() failed: %v", err)
	}

	// Ping with only google reporting leaves bing untouched.
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	if err := db.RecordPingResults(ctx, "news-us", map[string]bool{"google": true}, at); err != nil {
		t.Fatalf("RecordPingResults() failed: %v", err)
	}

	m, err := db.Metadata(ctx, "news-us")
	if err != nil {
		t.Fatalf("Metadata() failed: %v", err)
	}
	if m.URLCount != 42 || m.GenerationTimeMs != 150 || m.FileSizeBytes != 2048 {
		t.Errorf("generation fields = %+v", m)
	}
	if !m.GooglePingSuccess.Valid || !m.GooglePingSuccess.Bool {
		t.Errorf("google ping = %+v, want valid true", m.GooglePingSuccess)
	}
	if m.BingPingSuccess.Valid {
		t.Errorf("bing ping = %+v, want untouched NULL", m.BingPingSuccess)
	}

	// A later generation must not clobber ping fields.
	if err := db.RecordGeneration(ctx, "news-us", 43, time.Millisecond, 1024); err != nil {
		t.Fatalf("second RecordGeneration() failed: %v", err)
	}
	m, err = db.Metadata(ctx, "news-us")
	if err != nil {
		t.Fatalf("Metadata() failed: %v", err)
	}
	if m.URLCount != 43 {
		t.Errorf("URLCount = %d, want 43", m.URLCount)
	}
	if !m.GooglePingSuccess.Valid || !m.LastPingAt.Valid {
		t.Error("ping fields lost after regeneration")
	}
}

func TestPingForUnknownVariantCreatesRow(t *testing.T) {
	db := setupTestContentDB(t)
	ctx := context.Background()

	if err := db.RecordPingResults(ctx, "news-de", map[string]bool{"google": false, "bing": true}, time.Now()); err != nil {
		t.Fatalf("RecordPingResults() failed: %v", err)
	}
	m, err := db.Metadata(ctx, "news-de")
	if err != nil {
		t.Fatalf("Metadata() failed: %v", err)
	}
	if m.GooglePingSuccess.Bool || !m.BingPingSuccess.Bool {
		t.Errorf("ping results = %+v", m)
	}
}
