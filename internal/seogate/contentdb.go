package seogate

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ContentDB is the SQLite content store backing sitemap generation, plus the
// sitemap_metadata observability rows.
type ContentDB struct {
	*sql.DB
	path string
}

type NewsItem struct {
	Slug        string
	Country     string
	PublishedAt time.Time
	Popularity  int64
}

type WikiEntity struct {
	Slug      string
	UpdatedAt time.Time
}

type TopicTag struct {
	Tag        string
	UsageCount int64
}

type SitemapMetadata struct {
	Variant           string
	URLCount          int
	LastGeneratedAt   sql.NullTime
	GenerationTimeMs  int64
	FileSizeBytes     int64
	LastPingAt        sql.NullTime
	GooglePingSuccess sql.NullBool
	BingPingSuccess   sql.NullBool
}

func OpenContentDB(path string) (*ContentDB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open content database: %w", err)
	}
	db := &ContentDB{DB: sqlDB, path: path}
	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func (db *ContentDB) InitSchema() error {
	_, err := db.Exec(contentSchema)
	return err
}

// NewsItems returns items for a country, most recent first, capped at limit.
func (db *ContentDB) NewsItems(ctx context.Context, country string, limit int) ([]NewsItem, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT slug, country, published_at, popularity
		FROM news_items WHERE country = ?
		ORDER BY published_at DESC, slug ASC
		LIMIT ?
	`, country, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query news items: %w", err)
	}
	defer rows.Close()

	var out []NewsItem
	for rows.Next() {
		var it NewsItem
		if err := rows.Scan(&it.Slug, &it.Country, &it.PublishedAt, &it.Popularity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (db *ContentDB) WikiEntities(ctx context.Context, limit int) ([]WikiEntity, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT slug, updated_at FROM wiki_entities
		ORDER BY slug ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query wiki entities: %w", err)
	}
	defer rows.Close()

	var out []WikiEntity
	for rows.Next() {
		var e WikiEntity
		if err := rows.Scan(&e.Slug, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TopTopics returns the most-used topic tags, the popularity cap for very
// large topic sets.
func (db *ContentDB) TopTopics(ctx context.Context, limit int) ([]TopicTag, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tag, usage_count FROM topic_tags
		ORDER BY usage_count DESC, tag ASC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query topic tags: %w", err)
	}
	defer rows.Close()

	var out []TopicTag
	for rows.Next() {
		var t TopicTag
		if err := rows.Scan(&t.Tag, &t.UsageCount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecordGeneration upserts the generation half of a variant's metadata row,
// leaving ping fields untouched.
func (db *ContentDB) RecordGeneration(ctx context.Context, variant string, urlCount int, took time.Duration, sizeBytes int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sitemap_metadata (variant, url_count, last_generated_at, generation_time_ms, file_size_bytes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(variant) DO UPDATE SET
			url_count = excluded.url_count,
			last_generated_at = excluded.last_generated_at,
			generation_time_ms = excluded.generation_time_ms,
			file_size_bytes = excluded.file_size_bytes
	`, variant, urlCount, time.Now().UTC(), took.Milliseconds(), sizeBytes)
	if err != nil {
		return fmt.Errorf("failed to record generation: %w", err)
	}
	return nil
}

// RecordPingResults updates the ping half of a variant's metadata row. The
// ping job may run on a different cadence than generation; a missing row is
// created so a ping is never lost.
func (db *ContentDB) RecordPingResults(ctx context.Context, variant string, results map[string]bool, at time.Time) error {
	google, googleOK := results["google"]
	bing, bingOK := results["bing"]
	_, err := db.ExecContext(ctx, `
		INSERT INTO sitemap_metadata (variant, last_ping_at, google_ping_success, bing_ping_success)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(variant) DO UPDATE SET
			last_ping_at = excluded.last_ping_at,
			google_ping_success = COALESCE(excluded.google_ping_success, sitemap_metadata.google_ping_success),
			bing_ping_success = COALESCE(excluded.bing_ping_success, sitemap_metadata.bing_ping_success)
	`, variant, at.UTC(), nullBool(google, googleOK), nullBool(bing, bingOK))
	if err != nil {
		return fmt.Errorf("failed to record ping results: %w", err)
	}
	return nil
}

func nullBool(v, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

// Metadata returns the row for a variant, or sql.ErrNoRows.
func (db *ContentDB) Metadata(ctx context.Context, variant string) (SitemapMetadata, error) {
	var m SitemapMetadata
	err := db.QueryRowContext(ctx, `
		SELECT variant, url_count, last_generated_at, COALESCE(generation_time_ms, 0),
		       COALESCE(file_size_bytes, 0), last_ping_at, google_ping_success, bing_ping_success
		FROM sitemap_metadata WHERE variant = ?
	`, variant).Scan(
		&m.Variant, &m.URLCount, &m.LastGeneratedAt, &m.GenerationTimeMs,
		&m.FileSizeBytes, &m.LastPingAt, &m.GooglePingSuccess, &m.BingPingSuccess,
	)
	if err != nil {
		return SitemapMetadata{}, err
	}
	return m, nil
}

// ListMetadata returns all variant rows, for the CLI status table.
func (db *ContentDB) ListMetadata(ctx context.Context) ([]SitemapMetadata, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT variant, url_count, last_generated_at, COALESCE(generation_time_ms, 0),
		       COALESCE(file_size_bytes, 0), last_ping_at, google_ping_success, bing_ping_success
		FROM sitemap_metadata ORDER BY variant ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sitemap metadata: %w", err)
	}
	defer rows.Close()

	var out []SitemapMetadata
	for rows.Next() {
		var m SitemapMetadata
		if err := rows.Scan(
			&m.Variant, &m.URLCount, &m.LastGeneratedAt, &m.GenerationTimeMs,
			&m.FileSizeBytes, &m.LastPingAt, &m.GooglePingSuccess, &m.BingPingSuccess,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ---- seeding (used by the ingestion job and tests) ----

func (db *ContentDB) InsertNewsItem(ctx context.Context, it NewsItem) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO news_items (slug, country, published_at, popularity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(country, slug) DO UPDATE SET
			published_at = excluded.published_at,
			popularity = excluded.popularity
	`, it.Slug, it.Country, it.PublishedAt.UTC(), it.Popularity)
	return err
}

func (db *ContentDB) InsertWikiEntity(ctx context.Context, e WikiEntity) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO wiki_entities (slug, updated_at) VALUES (?, ?)
		ON CONFLICT(slug) DO UPDATE SET updated_at = excluded.updated_at
	`, e.Slug, e.UpdatedAt.UTC())
	return err
}

func (db *ContentDB) InsertTopicTag(ctx context.Context, t TopicTag) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO topic_tags (tag, usage_count) VALUES (?, ?)
		ON CONFLICT(tag) DO UPDATE SET usage_count = excluded.usage_count
	`, t.Tag, t.UsageCount)
	return err
}
