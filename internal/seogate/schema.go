package seogate

const contentSchema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;

-- News items: one row per published article
CREATE TABLE IF NOT EXISTS news_items (
    item_id INTEGER PRIMARY KEY AUTOINCREMENT,
    slug TEXT NOT NULL,
    country TEXT NOT NULL,            -- two-letter country code
    published_at TIMESTAMP NOT NULL,
    popularity INTEGER NOT NULL DEFAULT 0,
    UNIQUE(country, slug)
);

CREATE INDEX IF NOT EXISTS idx_news_country ON news_items(country);
CREATE INDEX IF NOT EXISTS idx_news_published ON news_items(published_at);

-- Wiki entities: one row per wiki page
CREATE TABLE IF NOT EXISTS wiki_entities (
    entity_id INTEGER PRIMARY KEY AUTOINCREMENT,
    slug TEXT NOT NULL UNIQUE,
    updated_at TIMESTAMP NOT NULL
);

-- Topic tags with a usage count as the popularity signal
CREATE TABLE IF NOT EXISTS topic_tags (
    tag_id INTEGER PRIMARY KEY AUTOINCREMENT,
    tag TEXT NOT NULL UNIQUE,
    usage_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_topics_usage ON topic_tags(usage_count);

-- Sitemap metadata: one row per sitemap variant. Generation fields and ping
-- fields are updated independently, possibly on different cadences.
CREATE TABLE IF NOT EXISTS sitemap_metadata (
    variant TEXT PRIMARY KEY,
    url_count INTEGER NOT NULL DEFAULT 0,
    last_generated_at TIMESTAMP,
    generation_time_ms INTEGER,
    file_size_bytes INTEGER,
    last_ping_at TIMESTAMP,
    google_ping_success BOOLEAN,
    bing_ping_success BOOLEAN
);
`
