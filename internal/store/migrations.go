package store

const schema = `
CREATE TABLE IF NOT EXISTS niches (
    id                     INTEGER PRIMARY KEY AUTOINCREMENT,
    name                   TEXT NOT NULL UNIQUE,
    amazon_commission_rate REAL,
    created_at             DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS keywords (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword    TEXT NOT NULL,
    language   TEXT NOT NULL,
    loc_id     INTEGER NOT NULL,
    type       TEXT NOT NULL DEFAULT '',
    created_at DATETIME NOT NULL,
    UNIQUE(keyword, language, loc_id)
);

CREATE TABLE IF NOT EXISTS niches_keywords (
    niche_id   INTEGER NOT NULL REFERENCES niches(id),
    keyword_id INTEGER NOT NULL REFERENCES keywords(id),
    PRIMARY KEY (niche_id, keyword_id)
);

CREATE TABLE IF NOT EXISTS metrics_reports (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword_id  INTEGER NOT NULL REFERENCES keywords(id),
    competition REAL NOT NULL,
    volume      INTEGER NOT NULL,
    cpc         REAL NOT NULL,
    cpc_dollars REAL NOT NULL,
    sd          INTEGER NOT NULL,
    pd          INTEGER NOT NULL,
    created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_metrics_keyword ON metrics_reports(keyword_id, created_at);

CREATE TABLE IF NOT EXISTS serp_analyses (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword_id INTEGER NOT NULL REFERENCES keywords(id),
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_serp_keyword ON serp_analyses(keyword_id, created_at);

CREATE TABLE IF NOT EXISTS serp_analysis_items (
    id                 INTEGER PRIMARY KEY AUTOINCREMENT,
    serp_analysis_id   INTEGER NOT NULL REFERENCES serp_analyses(id),
    url                TEXT,
    title              TEXT,
    domain             TEXT,
    position           INTEGER,
    type               TEXT,
    clicks             INTEGER,
    domain_authority   INTEGER,
    facebook_shares    INTEGER,
    pinterest_shares   INTEGER,
    linkedin_shares    INTEGER,
    google_shares      INTEGER,
    reddit_shares      INTEGER,
    backlinks          INTEGER,
    referring_domains  INTEGER,
    nofollow_backlinks INTEGER,
    dofollow_backlinks INTEGER,
    created_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_serp_items_analysis ON serp_analysis_items(serp_analysis_id);

CREATE TABLE IF NOT EXISTS suggestion_sets (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    keyword_id INTEGER NOT NULL REFERENCES keywords(id),
    created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_suggestion_sets_keyword ON suggestion_sets(keyword_id, created_at);

CREATE TABLE IF NOT EXISTS suggestion_sets_keywords (
    suggestion_set_id INTEGER NOT NULL REFERENCES suggestion_sets(id),
    keyword_id        INTEGER NOT NULL REFERENCES keywords(id),
    PRIMARY KEY (suggestion_set_id, keyword_id)
);

CREATE TABLE IF NOT EXISTS amazon_products (
    asin              TEXT PRIMARY KEY,
    title             TEXT NOT NULL,
    price_usd         REAL NOT NULL,
    is_sponsored      BOOLEAN NOT NULL DEFAULT 0,
    rating            REAL,
    reviews           INTEGER,
    bought_last_month INTEGER,
    seen_at           DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS niches_amazon_products (
    niche_id            INTEGER NOT NULL REFERENCES niches(id),
    amazon_product_asin TEXT NOT NULL REFERENCES amazon_products(asin),
    PRIMARY KEY (niche_id, amazon_product_asin)
);
`
