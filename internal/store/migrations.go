package store

const schema = `
CREATE TABLE IF NOT EXISTS mentions (
    source       TEXT NOT NULL,
    id           TEXT NOT NULL,
    text         TEXT NOT NULL,
    normalized   TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL,
    engagement   REAL NOT NULL DEFAULT 0,
    author       TEXT NOT NULL DEFAULT '',
    url          TEXT NOT NULL DEFAULT '',
    collected_at DATETIME NOT NULL,
    tool         TEXT NOT NULL DEFAULT '',
    category     TEXT NOT NULL DEFAULT '',
    score        REAL NOT NULL DEFAULT 0,
    label        TEXT NOT NULL DEFAULT '',
    confidence   REAL NOT NULL DEFAULT 0,
    scored       BOOLEAN NOT NULL DEFAULT 0,
    PRIMARY KEY (source, id)
);

CREATE INDEX IF NOT EXISTS idx_mentions_created_at ON mentions(created_at);
CREATE INDEX IF NOT EXISTS idx_mentions_tool ON mentions(tool);
CREATE INDEX IF NOT EXISTS idx_mentions_label ON mentions(label);

CREATE TABLE IF NOT EXISTS aggregates (
    tool              TEXT PRIMARY KEY,
    category          TEXT NOT NULL DEFAULT '',
    n                 INTEGER NOT NULL DEFAULT 0,
    overall           REAL NOT NULL DEFAULT 0,
    pos               INTEGER NOT NULL DEFAULT 0,
    neg               INTEGER NOT NULL DEFAULT 0,
    perception        REAL NOT NULL DEFAULT 0,
    privacy_flag_rate REAL NOT NULL DEFAULT 0,
    privacy_score     REAL NOT NULL DEFAULT 0,
    trend             TEXT NOT NULL DEFAULT 'no_data',
    computed_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS aggregate_history (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    tool          TEXT NOT NULL,
    n             INTEGER NOT NULL DEFAULT 0,
    overall       REAL NOT NULL DEFAULT 0,
    perception    REAL NOT NULL DEFAULT 0,
    privacy_score REAL NOT NULL DEFAULT 0,
    trend         TEXT NOT NULL DEFAULT 'no_data',
    computed_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_tool ON aggregate_history(tool, computed_at);
`
