package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'manager' CHECK (role IN ('admin', 'manager')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
    id        INTEGER PRIMARY KEY,
    title     TEXT NOT NULL,
    image     TEXT NOT NULL,
    icon      BLOB,
    icon_mime TEXT
);

CREATE TABLE IF NOT EXISTS points (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    email      TEXT NOT NULL,
    whatsapp   TEXT NOT NULL,
    latitude   REAL NOT NULL CHECK (latitude BETWEEN -90 AND 90),
    longitude  REAL NOT NULL CHECK (longitude BETWEEN -180 AND 180),
    uf         TEXT NOT NULL,
    city       TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_points_uf_city ON points(uf, city);

CREATE TABLE IF NOT EXISTS point_items (
    point_id INTEGER NOT NULL REFERENCES points(id) ON DELETE CASCADE,
    item_id  INTEGER NOT NULL REFERENCES items(id),
    PRIMARY KEY (point_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_point_items_item ON point_items(item_id);
`

// migrations are applied in order after the schema. Each one must be idempotent.
// Append new migrations at the end. The list stays empty until the schema above
// first changes after release.
var migrations = []string{}

// EnsureSchema creates all tables and indexes if they don't already exist and
// applies pending migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
