package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
)

const jwtSecretKey = "jwt_secret"

// GetSetting returns a stored setting and whether it exists.
func GetSetting(ctx context.Context, db *sql.DB, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting setting %s: %w", key, err)
	}
	return value, true, nil
}

// ensureSetting stores candidate under key unless a value already exists, then
// returns whichever value is stored. INSERT OR IGNORE followed by a read keeps
// concurrent first starts agreeing on one value.
func ensureSetting(ctx context.Context, db *sql.DB, key, candidate string) (string, error) {
	if _, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`,
		key, candidate,
	); err != nil {
		return "", fmt.Errorf("storing setting %s: %w", key, err)
	}

	value, _, err := GetSetting(ctx, db, key)
	return value, err
}

// GetJWTSecret returns the token signing secret, generating and persisting one on
// first use.
func GetJWTSecret(ctx context.Context, db *sql.DB) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating jwt secret: %w", err)
	}
	return ensureSetting(ctx, db, jwtSecretKey, hex.EncodeToString(buf))
}
