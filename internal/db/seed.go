package db

import (
	"context"
	"database/sql"
	"fmt"
)

// DefaultItem is a catalog entry inserted when the database is created.
type DefaultItem struct {
	Title string
	Image string
}

// DefaultItems is the standard collection catalog. Image names refer to the
// icons embedded under /uploads/.
var DefaultItems = []DefaultItem{
	{"Lâmpadas", "lampadas.svg"},
	{"Pilhas e Baterias", "baterias.svg"},
	{"Papéis e Papelão", "papeis-papelao.svg"},
	{"Resíduos Eletrônicos", "eletronicos.svg"},
	{"Resíduos Orgânicos", "organicos.svg"},
	{"Óleo de Cozinha", "oleo.svg"},
}

// SeedItems inserts DefaultItems when the items table is empty. It returns the
// number of rows inserted.
func SeedItems(ctx context.Context, db *sql.DB) (int, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	if count > 0 {
		return 0, nil
	}

	for _, it := range DefaultItems {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO items (title, image) VALUES (?, ?)`, it.Title, it.Image,
		); err != nil {
			return 0, fmt.Errorf("seeding item %q: %w", it.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing seed: %w", err)
	}
	return len(DefaultItems), nil
}
