package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/erazemk/ecoleta/internal/model"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// CreateItem adds a catalog item with a default icon file name.
func CreateItem(ctx context.Context, db *sql.DB, title, image string) (*model.Item, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO items (title, image) VALUES (?, ?)`,
		title, image,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID, or nil if there is none.
func GetItem(ctx context.Context, db *sql.DB, id int64) (*model.Item, error) {
	item := &model.Item{}
	err := db.QueryRowContext(ctx,
		`SELECT id, title, image, icon IS NOT NULL FROM items WHERE id = ?`, id,
	).Scan(&item.ID, &item.Title, &item.Image, &item.HasIcon)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ListItems returns the whole catalog ordered by ID.
func ListItems(ctx context.Context, db *sql.DB) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, title, image, icon IS NOT NULL FROM items ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(&item.ID, &item.Title, &item.Image, &item.HasIcon); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetItemIcon stores an uploaded icon for an item. It reports false if the item
// does not exist.
func SetItemIcon(ctx context.Context, db *sql.DB, id int64, icon []byte, mime string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`UPDATE items SET icon = ?, icon_mime = ? WHERE id = ?`,
		icon, mime, id,
	)
	if err != nil {
		return false, fmt.Errorf("setting item icon: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking item icon update: %w", err)
	}
	return n > 0, nil
}

// GetItemIcon returns an item's uploaded icon and its MIME type. Data is nil when
// the item has no uploaded icon.
func GetItemIcon(ctx context.Context, db *sql.DB, id int64) ([]byte, string, error) {
	var icon []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT icon, icon_mime FROM items WHERE id = ?`, id,
	).Scan(&icon, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item icon: %w", err)
	}
	return icon, mime.String, nil
}

// itemBatch bounds the bound parameters of one item lookup, well below
// SQLite's per-statement variable limit.
const itemBatch = 500

// missingItems returns the IDs in ids that have no row in items.
func missingItems(ctx context.Context, q queryer, ids []int64) ([]int64, error) {
	found := make(map[int64]bool, len(ids))
	for batch := range slices.Chunk(ids, itemBatch) {
		if err := findItems(ctx, q, batch, found); err != nil {
			return nil, err
		}
	}

	var missing []int64
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	slices.Sort(missing)
	return missing, nil
}

func findItems(ctx context.Context, q queryer, ids []int64, found map[int64]bool) error {
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM items WHERE id IN (`+placeholders(len(ids))+`)`,
		int64Args(ids)...,
	)
	if err != nil {
		return fmt.Errorf("checking items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning item id: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("checking items: %w", err)
	}
	return nil
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
