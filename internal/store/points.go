package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/ecoleta/internal/model"
)

const pointColumns = `id, name, email, whatsapp, latitude, longitude, uf, city, created_at`

// maxReportedItems bounds how many unknown item IDs a validation message lists.
const maxReportedItems = 10

// CreatePoint validates the input and stores a point together with its accepted
// items in one transaction. Invalid input or unknown item IDs yield a
// *model.ValidationError and nothing is written.
func CreatePoint(ctx context.Context, db *sql.DB, in model.PointInput) (*model.Point, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkItems(ctx, tx, in.Items); err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO points (name, email, whatsapp, latitude, longitude, uf, city)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.Name, in.Email, in.Whatsapp, *in.Latitude, *in.Longitude, in.UF, in.City,
	)
	if err != nil {
		return nil, fmt.Errorf("creating point: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting point id: %w", err)
	}

	if err := insertPointItems(ctx, tx, id, in.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing point: %w", err)
	}

	return GetPoint(ctx, db, id)
}

// GetPoint returns a point with its item IDs, or nil if there is none.
func GetPoint(ctx context.Context, db *sql.DB, id int64) (*model.Point, error) {
	p := &model.Point{}
	err := db.QueryRowContext(ctx,
		`SELECT `+pointColumns+` FROM points WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.Email, &p.Whatsapp, &p.Latitude, &p.Longitude, &p.UF, &p.City, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting point: %w", err)
	}

	byPoint, err := pointItems(ctx, db, `points.id = ?`, id)
	if err != nil {
		return nil, err
	}
	p.Items = byPoint[id]
	if p.Items == nil {
		p.Items = []int64{}
	}
	return p, nil
}

// ListPoints returns points matching the filter, ordered by ID. A point matches
// an item filter if it accepts any of the listed items.
func ListPoints(ctx context.Context, db *sql.DB, filter model.PointFilter) ([]model.Point, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	var where []string
	var args []any

	if filter.UF != "" {
		where = append(where, "points.uf = ?")
		args = append(args, strings.ToUpper(filter.UF))
	}
	if filter.City != "" {
		where = append(where, "points.city = ?")
		args = append(args, filter.City)
	}
	if len(filter.Items) > 0 {
		where = append(where,
			`points.id IN (SELECT point_id FROM point_items WHERE item_id IN (`+placeholders(len(filter.Items))+`))`)
		args = append(args, int64Args(filter.Items)...)
	}

	cond := "1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	points, err := scanPoints(ctx, db,
		`SELECT `+pointColumns+` FROM points WHERE `+cond+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}

	byPoint, err := pointItems(ctx, db, cond, args...)
	if err != nil {
		return nil, err
	}
	for i := range points {
		points[i].Items = byPoint[points[i].ID]
		if points[i].Items == nil {
			points[i].Items = []int64{}
		}
	}
	return points, nil
}

// UpdatePoint replaces a point's fields and accepted items. It returns nil if the
// point does not exist.
func UpdatePoint(ctx context.Context, db *sql.DB, id int64, in model.PointInput) (*model.Point, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE points SET name = ?, email = ?, whatsapp = ?, latitude = ?, longitude = ?, uf = ?, city = ?
		 WHERE id = ?`,
		in.Name, in.Email, in.Whatsapp, *in.Latitude, *in.Longitude, in.UF, in.City, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating point: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("checking point update: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	if err := checkItems(ctx, tx, in.Items); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM point_items WHERE point_id = ?`, id); err != nil {
		return nil, fmt.Errorf("clearing point items: %w", err)
	}
	if err := insertPointItems(ctx, tx, id, in.Items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing point update: %w", err)
	}

	return GetPoint(ctx, db, id)
}

// DeletePoint removes a point and its item associations. It reports false if the
// point did not exist.
func DeletePoint(ctx context.Context, db *sql.DB, id int64) (bool, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM point_items WHERE point_id = ?`, id); err != nil {
		return false, fmt.Errorf("deleting point items: %w", err)
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM points WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting point: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking point delete: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing point delete: %w", err)
	}
	return n > 0, nil
}

// checkItems fails with a validation error if any ID is not in the catalog.
func checkItems(ctx context.Context, tx *sql.Tx, ids []int64) error {
	missing, err := missingItems(ctx, tx, ids)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	shown := missing[:min(len(missing), maxReportedItems)]
	strs := make([]string, len(shown))
	for i, id := range shown {
		strs[i] = fmt.Sprint(id)
	}
	msg := "unknown item ids: " + strings.Join(strs, ", ")
	if rest := len(missing) - len(shown); rest > 0 {
		msg += fmt.Sprintf(" and %d more", rest)
	}
	return &model.ValidationError{Problems: []string{msg}}
}

func insertPointItems(ctx context.Context, tx *sql.Tx, pointID int64, items []int64) error {
	for _, itemID := range items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO point_items (point_id, item_id) VALUES (?, ?)`,
			pointID, itemID,
		); err != nil {
			return fmt.Errorf("linking item %d: %w", itemID, err)
		}
	}
	return nil
}

func scanPoints(ctx context.Context, db *sql.DB, query string, args ...any) ([]model.Point, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing points: %w", err)
	}
	defer rows.Close()

	var points []model.Point
	for rows.Next() {
		var p model.Point
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.Whatsapp, &p.Latitude, &p.Longitude, &p.UF, &p.City, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// pointItems returns the accepted item IDs of every point matching cond, a
// WHERE clause over the points table.
func pointItems(ctx context.Context, q queryer, cond string, args ...any) (map[int64][]int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT pi.point_id, pi.item_id FROM point_items pi
		 JOIN points ON points.id = pi.point_id
		 WHERE `+cond+`
		 ORDER BY pi.point_id, pi.item_id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("listing point items: %w", err)
	}
	defer rows.Close()

	byPoint := make(map[int64][]int64)
	for rows.Next() {
		var pointID, itemID int64
		if err := rows.Scan(&pointID, &itemID); err != nil {
			return nil, fmt.Errorf("scanning point item: %w", err)
		}
		byPoint[pointID] = append(byPoint[pointID], itemID)
	}
	return byPoint, rows.Err()
}
