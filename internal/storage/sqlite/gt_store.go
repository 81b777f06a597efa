package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/coda-infos/internal/coda"
)

// GTEntryStore records ground-truth database indexes.
type GTEntryStore struct {
	db *sql.DB
}

// NewGTEntryStore creates a new GTEntryStore.
func NewGTEntryStore(db *sql.DB) *GTEntryStore {
	return &GTEntryStore{db: db}
}

var _ coda.GTCatalog = (*GTEntryStore)(nil)

// InsertIndex replaces the catalogued entries of split with index. Entry
// order within each class is preserved.
func (s *GTEntryStore) InsertIndex(ctx context.Context, split string, index coda.GTIndex) error {
	type encoded struct{ box, bbox string }
	boxes := make(map[string][]encoded, len(index))
	for _, class := range index.Classes() {
		for pos, e := range index[class] {
			box, err := json.Marshal(e.Box3DLidar)
			if err != nil {
				return fmt.Errorf("encode %s entry %d box: %w", class, pos, err)
			}
			bbox, err := json.Marshal(e.BBox)
			if err != nil {
				return fmt.Errorf("encode %s entry %d bbox: %w", class, pos, err)
			}
			boxes[class] = append(boxes[class], encoded{string(box), string(bbox)})
		}
	}

	now := time.Now().UnixNano()
	return retryOnBusy(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx, `DELETE FROM gt_entries WHERE split = ?`, split); err != nil {
			return fmt.Errorf("clear split %s: %w", split, err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO gt_entries (
				entry_id, split, class_name, position, path, image_idx, gt_idx,
				box3d_lidar, num_points, difficulty, bbox, score, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, class := range index.Classes() {
			for pos, e := range index[class] {
				enc := boxes[class][pos]
				if _, err := stmt.ExecContext(ctx,
					uuid.New().String(), split, class, pos, e.Path, e.ImageIdx, e.GTIdx,
					enc.box, e.NumPoints, e.Difficulty, enc.bbox, e.Score, now,
				); err != nil {
					return fmt.Errorf("insert %s entry %d: %w", class, pos, err)
				}
			}
		}
		return tx.Commit()
	})
}

// ListByClass returns the entries of one class in split, in index order.
func (s *GTEntryStore) ListByClass(ctx context.Context, split, class string) ([]coda.GTEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT class_name, path, image_idx, gt_idx, box3d_lidar, num_points,
		       difficulty, bbox, score
		FROM gt_entries
		WHERE split = ? AND class_name = ?
		ORDER BY position`, split, class)
	if err != nil {
		return nil, fmt.Errorf("query gt entries: %w", err)
	}
	defer rows.Close()

	var entries []coda.GTEntry
	for rows.Next() {
		var e coda.GTEntry
		var box, bbox string
		if err := rows.Scan(&e.Name, &e.Path, &e.ImageIdx, &e.GTIdx, &box, &e.NumPoints,
			&e.Difficulty, &bbox, &e.Score); err != nil {
			return nil, fmt.Errorf("scan gt entry row: %w", err)
		}
		if err := json.Unmarshal([]byte(box), &e.Box3DLidar); err != nil {
			return nil, fmt.Errorf("decode box3d_lidar: %w", err)
		}
		if err := json.Unmarshal([]byte(bbox), &e.BBox); err != nil {
			return nil, fmt.Errorf("decode bbox: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ClassCounts returns the number of catalogued entries per class in split.
func (s *GTEntryStore) ClassCounts(ctx context.Context, split string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT class_name, COUNT(*) FROM gt_entries WHERE split = ? GROUP BY class_name`, split)
	if err != nil {
		return nil, fmt.Errorf("query class counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var class string
		var n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, fmt.Errorf("scan class count: %w", err)
		}
		counts[class] = n
	}
	return counts, rows.Err()
}
