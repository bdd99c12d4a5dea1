package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/memoraos/neuralmap/internal/provider"
)

// Snapshot is a stored provider payload.
type Snapshot struct {
	ID            int64            `json:"id"`
	Source        string           `json:"source"`
	CategoryCount int              `json:"category_count"`
	EdgeCount     int              `json:"edge_count"`
	FetchedAt     int64            `json:"fetched_at"`
	Payload       provider.Payload `json:"-"`
}

// SnapshotCategory is one category row of a stored snapshot.
type SnapshotCategory struct {
	CategoryID    string `json:"category_id"`
	Name          string `json:"name"`
	Notifications int    `json:"notifications"`
}

// SaveSnapshot stores a payload and its category index in one transaction.
func (db *DB) SaveSnapshot(source string, p provider.Payload) (*Snapshot, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	var cats []provider.Node
	for _, n := range p.Nodes {
		if n.Type == "CATEGORY" && n.ID != "" {
			cats = append(cats, n)
		}
	}

	now := time.Now().UnixMilli()
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin save snapshot: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		INSERT INTO graph_snapshots (source, category_count, edge_count, payload, fetched_at)
		VALUES (?, ?, ?, ?, ?)
	`, source, len(cats), len(p.Edges), string(raw), now)
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}
	id, _ := result.LastInsertId()

	for _, c := range cats {
		name := c.Name
		if name == "" {
			name = strings.TrimPrefix(c.ID, "category_")
		}
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO snapshot_categories (snapshot_id, category_id, name, notifications)
			VALUES (?, ?, ?, ?)
		`, id, c.ID, name, max(c.Notifications, 0)); err != nil {
			return nil, fmt.Errorf("insert snapshot category %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return &Snapshot{
		ID:            id,
		Source:        source,
		CategoryCount: len(cats),
		EdgeCount:     len(p.Edges),
		FetchedAt:     now,
		Payload:       p,
	}, nil
}

// LatestSnapshot returns the most recent snapshot with its payload, or nil
// if none has been stored.
func (db *DB) LatestSnapshot() (*Snapshot, error) {
	var s Snapshot
	var raw string
	err := db.QueryRow(`
		SELECT id, source, category_count, edge_count, payload, fetched_at
		FROM graph_snapshots ORDER BY fetched_at DESC, id DESC LIMIT 1
	`).Scan(&s.ID, &s.Source, &s.CategoryCount, &s.EdgeCount, &raw, &s.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &s.Payload); err != nil {
		return nil, fmt.Errorf("decode snapshot %d: %w", s.ID, err)
	}
	return &s, nil
}

// ListSnapshots returns snapshot metadata, newest first. Payloads are not
// loaded.
func (db *DB) ListSnapshots(limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`
		SELECT id, source, category_count, edge_count, fetched_at
		FROM graph_snapshots ORDER BY fetched_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.Source, &s.CategoryCount, &s.EdgeCount, &s.FetchedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SnapshotCategories returns the categories recorded for a snapshot,
// ordered by name.
func (db *DB) SnapshotCategories(id int64) ([]SnapshotCategory, error) {
	rows, err := db.Query(`
		SELECT category_id, name, notifications
		FROM snapshot_categories WHERE snapshot_id = ? ORDER BY name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list snapshot categories: %w", err)
	}
	defer rows.Close()

	var out []SnapshotCategory
	for rows.Next() {
		var c SnapshotCategory
		if err := rows.Scan(&c.CategoryID, &c.Name, &c.Notifications); err != nil {
			return nil, fmt.Errorf("scan snapshot category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PruneSnapshots deletes all but the newest keep snapshots and returns how
// many were removed. Category rows go with them.
func (db *DB) PruneSnapshots(keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	result, err := db.Exec(`
		DELETE FROM graph_snapshots WHERE id NOT IN (
			SELECT id FROM graph_snapshots ORDER BY fetched_at DESC, id DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// CountSnapshots returns the number of stored snapshots.
func (db *DB) CountSnapshots() (int, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM graph_snapshots").Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}
