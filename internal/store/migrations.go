package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "graph_snapshots: last good provider payloads",
		SQL: `
CREATE TABLE graph_snapshots (
    id             INTEGER PRIMARY KEY,
    source         TEXT NOT NULL,
    category_count INTEGER NOT NULL,
    edge_count     INTEGER NOT NULL,
    payload        TEXT NOT NULL CHECK (json_valid(payload)),
    fetched_at     INTEGER NOT NULL
);

CREATE INDEX idx_snapshots_fetched_at ON graph_snapshots(fetched_at DESC);
`,
	},
	{
		Version:     2,
		Description: "snapshot_categories: per-snapshot category index",
		SQL: `
CREATE TABLE snapshot_categories (
    snapshot_id   INTEGER NOT NULL,
    category_id   TEXT NOT NULL,
    name          TEXT NOT NULL,
    notifications INTEGER NOT NULL DEFAULT 0 CHECK (notifications >= 0),

    PRIMARY KEY (snapshot_id, category_id),
    FOREIGN KEY (snapshot_id) REFERENCES graph_snapshots(id) ON DELETE CASCADE
);

CREATE INDEX idx_snapshot_categories_name ON snapshot_categories(name);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
