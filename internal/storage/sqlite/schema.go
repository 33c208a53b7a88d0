package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schemaVersion marks the auxiliary schema revision. It is recorded in
// ohno_metadata after provisioning so re-opens can short-circuit the
// per-column probing.
const schemaVersion = "1"

// auxSchema holds the tables this engine owns. The core tables
// (projects, epics, stories, tasks) belong to the external producer and
// are never created or redefined here.
const auxSchema = `
CREATE TABLE IF NOT EXISTS task_activity (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    activity_type TEXT NOT NULL,
    description TEXT,
    old_value TEXT,
    new_value TEXT,
    actor TEXT,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS task_dependencies (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    depends_on_task_id TEXT NOT NULL,
    dependency_type TEXT NOT NULL DEFAULT 'blocks',
    created_at TEXT NOT NULL,
    UNIQUE(task_id, depends_on_task_id)
);

CREATE TABLE IF NOT EXISTS task_files (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    task_id TEXT NOT NULL,
    file_path TEXT NOT NULL,
    action TEXT,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ohno_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_task_activity_task_id ON task_activity(task_id);
CREATE INDEX IF NOT EXISTS idx_task_deps_task_id ON task_dependencies(task_id);
CREATE INDEX IF NOT EXISTS idx_task_files_task_id ON task_files(task_id);
`

// extendedTaskColumns are added to the producer's tasks table.
// Order matters only for readability; each ALTER tolerates the column
// already existing.
var extendedTaskColumns = []struct {
	name string
	ddl  string
}{
	{"description", "TEXT"},
	{"context_summary", "TEXT"},
	{"working_files", "TEXT"},
	{"blockers", "TEXT"},
	{"handoff_notes", "TEXT"},
	{"progress_percent", "INTEGER"},
	{"actual_hours", "REAL"},
	{"created_at", "TEXT"},
	{"updated_at", "TEXT"},
	{"created_by", "TEXT"},
	{"activity_summary", "TEXT"},
}

// Provision applies the auxiliary schema. It is a no-op on an already
// provisioned store and is skipped silently when the core tasks table does
// not exist yet.
func (s *Store) Provision(ctx context.Context) error {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name='tasks'`).Scan(&name)
	if err == sql.ErrNoRows {
		// Producer has not populated this database yet.
		return nil
	}
	if err != nil {
		return wrapDBError("provision", err)
	}

	// A matching version marker means the columns are already in place.
	if v, err := s.metadataValue(ctx, "schema_version"); err == nil && v == schemaVersion {
		s.provisioned.Store(true)
		return nil
	}

	if _, err := s.db.ExecContext(ctx, auxSchema); err != nil {
		return wrapDBError("provision", err)
	}

	for _, col := range extendedTaskColumns {
		stmt := fmt.Sprintf("ALTER TABLE tasks ADD COLUMN %s %s", col.name, col.ddl)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return wrapDBErrorf(err, "provision: add column %s", col.name)
		}
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO ohno_metadata (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, schemaVersion); err != nil {
		return wrapDBError("provision", err)
	}

	s.provisioned.Store(true)
	return nil
}

func (s *Store) metadataValue(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM ohno_metadata WHERE key = ?`, key).Scan(&v)
	if err != nil {
		return "", wrapDBError("metadata", err)
	}
	return v, nil
}
