package sqlite

import (
	"context"
	"fmt"
)

// exportTables whitelists the tables the snapshot may dump, in a stable
// order. Core tables belong to the external producer but are included
// read-only for the visualization layer.
var exportTables = []string{
	"projects",
	"epics",
	"stories",
	"tasks",
	"dependencies",
	"task_activity",
	"task_files",
	"task_dependencies",
}

// ExportTables returns the snapshot table names in dump order.
func ExportTables() []string {
	out := make([]string, len(exportTables))
	copy(out, exportTables)
	return out
}

// DumpTable returns every row of a whitelisted table as generic maps with
// NULL columns omitted, for serialization into the export snapshot.
// A missing core table (producer has not run yet) yields an empty slice.
func (s *Store) DumpTable(ctx context.Context, table string) ([]map[string]interface{}, error) {
	allowed := false
	for _, t := range exportTables {
		if t == table {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: table %q is not exportable", ErrValidation, table)
	}

	var name string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
	if err != nil {
		if IsNotFound(wrapDBError("dump", err)) {
			return nil, nil
		}
		return nil, wrapDBErrorf(err, "dump %s", table)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, wrapDBErrorf(err, "dump %s", table)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, wrapDBErrorf(err, "dump %s", table)
	}

	var out []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrapDBErrorf(err, "dump %s", table)
		}

		row := make(map[string]interface{}, len(cols))
		for i, col := range cols {
			if values[i] == nil {
				continue
			}
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
