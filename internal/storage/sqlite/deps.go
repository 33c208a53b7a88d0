package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/srstomp/ohno/internal/idgen"
	"github.com/srstomp/ohno/internal/types"
)

// AddDependency records that taskID depends on dependsOnID. Re-adding an
// existing edge is a no-op returning the existing edge ID; the edge ID is
// derived from the endpoints alone, so the same pair always hashes to the
// same ID. Cycles are not rejected.
func (s *Store) AddDependency(ctx context.Context, taskID, dependsOnID string, depType types.DependencyType) (string, error) {
	if taskID == dependsOnID {
		return "", fmt.Errorf("%w: task cannot depend on itself", ErrValidation)
	}
	if depType == "" {
		depType = types.DepBlocks
	}
	if !depType.IsValid() {
		return "", fmt.Errorf("%w: invalid dependency type: %s", ErrValidation, depType)
	}

	var id string
	err := s.inTx(ctx, "add dependency", func(conn *sql.Conn) error {
		for _, tid := range []string{taskID, dependsOnID} {
			var exists int
			err := conn.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE id = ?", tid).Scan(&exists)
			if err == sql.ErrNoRows {
				return fmt.Errorf("add dependency: task %s: %w", tid, ErrNotFound)
			}
			if err != nil {
				return wrapDBError("add dependency", err)
			}
		}

		err := conn.QueryRowContext(ctx,
			"SELECT id FROM task_dependencies WHERE task_id = ? AND depends_on_task_id = ?",
			taskID, dependsOnID).Scan(&id)
		if err == nil {
			return nil // existing edge, idempotent
		}
		if err != sql.ErrNoRows {
			return wrapDBError("add dependency", err)
		}

		id = idgen.DependencyID(taskID, dependsOnID)
		_, err = conn.ExecContext(ctx, `
			INSERT INTO task_dependencies (id, task_id, depends_on_task_id, dependency_type, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			id, taskID, dependsOnID, string(depType), time.Now())
		return wrapDBError("add dependency", err)
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// RemoveDependency deletes the edge from taskID to dependsOnID. Reports
// whether a row was removed.
func (s *Store) RemoveDependency(ctx context.Context, taskID, dependsOnID string) (bool, error) {
	var removed bool
	err := s.inTx(ctx, "remove dependency", func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			"DELETE FROM task_dependencies WHERE task_id = ? AND depends_on_task_id = ?",
			taskID, dependsOnID)
		if err != nil {
			return wrapDBError("remove dependency", err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	return removed, err
}

const depSelect = `
SELECT d.id, d.task_id, d.depends_on_task_id, d.dependency_type, d.created_at,
       t.title, t.status
FROM task_dependencies d
JOIN tasks t ON d.depends_on_task_id = t.id
`

func (s *Store) queryDeps(ctx context.Context, op, query string, args ...interface{}) ([]*types.TaskDependency, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError(op, err)
	}
	defer rows.Close()

	var out []*types.TaskDependency
	for rows.Next() {
		var d types.TaskDependency
		var createdAt sql.NullTime
		if err := rows.Scan(&d.ID, &d.TaskID, &d.DependsOnID, &d.Type, &createdAt,
			&d.DependsOnTitle, &d.DependsOnStatus); err != nil {
			return nil, wrapDBError(op, err)
		}
		if createdAt.Valid {
			d.CreatedAt = createdAt.Time
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// GetDependencies returns a task's outgoing edges with the depended-upon
// task's current title and status joined in.
func (s *Store) GetDependencies(ctx context.Context, taskID string) ([]*types.TaskDependency, error) {
	return s.queryDeps(ctx, "get dependencies",
		depSelect+"WHERE d.task_id = ? ORDER BY d.created_at", taskID)
}

// GetBlocking returns the subset of a task's dependencies whose target has
// not reached done. Blocking is direct-edge-only; no transitive traversal.
func (s *Store) GetBlocking(ctx context.Context, taskID string) ([]*types.TaskDependency, error) {
	return s.queryDeps(ctx, "get blocking",
		depSelect+"WHERE d.task_id = ? AND t.status != 'done' ORDER BY d.created_at", taskID)
}

// IsBlocked reports whether any dependency of taskID points at an
// unfinished task.
func (s *Store) IsBlocked(ctx context.Context, taskID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM task_dependencies d
		JOIN tasks t ON d.depends_on_task_id = t.id
		WHERE d.task_id = ? AND t.status != 'done'`, taskID).Scan(&n)
	if err != nil {
		return false, wrapDBError("is blocked", err)
	}
	return n > 0, nil
}
