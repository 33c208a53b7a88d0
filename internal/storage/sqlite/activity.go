package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/srstomp/ohno/internal/idgen"
	"github.com/srstomp/ohno/internal/types"
)

// insertActivity writes one audit entry inside an open transaction. The
// caller owns the transaction boundary.
func insertActivity(ctx context.Context, conn *sql.Conn, act *types.TaskActivity) error {
	if act.CreatedAt.IsZero() {
		act.CreatedAt = time.Now()
	}
	id, err := generateUniqueID(ctx, conn, "task_activity",
		idgen.ActivityID(act.TaskID, string(act.ActivityType), act.CreatedAt))
	if err != nil {
		return wrapDBError("insert activity", err)
	}
	act.ID = id

	_, err = conn.ExecContext(ctx, `
		INSERT INTO task_activity (id, task_id, activity_type, description,
		                           old_value, new_value, actor, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, act.TaskID, string(act.ActivityType), nullString(act.Description),
		nullString(act.OldValue), nullString(act.NewValue), nullString(act.Actor), act.CreatedAt)
	return wrapDBError("insert activity", err)
}

// AddActivity appends an audit entry to an existing task, optionally
// recording touched files. Returns the generated activity ID.
func (s *Store) AddActivity(ctx context.Context, act *types.TaskActivity, files []string) (string, error) {
	if act.TaskID == "" {
		return "", fmt.Errorf("%w: activity requires a task_id", ErrValidation)
	}
	if act.ActivityType == "" {
		act.ActivityType = types.ActivityNote
	}

	err := s.inTx(ctx, "add activity", func(conn *sql.Conn) error {
		var exists int
		err := conn.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE id = ?", act.TaskID).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("add activity %s: %w", act.TaskID, ErrNotFound)
		}
		if err != nil {
			return wrapDBError("add activity", err)
		}

		if err := insertActivity(ctx, conn, act); err != nil {
			return err
		}

		// Appending activity counts as touching the task.
		_, err = conn.ExecContext(ctx,
			"UPDATE tasks SET updated_at = ? WHERE id = ?", act.CreatedAt, act.TaskID)
		if err != nil {
			return wrapDBError("add activity", err)
		}

		for _, path := range files {
			_, err := conn.ExecContext(ctx, `
				INSERT INTO task_files (task_id, file_path, action, created_at)
				VALUES (?, ?, 'modified', ?)`,
				act.TaskID, path, act.CreatedAt)
			if err != nil {
				return wrapDBError("add activity", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return act.ID, nil
}

func scanActivity(rows *sql.Rows, withTitle bool) (*types.TaskActivity, error) {
	var a types.TaskActivity
	var description, oldValue, newValue, actor, taskTitle sql.NullString
	var createdAt sql.NullTime

	dest := []interface{}{
		&a.ID, &a.TaskID, &a.ActivityType, &description,
		&oldValue, &newValue, &actor, &createdAt,
	}
	if withTitle {
		dest = append(dest, &taskTitle)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	a.Description = description.String
	a.OldValue = oldValue.String
	a.NewValue = newValue.String
	a.Actor = actor.String
	a.TaskTitle = taskTitle.String
	if createdAt.Valid {
		a.CreatedAt = createdAt.Time
	}
	return &a, nil
}

// GetActivity returns a task's audit entries, most recent first.
func (s *Store) GetActivity(ctx context.Context, taskID string, limit int) ([]*types.TaskActivity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, activity_type, description, old_value, new_value, actor, created_at
		FROM task_activity
		WHERE task_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, wrapDBError("get activity", err)
	}
	defer rows.Close()

	var out []*types.TaskActivity
	for rows.Next() {
		a, err := scanActivity(rows, false)
		if err != nil {
			return nil, wrapDBError("get activity", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetRecentActivity returns the newest audit entries across all tasks,
// joined with task titles for display.
func (s *Store) GetRecentActivity(ctx context.Context, limit int) ([]*types.TaskActivity, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.task_id, a.activity_type, a.description,
		       a.old_value, a.new_value, a.actor, a.created_at, t.title
		FROM task_activity a
		JOIN tasks t ON a.task_id = t.id
		ORDER BY a.created_at DESC, a.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, wrapDBError("get recent activity", err)
	}
	defer rows.Close()

	var out []*types.TaskActivity
	for rows.Next() {
		a, err := scanActivity(rows, true)
		if err != nil {
			return nil, wrapDBError("get recent activity", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetTaskFiles returns the file associations recorded for a task.
func (s *Store) GetTaskFiles(ctx context.Context, taskID string) ([]*types.TaskFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, file_path, action, created_at
		FROM task_files
		WHERE task_id = ?
		ORDER BY created_at DESC, rowid DESC`, taskID)
	if err != nil {
		return nil, wrapDBError("get task files", err)
	}
	defer rows.Close()

	var out []*types.TaskFile
	for rows.Next() {
		var f types.TaskFile
		var action sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&f.ID, &f.TaskID, &f.FilePath, &action, &createdAt); err != nil {
			return nil, wrapDBError("get task files", err)
		}
		f.Action = action.String
		if createdAt.Valid {
			f.CreatedAt = createdAt.Time
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
