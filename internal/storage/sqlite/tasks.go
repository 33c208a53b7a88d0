package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/srstomp/ohno/internal/idgen"
	"github.com/srstomp/ohno/internal/types"
)

// taskSelect joins through the externally-owned stories and epics tables to
// resolve display fields. A missing join target degrades to NULL, never an
// error.
const taskSelect = `
SELECT t.id, t.story_id, t.title, t.status, t.task_type,
       t.estimate_hours, t.actual_hours, t.description, t.context_summary,
       t.working_files, t.blockers, t.handoff_notes, t.progress_percent,
       t.activity_summary, t.created_at, t.updated_at, t.created_by,
       s.title, e.id, e.title, e.priority
FROM tasks t
LEFT JOIN stories s ON t.story_id = s.id
LEFT JOIN epics e ON s.epic_id = e.id
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*types.Task, error) {
	var t types.Task
	var storyID, taskType, description, contextSummary, workingFiles sql.NullString
	var blockers, handoffNotes, activitySummary, createdBy sql.NullString
	var storyTitle, epicID, epicTitle, epicPriority sql.NullString
	var estimateHours, actualHours sql.NullFloat64
	var progressPercent sql.NullInt64
	var createdAt, updatedAt sql.NullTime

	err := row.Scan(
		&t.ID, &storyID, &t.Title, &t.Status, &taskType,
		&estimateHours, &actualHours, &description, &contextSummary,
		&workingFiles, &blockers, &handoffNotes, &progressPercent,
		&activitySummary, &createdAt, &updatedAt, &createdBy,
		&storyTitle, &epicID, &epicTitle, &epicPriority,
	)
	if err != nil {
		return nil, err
	}

	t.StoryID = storyID.String
	t.TaskType = types.TaskType(taskType.String)
	t.Description = description.String
	t.ContextSummary = contextSummary.String
	t.WorkingFiles = workingFiles.String
	t.Blockers = blockers.String
	t.HandoffNotes = handoffNotes.String
	t.ActivitySummary = activitySummary.String
	t.CreatedBy = createdBy.String
	t.StoryTitle = storyTitle.String
	t.EpicID = epicID.String
	t.EpicTitle = epicTitle.String
	t.EpicPriority = epicPriority.String
	if estimateHours.Valid {
		v := estimateHours.Float64
		t.EstimateHours = &v
	}
	if actualHours.Valid {
		v := actualHours.Float64
		t.ActualHours = &v
	}
	if progressPercent.Valid {
		v := int(progressPercent.Int64)
		t.ProgressPercent = &v
	}
	if createdAt.Valid {
		t.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		t.UpdatedAt = updatedAt.Time
	}
	return &t, nil
}

// generateUniqueID retries with a numeric suffix when the content hash
// collides with an existing row.
func generateUniqueID(ctx context.Context, conn *sql.Conn, table, base string) (string, error) {
	id := base
	for i := 0; i <= idgen.MaxCollisionRetries; i++ {
		if i > 0 {
			id = idgen.WithSuffix(base, i)
		}
		var exists int
		err := conn.QueryRowContext(ctx,
			fmt.Sprintf("SELECT 1 FROM %s WHERE id = ?", table), id).Scan(&exists)
		if err == sql.ErrNoRows {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: exhausted ID collision retries for %s", ErrCreation, base)
}

// CreateTask inserts a new task with status todo and logs a created
// activity. Returns the generated task ID.
func (s *Store) CreateTask(ctx context.Context, task *types.Task, actor string) (string, error) {
	if task.Status == "" {
		task.Status = types.StatusTodo
	}
	if task.TaskType == "" {
		task.TaskType = types.TypeFeature
	}
	if err := task.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}

	now := time.Now()
	var id string
	err := s.inTx(ctx, "create task", func(conn *sql.Conn) error {
		var err error
		id, err = generateUniqueID(ctx, conn, "tasks", idgen.TaskID(task.Title, task.StoryID, now))
		if err != nil {
			return wrapDBError("create task", err)
		}

		_, err = conn.ExecContext(ctx, `
			INSERT INTO tasks (id, story_id, title, status, task_type,
			                   estimate_hours, description, created_at, updated_at, created_by)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, nullString(task.StoryID), task.Title, string(task.Status), string(task.TaskType),
			task.EstimateHours, nullString(task.Description), now, now, nullString(actor))
		if err != nil {
			return wrapDBError("create task", err)
		}

		return insertActivity(ctx, conn, &types.TaskActivity{
			TaskID:       id,
			ActivityType: types.ActivityCreated,
			Description:  "Task created: " + task.Title,
			Actor:        actor,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return "", err
	}
	task.ID = id
	task.CreatedAt = now
	task.UpdatedAt = now
	return id, nil
}

// GetTask returns the task with the given ID, or (nil, nil) if absent.
func (s *Store) GetTask(ctx context.Context, id string) (*types.Task, error) {
	row := s.db.QueryRowContext(ctx, taskSelect+"WHERE t.id = ?", id)
	task, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapDBError("get task", err)
	}
	return task, nil
}

// ListTasks returns tasks matching the filter, ordered by epic priority
// rank then task ID.
func (s *Store) ListTasks(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error) {
	var where []string
	var args []interface{}

	if filter.Status != nil {
		where = append(where, "t.status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.EpicID != nil {
		where = append(where, "e.id = ?")
		args = append(args, *filter.EpicID)
	}
	if filter.Priority != nil {
		where = append(where, "e.priority = ?")
		args = append(args, *filter.Priority)
	}

	query := taskSelect
	if len(where) > 0 {
		query += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	query += `ORDER BY CASE e.priority
		WHEN 'P0' THEN 0 WHEN 'P1' THEN 1 WHEN 'P2' THEN 2 WHEN 'P3' THEN 3
		ELSE 99 END, t.id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list tasks", err)
	}
	defer rows.Close()

	var tasks []*types.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, wrapDBError("list tasks", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// allowedUpdateFields whitelists columns that UpdateTask may touch.
// Status changes go through UpdateTaskStatus so the audit trail and
// compression side effects are not bypassed.
var allowedUpdateFields = map[string]bool{
	"title":            true,
	"description":      true,
	"context_summary":  true,
	"working_files":    true,
	"handoff_notes":    true,
	"estimate_hours":   true,
	"actual_hours":     true,
	"progress_percent": true,
	"task_type":        true,
	"story_id":         true,
}

// UpdateTask applies a partial update; only the supplied fields change.
func (s *Store) UpdateTask(ctx context.Context, id string, updates map[string]interface{}, actor string) error {
	if len(updates) == 0 {
		return nil
	}

	var setClauses []string
	var args []interface{}
	var changed []string
	for field, value := range updates {
		if !allowedUpdateFields[field] {
			return fmt.Errorf("%w: field %q is not updatable", ErrValidation, field)
		}
		switch field {
		case "task_type":
			if tt, ok := value.(string); ok && !types.TaskType(tt).IsValid() {
				return fmt.Errorf("%w: invalid task type: %s", ErrValidation, tt)
			}
		case "progress_percent":
			if p, ok := asFloat(value); ok && (p < 0 || p > 100) {
				return fmt.Errorf("%w: progress_percent must be in [0,100]", ErrValidation)
			}
		case "estimate_hours", "actual_hours":
			if h, ok := asFloat(value); ok && h < 0 {
				return fmt.Errorf("%w: %s cannot be negative", ErrValidation, field)
			}
		}
		setClauses = append(setClauses, field+" = ?")
		args = append(args, value)
		changed = append(changed, field)
	}
	sort.Strings(changed)

	now := time.Now()
	setClauses = append(setClauses, "updated_at = ?")
	args = append(args, now)
	args = append(args, id)

	return s.inTx(ctx, "update task", func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			"UPDATE tasks SET "+strings.Join(setClauses, ", ")+" WHERE id = ?", args...)
		if err != nil {
			return wrapDBError("update task", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("update task %s: %w", id, ErrNotFound)
		}

		return insertActivity(ctx, conn, &types.TaskActivity{
			TaskID:       id,
			ActivityType: types.ActivityUpdated,
			Description:  "Updated: " + strings.Join(changed, ", "),
			Actor:        actor,
			CreatedAt:    now,
		})
	})
}

// UpdateTaskStatus transitions a task to a new status, recording the old
// and new values in the audit trail. Reaching done or archived triggers
// best-effort activity compression.
func (s *Store) UpdateTaskStatus(ctx context.Context, id string, status types.Status, description, actor string) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: invalid status: %s", ErrValidation, status)
	}

	now := time.Now()
	err := s.inTx(ctx, "update status", func(conn *sql.Conn) error {
		var old sql.NullString
		err := conn.QueryRowContext(ctx, "SELECT status FROM tasks WHERE id = ?", id).Scan(&old)
		if err == sql.ErrNoRows {
			return fmt.Errorf("update status %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return wrapDBError("update status", err)
		}

		// Leaving blocked through the generic path clears the reason too.
		_, err = conn.ExecContext(ctx, `
			UPDATE tasks SET status = ?, updated_at = ?,
			       blockers = CASE WHEN ? = 'blocked' THEN blockers ELSE NULL END
			WHERE id = ?`,
			string(status), now, string(status), id)
		if err != nil {
			return wrapDBError("update status", err)
		}

		if description == "" {
			description = fmt.Sprintf("Status changed: %s -> %s", old.String, status)
		}
		return insertActivity(ctx, conn, &types.TaskActivity{
			TaskID:       id,
			ActivityType: types.ActivityStatusChange,
			Description:  description,
			OldValue:     old.String,
			NewValue:     string(status),
			Actor:        actor,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return err
	}

	// Compression is a side effect, not a precondition; its failure never
	// fails the transition.
	if status == types.StatusDone || status == types.StatusArchived {
		_, _ = s.SummarizeActivity(ctx, id, DefaultMinSummaryEntries, false)
	}
	return nil
}

// SetBlocker marks a task blocked with a required reason.
func (s *Store) SetBlocker(ctx context.Context, id, reason, actor string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: blocker reason cannot be empty", ErrValidation)
	}

	now := time.Now()
	return s.inTx(ctx, "set blocker", func(conn *sql.Conn) error {
		var old sql.NullString
		err := conn.QueryRowContext(ctx, "SELECT status FROM tasks WHERE id = ?", id).Scan(&old)
		if err == sql.ErrNoRows {
			return fmt.Errorf("set blocker %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return wrapDBError("set blocker", err)
		}

		_, err = conn.ExecContext(ctx,
			"UPDATE tasks SET status = 'blocked', blockers = ?, updated_at = ? WHERE id = ?",
			reason, now, id)
		if err != nil {
			return wrapDBError("set blocker", err)
		}

		return insertActivity(ctx, conn, &types.TaskActivity{
			TaskID:       id,
			ActivityType: types.ActivityStatusChange,
			Description:  "Blocked: " + reason,
			OldValue:     old.String,
			NewValue:     string(types.StatusBlocked),
			Actor:        actor,
			CreatedAt:    now,
		})
	})
}

// ResolveBlocker clears a task's blocker and returns it to in_progress.
func (s *Store) ResolveBlocker(ctx context.Context, id, actor string) error {
	now := time.Now()
	return s.inTx(ctx, "resolve blocker", func(conn *sql.Conn) error {
		var old sql.NullString
		err := conn.QueryRowContext(ctx, "SELECT status FROM tasks WHERE id = ?", id).Scan(&old)
		if err == sql.ErrNoRows {
			return fmt.Errorf("resolve blocker %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return wrapDBError("resolve blocker", err)
		}

		_, err = conn.ExecContext(ctx,
			"UPDATE tasks SET status = 'in_progress', blockers = NULL, updated_at = ? WHERE id = ?",
			now, id)
		if err != nil {
			return wrapDBError("resolve blocker", err)
		}

		return insertActivity(ctx, conn, &types.TaskActivity{
			TaskID:       id,
			ActivityType: types.ActivityStatusChange,
			Description:  "Blocker resolved",
			OldValue:     old.String,
			NewValue:     string(types.StatusInProgress),
			Actor:        actor,
			CreatedAt:    now,
		})
	})
}

// SetHandoffNotes replaces a task's handoff notes.
func (s *Store) SetHandoffNotes(ctx context.Context, id, notes, actor string) error {
	now := time.Now()
	return s.inTx(ctx, "set handoff notes", func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			"UPDATE tasks SET handoff_notes = ?, updated_at = ? WHERE id = ?", notes, now, id)
		if err != nil {
			return wrapDBError("set handoff notes", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("set handoff notes %s: %w", id, ErrNotFound)
		}
		return insertActivity(ctx, conn, &types.TaskActivity{
			TaskID:       id,
			ActivityType: types.ActivityNote,
			Description:  "Handoff notes updated",
			Actor:        actor,
			CreatedAt:    now,
		})
	})
}

// UpdateProgress sets a task's completion percentage.
func (s *Store) UpdateProgress(ctx context.Context, id string, percent int, actor string) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("%w: progress_percent must be in [0,100], got %d", ErrValidation, percent)
	}

	now := time.Now()
	return s.inTx(ctx, "update progress", func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx,
			"UPDATE tasks SET progress_percent = ?, updated_at = ? WHERE id = ?", percent, now, id)
		if err != nil {
			return wrapDBError("update progress", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("update progress %s: %w", id, ErrNotFound)
		}
		return insertActivity(ctx, conn, &types.TaskActivity{
			TaskID:       id,
			ActivityType: types.ActivityProgress,
			Description:  fmt.Sprintf("Progress: %d%%", percent),
			Actor:        actor,
			CreatedAt:    now,
		})
	})
}

// ArchiveTask soft-deletes a task: the row, its activity, and its
// dependency edges are all preserved.
func (s *Store) ArchiveTask(ctx context.Context, id, reason, actor string) error {
	desc := "Task archived"
	if reason != "" {
		desc += ": " + reason
	}
	now := time.Now()
	err := s.inTx(ctx, "archive task", func(conn *sql.Conn) error {
		var old sql.NullString
		err := conn.QueryRowContext(ctx, "SELECT status FROM tasks WHERE id = ?", id).Scan(&old)
		if err == sql.ErrNoRows {
			return fmt.Errorf("archive task %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return wrapDBError("archive task", err)
		}

		_, err = conn.ExecContext(ctx,
			"UPDATE tasks SET status = 'archived', updated_at = ? WHERE id = ?", now, id)
		if err != nil {
			return wrapDBError("archive task", err)
		}
		return insertActivity(ctx, conn, &types.TaskActivity{
			TaskID:       id,
			ActivityType: types.ActivityStatusChange,
			Description:  desc,
			OldValue:     old.String,
			NewValue:     string(types.StatusArchived),
			Actor:        actor,
			CreatedAt:    now,
		})
	})
	if err != nil {
		return err
	}

	_, _ = s.SummarizeActivity(ctx, id, DefaultMinSummaryEntries, false)
	return nil
}

// DeleteTask hard-deletes a task and cascades its activity, file
// associations, and dependency edges in both directions. Reports whether a
// task row was removed.
func (s *Store) DeleteTask(ctx context.Context, id string) (bool, error) {
	var deleted bool
	err := s.inTx(ctx, "delete task", func(conn *sql.Conn) error {
		for _, stmt := range []string{
			"DELETE FROM task_activity WHERE task_id = ?",
			"DELETE FROM task_files WHERE task_id = ?",
			"DELETE FROM task_dependencies WHERE task_id = ? OR depends_on_task_id = ?",
		} {
			args := []interface{}{id}
			if strings.Contains(stmt, "OR") {
				args = append(args, id)
			}
			if _, err := conn.ExecContext(ctx, stmt, args...); err != nil {
				return wrapDBError("delete task", err)
			}
		}

		res, err := conn.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
		if err != nil {
			return wrapDBError("delete task", err)
		}
		n, _ := res.RowsAffected()
		deleted = n > 0
		return nil
	})
	return deleted, err
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// asFloat normalizes the numeric shapes a partial update can carry.
func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
