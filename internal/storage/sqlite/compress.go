package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/srstomp/ohno/internal/types"
)

// DefaultMinSummaryEntries is the activity count below which compression
// reports insufficient data.
const DefaultMinSummaryEntries = 5

// prunedRetainCount is how many of the newest activity rows survive a
// delete_raw compression, preserving immediate context.
const prunedRetainCount = 3

const noteTruncateLen = 100

// SummarizeActivity condenses a task's activity log into a retained
// textual digest stored on the task's activity_summary field. Re-running
// over unchanged activity regenerates the same text. When deleteRaw is
// set, all but the newest rows are pruned; this is irreversible and
// strictly opt-in.
func (s *Store) SummarizeActivity(ctx context.Context, taskID string, minEntries int, deleteRaw bool) (string, error) {
	if minEntries <= 0 {
		minEntries = DefaultMinSummaryEntries
	}

	var summary string
	err := s.inTx(ctx, "summarize activity", func(conn *sql.Conn) error {
		var exists int
		err := conn.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE id = ?", taskID).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("summarize %s: %w", taskID, ErrNotFound)
		}
		if err != nil {
			return wrapDBError("summarize activity", err)
		}

		rows, err := conn.QueryContext(ctx, `
			SELECT activity_type, description, old_value, new_value, created_at
			FROM task_activity
			WHERE task_id = ?
			ORDER BY created_at ASC, rowid ASC`, taskID)
		if err != nil {
			return wrapDBError("summarize activity", err)
		}
		defer rows.Close()

		type entry struct {
			activityType string
			description  string
			oldValue     string
			newValue     string
			createdAt    time.Time
		}
		var entries []entry
		for rows.Next() {
			var e entry
			var description, oldValue, newValue sql.NullString
			var createdAt sql.NullTime
			if err := rows.Scan(&e.activityType, &description, &oldValue, &newValue, &createdAt); err != nil {
				return wrapDBError("summarize activity", err)
			}
			e.description = description.String
			e.oldValue = oldValue.String
			e.newValue = newValue.String
			e.createdAt = createdAt.Time
			entries = append(entries, e)
		}
		if err := rows.Err(); err != nil {
			return wrapDBError("summarize activity", err)
		}

		if len(entries) < minEntries {
			return fmt.Errorf("summarize %s: %d entries, need %d: %w",
				taskID, len(entries), minEntries, ErrInsufficientData)
		}

		byType := make(map[string]int)
		var transitions []string
		var notes []string
		for _, e := range entries {
			byType[e.activityType]++
			if e.activityType == string(types.ActivityStatusChange) && e.oldValue != "" {
				transitions = append(transitions, fmt.Sprintf("  - %s: %s -> %s",
					e.createdAt.Format("2006-01-02"), e.oldValue, e.newValue))
			}
			if e.activityType == string(types.ActivityNote) && e.description != "" {
				notes = append(notes, e.description)
			}
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Activity summary generated at %s\n", time.Now().Format("2006-01-02"))
		fmt.Fprintf(&b, "Total entries: %d\n", len(entries))

		typeNames := make([]string, 0, len(byType))
		for name := range byType {
			typeNames = append(typeNames, name)
		}
		sort.Strings(typeNames)
		b.WriteString("\nBy type:\n")
		for _, name := range typeNames {
			fmt.Fprintf(&b, "  - %s: %d\n", name, byType[name])
		}

		if len(transitions) > 0 {
			b.WriteString("\nStatus history:\n")
			b.WriteString(strings.Join(transitions, "\n"))
			b.WriteString("\n")
		}

		if len(notes) > 0 {
			if len(notes) > prunedRetainCount {
				notes = notes[len(notes)-prunedRetainCount:]
			}
			b.WriteString("\nRecent notes:\n")
			for _, note := range notes {
				if len(note) > noteTruncateLen {
					note = note[:noteTruncateLen] + "..."
				}
				fmt.Fprintf(&b, "  - %s\n", note)
			}
		}

		summary = b.String()

		_, err = conn.ExecContext(ctx,
			"UPDATE tasks SET activity_summary = ?, updated_at = ? WHERE id = ?",
			summary, time.Now(), taskID)
		if err != nil {
			return wrapDBError("summarize activity", err)
		}

		if deleteRaw && len(entries) >= prunedRetainCount {
			_, err = conn.ExecContext(ctx, `
				DELETE FROM task_activity
				WHERE task_id = ? AND id NOT IN (
					SELECT id FROM task_activity
					WHERE task_id = ?
					ORDER BY created_at DESC, rowid DESC
					LIMIT ?
				)`, taskID, taskID, prunedRetainCount)
			if err != nil {
				return wrapDBError("summarize activity", err)
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return summary, nil
}
