package sqlite

import (
	"context"
	"database/sql"
	"math"
	"sort"

	"github.com/srstomp/ohno/internal/types"
)

const (
	sessionTaskLimit     = 10
	sessionActivityLimit = 10
	nextTaskCandidates   = 20
)

func statusFilter(s types.Status, limit int) types.TaskFilter {
	return types.TaskFilter{Status: &s, Limit: limit}
}

// GetBlockedTasks returns tasks whose stored status is blocked. This is
// the explicit paused-with-reason status, distinct from being blocked by a
// dependency edge.
func (s *Store) GetBlockedTasks(ctx context.Context, limit int) ([]*types.Task, error) {
	return s.ListTasks(ctx, statusFilter(types.StatusBlocked, limit))
}

// suggestNextTask picks the highest-priority unblocked todo task. Ties
// within a priority rank keep store iteration order, which is stable but
// otherwise unspecified.
func (s *Store) suggestNextTask(ctx context.Context) (*types.Task, error) {
	candidates, err := s.ListTasks(ctx, statusFilter(types.StatusTodo, nextTaskCandidates))
	if err != nil {
		return nil, err
	}

	var open []*types.Task
	for _, t := range candidates {
		blocked, err := s.IsBlocked(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		if !blocked {
			open = append(open, t)
		}
	}
	if len(open) == 0 {
		return nil, nil
	}

	sort.SliceStable(open, func(i, j int) bool {
		return types.PriorityRank(open[i].EpicPriority) < types.PriorityRank(open[j].EpicPriority)
	})
	return open[0], nil
}

// GetSessionContext derives the resume-work snapshot: current in-progress
// and blocked tasks, the global recent-activity feed, and a single
// suggested next task. Pure read, no persisted side effects.
func (s *Store) GetSessionContext(ctx context.Context) (*types.SessionContext, error) {
	inProgress, err := s.ListTasks(ctx, statusFilter(types.StatusInProgress, sessionTaskLimit))
	if err != nil {
		return nil, err
	}
	blocked, err := s.GetBlockedTasks(ctx, sessionTaskLimit)
	if err != nil {
		return nil, err
	}
	recent, err := s.GetRecentActivity(ctx, sessionActivityLimit)
	if err != nil {
		return nil, err
	}
	suggested, err := s.suggestNextTask(ctx)
	if err != nil {
		return nil, err
	}

	return &types.SessionContext{
		InProgress:     inProgress,
		Blocked:        blocked,
		RecentActivity: recent,
		SuggestedNext:  suggested,
	}, nil
}

// GetNextTask recommends what to work on: current work takes precedence
// over new suggestions, so any in-progress task wins regardless of todo
// priorities. Returns nil when nothing is actionable.
func (s *Store) GetNextTask(ctx context.Context) (*types.Task, error) {
	inProgress, err := s.ListTasks(ctx, statusFilter(types.StatusInProgress, 1))
	if err != nil {
		return nil, err
	}
	if len(inProgress) > 0 {
		return inProgress[0], nil
	}
	return s.suggestNextTask(ctx)
}

// GetProjectStatus aggregates per-status counts, completion percentage,
// grouping entity counts, and hour sums.
func (s *Store) GetProjectStatus(ctx context.Context) (*types.ProjectStatus, error) {
	ps := &types.ProjectStatus{ByStatus: make(map[types.Status]int)}

	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM tasks GROUP BY status")
	if err != nil {
		return nil, wrapDBError("project status", err)
	}
	defer rows.Close()
	for rows.Next() {
		var st sql.NullString
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, wrapDBError("project status", err)
		}
		ps.ByStatus[types.Status(st.String)] = n
		// Archived tasks are out of the running totals; they stay
		// visible in the per-status breakdown only.
		if types.Status(st.String) != types.StatusArchived {
			ps.TotalTasks += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("project status", err)
	}

	if ps.TotalTasks > 0 {
		done := ps.ByStatus[types.StatusDone]
		ps.CompletionPercent = math.Round(float64(done)/float64(ps.TotalTasks)*1000) / 10
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM epics").Scan(&ps.EpicCount); err != nil {
		return nil, wrapDBError("project status", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM stories").Scan(&ps.StoryCount); err != nil {
		return nil, wrapDBError("project status", err)
	}

	var estimate, actual sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		"SELECT SUM(estimate_hours), SUM(actual_hours) FROM tasks").Scan(&estimate, &actual)
	if err != nil {
		return nil, wrapDBError("project status", err)
	}
	ps.TotalEstimateHours = estimate.Float64
	ps.TotalActualHours = actual.Float64

	return ps, nil
}
