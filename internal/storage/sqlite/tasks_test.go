package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srstomp/ohno/internal/types"
)

func TestCreateAndGetTask(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedEpic(t, s, "epic-1", "P1")
	seedStory(t, s, "story-1", "epic-1")

	est := 4.5
	id, err := s.CreateTask(ctx, &types.Task{
		Title:         "Implement login",
		StoryID:       "story-1",
		Description:   "Session cookie flow",
		TaskType:      types.TypeFeature,
		EstimateHours: &est,
	}, "alice")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(id, "task-"))

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "Implement login", task.Title)
	assert.Equal(t, types.StatusTodo, task.Status)
	assert.Equal(t, "Session cookie flow", task.Description)
	assert.Equal(t, "alice", task.CreatedBy)
	require.NotNil(t, task.EstimateHours)
	assert.Equal(t, 4.5, *task.EstimateHours)

	// Display fields resolved through the story/epic join.
	assert.Equal(t, "Story story-1", task.StoryTitle)
	assert.Equal(t, "epic-1", task.EpicID)
	assert.Equal(t, "P1", task.EpicPriority)

	// Creation writes an audit entry.
	acts, err := s.GetActivity(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, acts, 1)
	assert.Equal(t, types.ActivityCreated, acts[0].ActivityType)
}

func TestGetTaskNotFoundReturnsNil(t *testing.T) {
	s := newTestStore(t)

	task, err := s.GetTask(context.Background(), "task-missing0")
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestCreateTaskValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.CreateTask(ctx, &types.Task{Title: ""}, "")
	require.ErrorIs(t, err, ErrValidation)

	_, err = s.CreateTask(ctx, &types.Task{Title: "x", TaskType: "epic"}, "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateTaskWithoutJoinTargets(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// A story reference with no matching row degrades to empty display
	// fields, never an error.
	id := mustCreateTask(t, s, "Orphan", "story-ghost")
	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Empty(t, task.StoryTitle)
	assert.Empty(t, task.EpicPriority)
}

func TestListTasksFiltersAndOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedEpic(t, s, "epic-a", "P2")
	seedEpic(t, s, "epic-b", "P0")
	seedStory(t, s, "story-a", "epic-a")
	seedStory(t, s, "story-b", "epic-b")

	lowID := mustCreateTask(t, s, "Low priority work", "story-a")
	highID := mustCreateTask(t, s, "Urgent work", "story-b")
	noneID := mustCreateTask(t, s, "Unparented work", "")

	all, err := s.ListTasks(ctx, types.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// P0 first, then P2, then no-priority.
	assert.Equal(t, highID, all[0].ID)
	assert.Equal(t, lowID, all[1].ID)
	assert.Equal(t, noneID, all[2].ID)

	epic := "epic-b"
	byEpic, err := s.ListTasks(ctx, types.TaskFilter{EpicID: &epic})
	require.NoError(t, err)
	require.Len(t, byEpic, 1)
	assert.Equal(t, highID, byEpic[0].ID)

	todo := types.StatusTodo
	limited, err := s.ListTasks(ctx, types.TaskFilter{Status: &todo, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	prio := "P2"
	byPrio, err := s.ListTasks(ctx, types.TaskFilter{Priority: &prio})
	require.NoError(t, err)
	require.Len(t, byPrio, 1)
	assert.Equal(t, lowID, byPrio[0].ID)
}

func TestUpdateTaskPartial(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Refactor parser", "")

	err := s.UpdateTask(ctx, id, map[string]interface{}{
		"description":      "split lexer from parser",
		"progress_percent": 40,
	}, "bob")
	require.NoError(t, err)

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "split lexer from parser", task.Description)
	require.NotNil(t, task.ProgressPercent)
	assert.Equal(t, 40, *task.ProgressPercent)
	// Untouched fields keep their values.
	assert.Equal(t, "Refactor parser", task.Title)
}

func TestUpdateTaskRejectsUnknownField(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")

	err := s.UpdateTask(ctx, id, map[string]interface{}{"status": "done"}, "")
	require.ErrorIs(t, err, ErrValidation)

	err = s.UpdateTask(ctx, id, map[string]interface{}{"id": "task-evil"}, "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateTaskValidatesNumericFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")

	err := s.UpdateTask(ctx, id, map[string]interface{}{"estimate_hours": -5.0}, "")
	require.ErrorIs(t, err, ErrValidation)
	err = s.UpdateTask(ctx, id, map[string]interface{}{"actual_hours": -0.5}, "")
	require.ErrorIs(t, err, ErrValidation)
	// Decoded JSON numbers arrive as float64.
	err = s.UpdateTask(ctx, id, map[string]interface{}{"progress_percent": 150.0}, "")
	require.ErrorIs(t, err, ErrValidation)

	require.NoError(t, s.UpdateTask(ctx, id, map[string]interface{}{"estimate_hours": 2.5}, ""))
	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, task.EstimateHours)
	assert.Equal(t, 2.5, *task.EstimateHours)
}

func TestUpdateTaskNotFound(t *testing.T) {
	err := newTestStore(t).UpdateTask(context.Background(), "task-missing0",
		map[string]interface{}{"description": "x"}, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTaskStatusAudited(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")

	require.NoError(t, s.UpdateTaskStatus(ctx, id, types.StatusInProgress, "", "carol"))

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, task.Status)

	acts, err := s.GetActivity(ctx, id, 10)
	require.NoError(t, err)
	require.NotEmpty(t, acts)
	change := acts[0]
	assert.Equal(t, types.ActivityStatusChange, change.ActivityType)
	assert.Equal(t, "todo", change.OldValue)
	assert.Equal(t, "in_progress", change.NewValue)
	assert.Equal(t, "carol", change.Actor)
}

func TestUpdateTaskStatusInvalid(t *testing.T) {
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")
	err := s.UpdateTaskStatus(context.Background(), id, "shipped", "", "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestBlockResolveRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")

	require.NoError(t, s.SetBlocker(ctx, id, "waiting on API keys", "dave"))

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusBlocked, task.Status)
	assert.Equal(t, "waiting on API keys", task.Blockers)

	require.NoError(t, s.ResolveBlocker(ctx, id, "dave"))

	task, err = s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, task.Status)
	assert.Empty(t, task.Blockers)
}

func TestLifecycleTransitionsAudited(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")

	require.NoError(t, s.UpdateTaskStatus(ctx, id, types.StatusInProgress, "", "frank"))
	require.NoError(t, s.SetBlocker(ctx, id, "api outage", "frank"))
	require.NoError(t, s.ResolveBlocker(ctx, id, "frank"))
	require.NoError(t, s.ArchiveTask(ctx, id, "obsolete", "frank"))

	acts, err := s.GetActivity(ctx, id, 10)
	require.NoError(t, err)
	require.Len(t, acts, 5)

	// Newest first: every transition is a status_change with old/new set,
	// whichever operation produced it.
	expected := []struct{ old, new string }{
		{"in_progress", "archived"},
		{"blocked", "in_progress"},
		{"in_progress", "blocked"},
		{"todo", "in_progress"},
	}
	for i, want := range expected {
		assert.Equal(t, types.ActivityStatusChange, acts[i].ActivityType)
		assert.Equal(t, want.old, acts[i].OldValue)
		assert.Equal(t, want.new, acts[i].NewValue)
	}
	assert.Equal(t, "Blocked: api outage", acts[2].Description)
	assert.Equal(t, "Task archived: obsolete", acts[0].Description)
}

func TestSetBlockerRequiresReason(t *testing.T) {
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")
	err := s.SetBlocker(context.Background(), id, "   ", "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestGenericStatusUpdateClearsBlockers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")

	require.NoError(t, s.SetBlocker(ctx, id, "flaky CI", ""))
	require.NoError(t, s.UpdateTaskStatus(ctx, id, types.StatusTodo, "", ""))

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, task.Blockers)
}

func TestUpdateProgressBounds(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")

	require.ErrorIs(t, s.UpdateProgress(ctx, id, -1, ""), ErrValidation)
	require.ErrorIs(t, s.UpdateProgress(ctx, id, 101, ""), ErrValidation)
	require.NoError(t, s.UpdateProgress(ctx, id, 100, ""))
}

func TestArchivePreservesRows(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustCreateTask(t, s, "Task A", "")
	b := mustCreateTask(t, s, "Task B", "")
	_, err := s.AddDependency(ctx, a, b, types.DepBlocks)
	require.NoError(t, err)

	require.NoError(t, s.ArchiveTask(ctx, a, "superseded", "erin"))

	task, err := s.GetTask(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, types.StatusArchived, task.Status)

	acts, err := s.GetActivity(ctx, a, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, acts)
	assert.Equal(t, "Task archived: superseded", acts[0].Description)

	deps, err := s.GetDependencies(ctx, a)
	require.NoError(t, err)
	assert.Len(t, deps, 1)
}

func TestDeleteTaskCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustCreateTask(t, s, "Task A", "")
	b := mustCreateTask(t, s, "Task B", "")
	_, err := s.AddDependency(ctx, a, b, types.DepBlocks)
	require.NoError(t, err)
	_, err = s.AddDependency(ctx, b, a, types.DepRequires)
	require.NoError(t, err)
	_, err = s.AddActivity(ctx, &types.TaskActivity{
		TaskID:       a,
		ActivityType: types.ActivityNote,
		Description:  "touched main.go",
	}, []string{"main.go"})
	require.NoError(t, err)

	deleted, err := s.DeleteTask(ctx, a)
	require.NoError(t, err)
	assert.True(t, deleted)

	task, err := s.GetTask(ctx, a)
	require.NoError(t, err)
	assert.Nil(t, task)

	acts, err := s.GetActivity(ctx, a, 10)
	require.NoError(t, err)
	assert.Empty(t, acts)

	files, err := s.GetTaskFiles(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, files)

	// Edges in both directions are gone.
	deps, err := s.GetDependencies(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, deps)

	// Deleting again reports nothing removed.
	deleted, err = s.DeleteTask(ctx, a)
	require.NoError(t, err)
	assert.False(t, deleted)
}
