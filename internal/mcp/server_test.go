package mcp

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srstomp/ohno/internal/storage/sqlite"
	"github.com/srstomp/ohno/internal/types"
)

const coreSchema = `
CREATE TABLE projects (id TEXT PRIMARY KEY, name TEXT NOT NULL, created_at TEXT);
CREATE TABLE epics (id TEXT PRIMARY KEY, project_id TEXT, title TEXT NOT NULL, priority TEXT, status TEXT);
CREATE TABLE stories (id TEXT PRIMARY KEY, epic_id TEXT, title TEXT NOT NULL, status TEXT);
CREATE TABLE tasks (
    id TEXT PRIMARY KEY,
    story_id TEXT,
    title TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'todo',
    task_type TEXT,
    estimate_hours REAL
);
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.New(ctx, filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	_, err = store.UnderlyingDB().Exec(coreSchema)
	require.NoError(t, err)
	require.NoError(t, store.Provision(ctx))
	return NewServer(store, "test-agent", "test")
}

func TestCreateGetUpdateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	result, created, err := s.handleCreateTask(ctx, nil, createTaskInput{
		Title:       "Wire up auth",
		Description: "OIDC flow",
	})
	require.NoError(t, err)
	require.Nil(t, result)
	require.NotEmpty(t, created.ID)

	result, detail, err := s.handleGetTask(ctx, nil, taskIDInput{TaskID: created.ID})
	require.NoError(t, err)
	require.Nil(t, result)
	assert.Equal(t, "Wire up auth", detail.Task.Title)
	assert.Equal(t, types.StatusTodo, detail.Task.Status)
	assert.NotEmpty(t, detail.Activity)

	result, msg, err := s.handleUpdateTaskStatus(ctx, nil, updateStatusInput{
		TaskID: created.ID,
		Status: "in_progress",
	})
	require.NoError(t, err)
	require.Nil(t, result)
	assert.Contains(t, msg.Message, "in_progress")
}

func TestGetTaskNotFoundIsToolError(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	result, _, err := s.handleGetTask(ctx, nil, taskIDInput{TaskID: "task-missing0"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestBlockerTools(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	_, created, err := s.handleCreateTask(ctx, nil, createTaskInput{Title: "Task"})
	require.NoError(t, err)

	// Empty reason is rejected before any write.
	result, _, err := s.handleSetBlocker(ctx, nil, blockerInput{TaskID: created.ID, Reason: ""})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)

	result, _, err = s.handleSetBlocker(ctx, nil, blockerInput{TaskID: created.ID, Reason: "vendor outage"})
	require.NoError(t, err)
	require.Nil(t, result)

	_, blocked, err := s.handleGetBlockedTasks(ctx, nil, emptyInput{})
	require.NoError(t, err)
	require.Equal(t, 1, blocked.Count)
	assert.Equal(t, "vendor outage", blocked.Tasks[0].Blockers)

	result, _, err = s.handleResolveBlocker(ctx, nil, taskIDInput{TaskID: created.ID})
	require.NoError(t, err)
	require.Nil(t, result)

	_, detail, err := s.handleGetTask(ctx, nil, taskIDInput{TaskID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, types.StatusInProgress, detail.Task.Status)
}

func TestDependencyTools(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	_, a, err := s.handleCreateTask(ctx, nil, createTaskInput{Title: "Task A"})
	require.NoError(t, err)
	_, b, err := s.handleCreateTask(ctx, nil, createTaskInput{Title: "Task B"})
	require.NoError(t, err)

	_, edge, err := s.handleAddDependency(ctx, nil, dependencyInput{
		TaskID:      b.ID,
		DependsOnID: a.ID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, edge.ID)

	// Idempotent re-add.
	_, again, err := s.handleAddDependency(ctx, nil, dependencyInput{
		TaskID:      b.ID,
		DependsOnID: a.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, edge.ID, again.ID)

	_, deps, err := s.handleGetTaskDependencies(ctx, nil, taskIDInput{TaskID: b.ID})
	require.NoError(t, err)
	assert.True(t, deps.IsBlocked)
	require.Len(t, deps.Blocking, 1)

	// Self-dependency surfaces as a tool error, not a transport error.
	result, _, err := s.handleAddDependency(ctx, nil, dependencyInput{
		TaskID:      a.ID,
		DependsOnID: a.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)

	_, removed, err := s.handleRemoveDependency(ctx, nil, removeDependencyInput{
		TaskID:      b.ID,
		DependsOnID: a.ID,
	})
	require.NoError(t, err)
	assert.True(t, removed.Removed)
}

func TestNextTaskAndSessionContext(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	_, next, err := s.handleGetNextTask(ctx, nil, emptyInput{})
	require.NoError(t, err)
	assert.Nil(t, next.Task)
	assert.NotEmpty(t, next.Message)

	_, created, err := s.handleCreateTask(ctx, nil, createTaskInput{Title: "Only task"})
	require.NoError(t, err)

	_, next, err = s.handleGetNextTask(ctx, nil, emptyInput{})
	require.NoError(t, err)
	require.NotNil(t, next.Task)
	assert.Equal(t, created.ID, next.Task.ID)

	_, sc, err := s.handleGetSessionContext(ctx, nil, emptyInput{})
	require.NoError(t, err)
	require.NotNil(t, sc.SuggestedNext)
	assert.Equal(t, created.ID, sc.SuggestedNext.ID)
}

func TestSummarizeTool(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	_, created, err := s.handleCreateTask(ctx, nil, createTaskInput{Title: "Task"})
	require.NoError(t, err)

	// Below threshold: tool error carrying the insufficient-data message.
	result, _, err := s.handleSummarizeTaskActivity(ctx, nil, summarizeInput{TaskID: created.ID})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)

	for i := 0; i < 5; i++ {
		_, _, err := s.handleAddTaskActivity(ctx, nil, addActivityInput{
			TaskID:      created.ID,
			Description: "made progress",
		})
		require.NoError(t, err)
	}

	result, out, err := s.handleSummarizeTaskActivity(ctx, nil, summarizeInput{TaskID: created.ID})
	require.NoError(t, err)
	require.Nil(t, result)
	assert.Contains(t, out.Summary, "By type:")
}

func TestUpdateTaskTool(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	_, created, err := s.handleCreateTask(ctx, nil, createTaskInput{Title: "Task"})
	require.NoError(t, err)

	desc := "new description"
	progress := 60
	result, _, err := s.handleUpdateTask(ctx, nil, updateTaskInput{
		TaskID:          created.ID,
		Description:     &desc,
		ProgressPercent: &progress,
	})
	require.NoError(t, err)
	require.Nil(t, result)

	_, detail, err := s.handleGetTask(ctx, nil, taskIDInput{TaskID: created.ID})
	require.NoError(t, err)
	assert.Equal(t, "new description", detail.Task.Description)
	require.NotNil(t, detail.Task.ProgressPercent)
	assert.Equal(t, 60, *detail.Task.ProgressPercent)

	// No fields supplied.
	result, _, err = s.handleUpdateTask(ctx, nil, updateTaskInput{TaskID: created.ID})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}
