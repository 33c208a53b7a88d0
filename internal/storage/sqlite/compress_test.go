package sqlite

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srstomp/ohno/internal/types"
)

func addNote(t *testing.T, s *Store, taskID, text string) {
	t.Helper()
	_, err := s.AddActivity(context.Background(), &types.TaskActivity{
		TaskID:       taskID,
		ActivityType: types.ActivityNote,
		Description:  text,
	}, nil)
	require.NoError(t, err)
}

func TestSummarizeBelowThreshold(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")
	addNote(t, s, id, "first note")

	_, err := s.SummarizeActivity(ctx, id, DefaultMinSummaryEntries, false)
	require.ErrorIs(t, err, ErrInsufficientData)

	// No summary was stored.
	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, task.ActivitySummary)
}

func TestSummarizeContent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")
	require.NoError(t, s.UpdateTaskStatus(ctx, id, types.StatusInProgress, "", ""))
	addNote(t, s, id, "note one")
	addNote(t, s, id, "note two")
	addNote(t, s, id, "note three")
	addNote(t, s, id, "note four")
	require.NoError(t, s.UpdateTaskStatus(ctx, id, types.StatusReview, "", ""))

	summary, err := s.SummarizeActivity(ctx, id, DefaultMinSummaryEntries, false)
	require.NoError(t, err)

	assert.Contains(t, summary, "Activity summary generated at ")
	assert.Contains(t, summary, "Total entries: 7")
	assert.Contains(t, summary, "By type:")
	assert.Contains(t, summary, "  - note: 4")
	assert.Contains(t, summary, "  - status_change: 2")
	assert.Contains(t, summary, "Status history:")
	assert.Contains(t, summary, "todo -> in_progress")
	assert.Contains(t, summary, "in_progress -> review")
	assert.Contains(t, summary, "Recent notes:")
	// Only the last three notes are kept.
	assert.NotContains(t, summary, "note one")
	assert.Contains(t, summary, "note four")

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, summary, task.ActivitySummary)
}

func TestSummaryCoversBlockerAndArchiveHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")
	require.NoError(t, s.UpdateTaskStatus(ctx, id, types.StatusInProgress, "", ""))
	require.NoError(t, s.SetBlocker(ctx, id, "vendor down", ""))
	require.NoError(t, s.ResolveBlocker(ctx, id, ""))

	// Archiving trips the automatic summary; blocker and archive
	// transitions must appear in its status history.
	require.NoError(t, s.ArchiveTask(ctx, id, "", ""))

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	require.NotEmpty(t, task.ActivitySummary)
	assert.Contains(t, task.ActivitySummary, "  - status_change: 4")
	assert.Contains(t, task.ActivitySummary, "in_progress -> blocked")
	assert.Contains(t, task.ActivitySummary, "blocked -> in_progress")
	assert.Contains(t, task.ActivitySummary, "in_progress -> archived")
}

func TestSummarizeTruncatesLongNotes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")
	long := strings.Repeat("x", 150)
	for i := 0; i < 5; i++ {
		addNote(t, s, id, long)
	}

	summary, err := s.SummarizeActivity(ctx, id, DefaultMinSummaryEntries, false)
	require.NoError(t, err)
	assert.Contains(t, summary, strings.Repeat("x", noteTruncateLen)+"...")
	assert.NotContains(t, summary, strings.Repeat("x", noteTruncateLen+1))
}

func TestSummarizeDeleteRawKeepsNewestThree(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")
	for _, text := range []string{"alpha", "beta", "gamma", "delta", "epsilon"} {
		addNote(t, s, id, text)
	}

	_, err := s.SummarizeActivity(ctx, id, DefaultMinSummaryEntries, true)
	require.NoError(t, err)

	acts, err := s.GetActivity(ctx, id, 50)
	require.NoError(t, err)
	require.Len(t, acts, 3)
	// Newest first: the three most recent notes survive.
	assert.Equal(t, "epsilon", acts[0].Description)
	assert.Equal(t, "delta", acts[1].Description)
	assert.Equal(t, "gamma", acts[2].Description)
}

func TestSummarizeRegeneratesSameText(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")
	for _, text := range []string{"a", "b", "c", "d"} {
		addNote(t, s, id, text)
	}

	first, err := s.SummarizeActivity(ctx, id, DefaultMinSummaryEntries, false)
	require.NoError(t, err)
	second, err := s.SummarizeActivity(ctx, id, DefaultMinSummaryEntries, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDoneTransitionTriggersSummary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	id := mustCreateTask(t, s, "Task", "")
	for _, text := range []string{"a", "b", "c", "d"} {
		addNote(t, s, id, text)
	}

	// created + 4 notes + the status_change itself crosses the threshold.
	require.NoError(t, s.UpdateTaskStatus(ctx, id, types.StatusDone, "", ""))

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.NotEmpty(t, task.ActivitySummary)

	// Raw entries are never pruned by the automatic path.
	acts, err := s.GetActivity(ctx, id, 50)
	require.NoError(t, err)
	assert.Len(t, acts, 6)
}

func TestSummarizeMissingTask(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SummarizeActivity(context.Background(), "task-missing0", 5, false)
	require.ErrorIs(t, err, ErrNotFound)
}
