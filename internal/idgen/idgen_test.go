package idgen

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTaskIDDeterministic(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := TaskID("Implement login", "story-1", ts)
	b := TaskID("Implement login", "story-1", ts)
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "task-"))
	assert.Len(t, a, len("task-")+8)
}

func TestTaskIDInputSensitivity(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	base := TaskID("Implement login", "story-1", ts)

	assert.NotEqual(t, base, TaskID("Implement logout", "story-1", ts))
	assert.NotEqual(t, base, TaskID("Implement login", "story-2", ts))
	assert.NotEqual(t, base, TaskID("Implement login", "story-1", ts.Add(time.Nanosecond)))
}

func TestDependencyIDStable(t *testing.T) {
	a := DependencyID("task-aaaa1111", "task-bbbb2222")
	b := DependencyID("task-aaaa1111", "task-bbbb2222")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "dep-"))

	// Direction matters.
	assert.NotEqual(t, a, DependencyID("task-bbbb2222", "task-aaaa1111"))
}

func TestActivityIDPrefix(t *testing.T) {
	id := ActivityID("task-aaaa1111", "note", time.Now())
	assert.True(t, strings.HasPrefix(id, "act-"))
}

func TestWithSuffix(t *testing.T) {
	assert.Equal(t, "task-deadbeef-1", WithSuffix("task-deadbeef", 1))
	assert.Equal(t, "task-deadbeef-42", WithSuffix("task-deadbeef", 42))
}
