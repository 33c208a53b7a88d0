package board

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srstomp/ohno/internal/export"
)

func TestGenerateInjectsSnapshot(t *testing.T) {
	snap := &export.Snapshot{
		SyncedAt: "2025-06-01T10:00:00Z",
		Version:  export.Version,
		Tasks: []map[string]interface{}{
			{"id": "task-aaaa1111", "title": "Build login form", "status": "todo"},
		},
		Stats: map[string]interface{}{"total_tasks": 1},
	}

	html, err := Generate(snap)
	require.NoError(t, err)

	out := string(html)
	assert.NotContains(t, out, "window.KANBAN_DATA = {};")
	assert.Contains(t, out, `"task-aaaa1111"`)
	assert.Contains(t, out, `"Build login form"`)
	assert.Contains(t, out, "2025-06-01T10:00:00Z")
}

func TestGenerateEscapesScriptTerminator(t *testing.T) {
	snap := &export.Snapshot{
		Version: export.Version,
		Tasks: []map[string]interface{}{
			{"id": "task-aaaa1111", "title": "</script><script>alert(1)</script>", "status": "todo"},
		},
	}

	html, err := Generate(snap)
	require.NoError(t, err)
	// The injected payload must not contain an unescaped closing script tag.
	payload := string(html)[strings.Index(string(html), "window.KANBAN_DATA = {"):]
	payload = payload[:strings.Index(payload, "\n")]
	assert.NotContains(t, payload, "</script>")
	assert.Contains(t, payload, "<\\/script>")
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kanban.html")
	snap := &export.Snapshot{Version: export.Version}
	require.NoError(t, WriteFile(snap, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<!DOCTYPE html>")
}

func TestPlaceholderKeepsMarker(t *testing.T) {
	assert.Contains(t, string(Placeholder()), "window.KANBAN_DATA = {};")
}
