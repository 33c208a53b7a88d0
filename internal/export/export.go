// Package export builds the versioned JSON snapshot consumed by the board
// renderer and other external visualizations.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/srstomp/ohno/internal/storage/sqlite"
)

// Version identifies the snapshot format.
const Version = "1.0"

type row = map[string]interface{}

// Snapshot is a full point-in-time dump of the store plus computed stats.
type Snapshot struct {
	SyncedAt         string `json:"synced_at"`
	Version          string `json:"version"`
	Projects         []row  `json:"projects"`
	Epics            []row  `json:"epics"`
	Stories          []row  `json:"stories"`
	Tasks            []row  `json:"tasks"`
	Dependencies     []row  `json:"dependencies"`
	TaskActivity     []row  `json:"task_activity"`
	TaskFiles        []row  `json:"task_files"`
	TaskDependencies []row  `json:"task_dependencies"`
	Stats            row    `json:"stats"`
}

// Build dumps every table and computes the stats block.
func Build(ctx context.Context, store *sqlite.Store) (*Snapshot, error) {
	snap := &Snapshot{
		SyncedAt: time.Now().UTC().Format(time.RFC3339),
		Version:  Version,
	}

	tables := map[string]*[]row{
		"projects":          &snap.Projects,
		"epics":             &snap.Epics,
		"stories":           &snap.Stories,
		"tasks":             &snap.Tasks,
		"dependencies":      &snap.Dependencies,
		"task_activity":     &snap.TaskActivity,
		"task_files":        &snap.TaskFiles,
		"task_dependencies": &snap.TaskDependencies,
	}
	for _, name := range sqlite.ExportTables() {
		rows, err := store.DumpTable(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", name, err)
		}
		*tables[name] = rows
	}

	snap.Stats = computeStats(snap)
	return snap, nil
}

func computeStats(snap *Snapshot) row {
	stats := row{
		"total_tasks":        len(snap.Tasks),
		"total_epics":        len(snap.Epics),
		"total_stories":      len(snap.Stories),
		"total_activity":     len(snap.TaskActivity),
		"total_files":        len(snap.TaskFiles),
		"total_dependencies": len(snap.TaskDependencies),
	}

	// Priority counts are over epics, not the tasks underneath them.
	var p0, p1 int
	for _, e := range snap.Epics {
		switch prio, _ := e["priority"].(string); prio {
		case "P0":
			p0++
		case "P1":
			p1++
		}
	}

	byStatus := row{}
	var done, withDetails int
	var estimate, actual float64
	for _, t := range snap.Tasks {
		status, _ := t["status"].(string)
		if n, ok := byStatus[status].(int); ok {
			byStatus[status] = n + 1
		} else {
			byStatus[status] = 1
		}
		if status == "done" {
			done++
		}
		if desc, _ := t["description"].(string); desc != "" {
			withDetails++
		}
		estimate += toFloat(t["estimate_hours"])
		actual += toFloat(t["actual_hours"])
	}

	stats["by_status"] = byStatus
	stats["p0_count"] = p0
	stats["p1_count"] = p1
	stats["tasks_with_details"] = withDetails
	stats["total_estimate_hours"] = estimate
	stats["total_actual_hours"] = actual

	completion := 0.0
	if len(snap.Tasks) > 0 {
		completion = float64(done) / float64(len(snap.Tasks)) * 100
	}
	stats["completion_pct"] = completion

	return stats
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

// WriteFile serializes the snapshot to path with indentation, replacing
// any previous snapshot atomically.
func (s *Snapshot) WriteFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
