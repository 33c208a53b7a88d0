// Package compact batches activity-log compression over finished tasks.
package compact

import (
	"context"
	"errors"
	"sync"

	"github.com/srstomp/ohno/internal/storage/sqlite"
	"github.com/srstomp/ohno/internal/types"
)

// compactableStore is the subset of the storage API the compactor needs.
type compactableStore interface {
	ListTasks(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error)
	SummarizeActivity(ctx context.Context, taskID string, minEntries int, deleteRaw bool) (string, error)
}

// Config controls a compaction run.
type Config struct {
	// MinEntries is the activity threshold below which a task is skipped.
	MinEntries int

	// DeleteRaw prunes all but the newest activity rows after summarizing.
	// Irreversible; off unless explicitly requested.
	DeleteRaw bool

	// Concurrency bounds the number of tasks summarized in parallel.
	Concurrency int
}

// DefaultConfig returns the standard compaction settings.
func DefaultConfig() Config {
	return Config{
		MinEntries:  sqlite.DefaultMinSummaryEntries,
		DeleteRaw:   false,
		Concurrency: 4,
	}
}

// Result reports what a compaction run did.
type Result struct {
	Eligible   int `json:"eligible"`
	Summarized int `json:"summarized"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
}

// Compactor summarizes activity for every done or archived task.
type Compactor struct {
	store compactableStore
	cfg   Config
}

// New creates a compactor over the given store.
func New(store compactableStore, cfg Config) *Compactor {
	if cfg.MinEntries <= 0 {
		cfg.MinEntries = sqlite.DefaultMinSummaryEntries
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Compactor{store: store, cfg: cfg}
}

// Run summarizes all eligible tasks. Tasks below the activity threshold
// are counted as skipped, not failed; the first store-level error is
// returned after the batch drains.
func (c *Compactor) Run(ctx context.Context) (*Result, error) {
	var candidates []*types.Task
	for _, status := range []types.Status{types.StatusDone, types.StatusArchived} {
		st := status
		tasks, err := c.store.ListTasks(ctx, types.TaskFilter{Status: &st})
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, tasks...)
	}

	res := &Result{Eligible: len(candidates)}
	var mu sync.Mutex
	var firstErr error

	sem := make(chan struct{}, c.cfg.Concurrency)
	var wg sync.WaitGroup
	for _, task := range candidates {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := c.store.SummarizeActivity(ctx, id, c.cfg.MinEntries, c.cfg.DeleteRaw)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Summarized++
			case errors.Is(err, sqlite.ErrInsufficientData):
				res.Skipped++
			default:
				res.Failed++
				if firstErr == nil {
					firstErr = err
				}
			}
		}(task.ID)
	}
	wg.Wait()

	return res, firstErr
}
