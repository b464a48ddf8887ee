package bulk

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Operation is a bulk run whose progress can be read while it executes.
type Operation struct {
	mu        sync.RWMutex
	progress  Progress
	cancelled atomic.Bool
	done      chan struct{}
}

func newOperation(id, username string, total int, now time.Time) *Operation {
	return &Operation{
		progress: Progress{
			ID:        id,
			Username:  username,
			Total:     total,
			Results:   make([]ItemResult, 0, total),
			StartedAt: now,
		},
		done: make(chan struct{}),
	}
}

func (op *Operation) ID() string {
	return op.progress.ID
}

// Progress returns a copy of the current state.
func (op *Operation) Progress() Progress {
	op.mu.RLock()
	defer op.mu.RUnlock()

	p := op.progress
	p.Results = slices.Clone(op.progress.Results)
	return p
}

// Cancel stops the run before its next item. The item in flight finishes.
func (op *Operation) Cancel() {
	op.cancelled.Store(true)
}

// Done is closed once the run has stopped.
func (op *Operation) Done() <-chan struct{} {
	return op.done
}

func (op *Operation) setCurrent(label string) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.progress.CurrentItem = label
}

func (op *Operation) record(result ItemResult) {
	op.mu.Lock()
	defer op.mu.Unlock()

	if result.Success {
		op.progress.Completed++
	} else {
		op.progress.Failed++
	}
	op.progress.Results = append(op.progress.Results, result)
}

func (op *Operation) finish(now time.Time) {
	op.mu.Lock()
	op.progress.Done = true
	op.progress.Cancelled = op.cancelled.Load() && len(op.progress.Results) < op.progress.Total
	op.progress.CurrentItem = ""
	op.progress.FinishedAt = &now
	op.mu.Unlock()

	close(op.done)
}

// finishedBefore reports whether the run ended before t.
func (op *Operation) finishedBefore(t time.Time) bool {
	op.mu.RLock()
	defer op.mu.RUnlock()
	return op.progress.FinishedAt != nil && op.progress.FinishedAt.Before(t)
}
