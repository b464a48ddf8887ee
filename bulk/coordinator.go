package bulk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-priority-dashboard/auth"
	"github.com/jrsteele09/go-priority-dashboard/internal/metrics"
	"github.com/jrsteele09/go-priority-dashboard/priority"
	"github.com/rs/zerolog/log"
)

// DefaultRetention is how long a finished operation stays readable.
const DefaultRetention = 10 * time.Minute

// RoleChanger performs single role changes.
type RoleChanger interface {
	SetPrimary(ctx context.Context, service, url string, principal *auth.Principal) (priority.Outcome, error)
	SetSecondary(ctx context.Context, service, url string, principal *auth.Principal) (priority.CallResult, error)
}

// Coordinator runs lists of role changes one item at a time.
type Coordinator struct {
	changer   RoleChanger
	metrics   *metrics.Metrics
	retention time.Duration
	nowTime   func() time.Time

	mu         sync.Mutex
	operations map[string]*Operation
}

// CoordinatorOption defines a function type to modify the Coordinator instance.
type CoordinatorOption func(*Coordinator)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.nowTime = nowFunc
	}
}

func WithRetention(retention time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.retention = retention
	}
}

func WithMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func NewCoordinator(changer RoleChanger, options ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		changer:    changer,
		retention:  DefaultRetention,
		nowTime:    time.Now,
		operations: make(map[string]*Operation),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Apply runs items to completion and returns the final report. Individual failures never
// stop the run.
func (c *Coordinator) Apply(ctx context.Context, items []Item, principal *auth.Principal) Progress {
	op := c.register(items, principal)
	c.run(ctx, op, items, principal)
	return op.Progress()
}

// Start runs items in the background and returns immediately. The run outlives ctx's
// cancellation; use Cancel to stop it.
func (c *Coordinator) Start(ctx context.Context, items []Item, principal *auth.Principal) *Operation {
	op := c.register(items, principal)
	go c.run(context.WithoutCancel(ctx), op, items, principal)
	return op
}

// Get returns the progress of a registered operation.
func (c *Coordinator) Get(id string) (Progress, bool) {
	c.mu.Lock()
	c.sweepLocked()
	op, ok := c.operations[id]
	c.mu.Unlock()

	if !ok {
		return Progress{}, false
	}
	return op.Progress(), true
}

// Cancel asks a running operation to stop before its next item.
func (c *Coordinator) Cancel(id string) bool {
	c.mu.Lock()
	op, ok := c.operations[id]
	c.mu.Unlock()

	if !ok {
		return false
	}
	op.Cancel()
	log.Info().Str("operation_id", id).Msg("Bulk operation cancel requested")
	return true
}

func (c *Coordinator) register(items []Item, principal *auth.Principal) *Operation {
	username := ""
	if principal != nil {
		username = principal.Username
	}
	op := newOperation(uuid.NewString(), username, len(items), c.nowTime())

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	c.operations[op.ID()] = op
	return op
}

// sweepLocked drops operations that finished longer ago than the retention period.
func (c *Coordinator) sweepLocked() {
	cutoff := c.nowTime().Add(-c.retention)
	for id, op := range c.operations {
		if op.finishedBefore(cutoff) {
			delete(c.operations, id)
		}
	}
}

func (c *Coordinator) run(ctx context.Context, op *Operation, items []Item, principal *auth.Principal) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("operation_id", op.ID()).Msg("Bulk operation panicked")
		}
		op.finish(c.nowTime())
		p := op.Progress()
		log.Info().
			Str("operation_id", p.ID).
			Int("completed", p.Completed).
			Int("failed", p.Failed).
			Bool("cancelled", p.Cancelled).
			Msg("Bulk operation finished")
	}()

	log.Info().Str("operation_id", op.ID()).Int("items", len(items)).Msg("Bulk operation started")
	for _, item := range items {
		if op.cancelled.Load() {
			return
		}
		op.setCurrent(item.Label())
		op.record(c.apply(ctx, item, principal))
	}
}

func (c *Coordinator) apply(ctx context.Context, item Item, principal *auth.Principal) ItemResult {
	result := ItemResult{Service: item.Service, URL: item.URL, TargetStatus: item.State}

	var err error
	switch item.State {
	case StatePrimary:
		var outcome priority.Outcome
		outcome, err = c.changer.SetPrimary(ctx, item.Service, item.URL, principal)
		for _, d := range outcome.FailedDemotions() {
			result.FailedDemotions = append(result.FailedDemotions, d.URL)
		}
	case StateSecondary:
		_, err = c.changer.SetSecondary(ctx, item.Service, item.URL, principal)
	default:
		err = fmt.Errorf("unsupported target state %q", item.State)
	}

	if err != nil {
		result.Error = err.Error()
		c.metrics.ObserveBulkItem("failed")
		log.Warn().Err(err).Str("item", item.Label()).Msg("Bulk item failed")
		return result
	}

	result.Success = true
	c.metrics.ObserveBulkItem("completed")
	return result
}
