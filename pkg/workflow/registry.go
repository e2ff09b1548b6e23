package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ideaforge/ideaforge/pkg/config"
	"github.com/ideaforge/ideaforge/pkg/models"
)

var (
	// ErrExecutionNotTracked reports an execution ID the registry does not
	// hold, either unknown or already evicted by the retention sweep.
	ErrExecutionNotTracked = errors.New("execution not tracked")

	// ErrExecutionFinished reports a cancel attempt on a terminal execution.
	ErrExecutionFinished = errors.New("execution already finished")
)

type trackedExecution struct {
	state  *models.WorkflowState
	cancel context.CancelFunc
}

// Registry tracks in-flight and recently finished executions so status,
// streaming and cancel requests can reach them. Terminal executions stay
// available until the retention sweep evicts them; durable history lives in
// persistence.
type Registry struct {
	mu         sync.RWMutex
	executions map[string]*trackedExecution

	retention time.Duration
	schedule  string
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewRegistry creates a registry with the engine's retention settings.
func NewRegistry(cfg config.Engine, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		executions: make(map[string]*trackedExecution),
		retention:  cfg.RetentionTTL,
		schedule:   cfg.SweepSchedule,
		logger:     logger,
	}
}

// Track registers an execution and its cancel function. The cancel function
// may be nil for executions that cannot be interrupted.
func (r *Registry) Track(state *models.WorkflowState, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.executions[state.ExecutionID] = &trackedExecution{
		state:  state,
		cancel: cancel,
	}
}

// Get returns the live state of a tracked execution.
func (r *Registry) Get(executionID string) (*models.WorkflowState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tracked, ok := r.executions[executionID]
	if !ok {
		return nil, false
	}

	return tracked.state, true
}

// List returns snapshots of all tracked executions.
func (r *Registry) List() []*models.WorkflowState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]*models.WorkflowState, 0, len(r.executions))
	for _, tracked := range r.executions {
		states = append(states, tracked.state.Snapshot())
	}

	return states
}

// Cancel requests cooperative cancellation of a running execution. The state
// is marked cancelled immediately; the run goroutine observes the context and
// stops at the next stage boundary. The entry stays tracked until the
// retention sweep, keeping the cancelled execution queryable like any other
// terminal one.
func (r *Registry) Cancel(executionID, reason string) error {
	r.mu.Lock()
	tracked, ok := r.executions[executionID]
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrExecutionNotTracked, executionID)
	}

	if tracked.state.GetStatus().IsTerminal() {
		return fmt.Errorf("%w: %s", ErrExecutionFinished, executionID)
	}

	tracked.state.CancelWith(reason)

	if tracked.cancel != nil {
		tracked.cancel()
	}

	r.logger.Info("Execution cancelled", "execution_id", executionID, "reason", reason)

	return nil
}

// Remove drops an execution from the registry without touching its state.
func (r *Registry) Remove(executionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.executions, executionID)
}

// Len returns the number of tracked executions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.executions)
}

// StartSweeper schedules the retention sweep. A zero retention disables it.
func (r *Registry) StartSweeper() error {
	if r.retention <= 0 {
		return nil
	}

	r.cron = cron.New()

	_, err := r.cron.AddFunc(r.schedule, r.Sweep)
	if err != nil {
		return fmt.Errorf("invalid sweep schedule %q: %w", r.schedule, err)
	}

	r.cron.Start()
	r.logger.Info("Registry retention sweep scheduled", "schedule", r.schedule, "retention", r.retention)

	return nil
}

// Sweep evicts terminal executions whose completion is older than the
// retention TTL.
func (r *Registry) Sweep() {
	cutoff := time.Now().UTC().Add(-r.retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	for executionID, tracked := range r.executions {
		snapshot := tracked.state.Snapshot()

		if !snapshot.Status.IsTerminal() {
			continue
		}

		if snapshot.CompletedAt != nil && snapshot.CompletedAt.After(cutoff) {
			continue
		}

		delete(r.executions, executionID)
		r.logger.Debug("Evicted finished execution", "execution_id", executionID, "status", snapshot.Status)
	}
}

// Shutdown stops the sweeper and waits for a running sweep to finish.
func (r *Registry) Shutdown(ctx context.Context) {
	if r.cron == nil {
		return
	}

	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}
