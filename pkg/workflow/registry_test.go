package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaforge/ideaforge/pkg/config"
	"github.com/ideaforge/ideaforge/pkg/models"
)

func newRegistry(retention time.Duration) *Registry {
	cfg := config.Default()
	cfg.RetentionTTL = retention

	return NewRegistry(cfg, nil)
}

func TestRegistry_TrackAndGet(t *testing.T) {
	registry := newRegistry(time.Hour)
	state := models.NewWorkflowState(models.WorkflowTypeResearch, "request", "user-1", "")

	registry.Track(state, nil)

	got, ok := registry.Get(state.ExecutionID)
	require.True(t, ok)
	assert.Same(t, state, got)

	_, ok = registry.Get("exec-missing")
	assert.False(t, ok)

	assert.Equal(t, 1, registry.Len())
}

func TestRegistry_List_ReturnsSnapshots(t *testing.T) {
	registry := newRegistry(time.Hour)
	state := models.NewWorkflowState(models.WorkflowTypeResearch, "request", "user-1", "")

	registry.Track(state, nil)

	states := registry.List()
	require.Len(t, states, 1)

	// Mutating the listed copy must not touch the live state.
	states[0].Status = models.ExecutionStatusFailed
	assert.Equal(t, models.ExecutionStatusPending, state.GetStatus())
}

func TestRegistry_Cancel(t *testing.T) {
	registry := newRegistry(time.Hour)
	state := models.NewWorkflowState(models.WorkflowTypeResearch, "request", "user-1", "")
	state.Begin("analyze_idea")

	ctx, cancel := context.WithCancel(context.Background())
	registry.Track(state, cancel)

	err := registry.Cancel(state.ExecutionID, "user requested")
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCancelled, state.GetStatus())
	assert.Equal(t, "user requested", state.Snapshot().Metadata[models.MetadataCancellationReason])
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestRegistry_Cancel_UnknownExecution(t *testing.T) {
	registry := newRegistry(time.Hour)

	err := registry.Cancel("exec-missing", "")

	assert.ErrorIs(t, err, ErrExecutionNotTracked)
}

func TestRegistry_Cancel_FinishedExecution(t *testing.T) {
	registry := newRegistry(time.Hour)
	state := models.NewWorkflowState(models.WorkflowTypeResearch, "request", "user-1", "")
	state.Finish(models.ExecutionStatusCompleted)

	registry.Track(state, nil)

	err := registry.Cancel(state.ExecutionID, "too late")

	assert.ErrorIs(t, err, ErrExecutionFinished)
}

func TestRegistry_Sweep_EvictsExpiredTerminalExecutions(t *testing.T) {
	registry := newRegistry(time.Nanosecond)

	finished := models.NewWorkflowState(models.WorkflowTypeResearch, "request", "user-1", "")
	finished.Finish(models.ExecutionStatusCompleted)

	running := models.NewWorkflowState(models.WorkflowTypePRD, "request", "user-1", "")
	running.Begin("analyze_requirements")

	registry.Track(finished, nil)
	registry.Track(running, nil)

	time.Sleep(5 * time.Millisecond)
	registry.Sweep()

	_, ok := registry.Get(finished.ExecutionID)
	assert.False(t, ok, "expired terminal execution is evicted")

	_, ok = registry.Get(running.ExecutionID)
	assert.True(t, ok, "running execution survives the sweep")
}

func TestRegistry_Sweep_KeepsRecentTerminalExecutions(t *testing.T) {
	registry := newRegistry(time.Hour)

	finished := models.NewWorkflowState(models.WorkflowTypeResearch, "request", "user-1", "")
	finished.Finish(models.ExecutionStatusFailed)

	registry.Track(finished, nil)
	registry.Sweep()

	_, ok := registry.Get(finished.ExecutionID)
	assert.True(t, ok)
}

func TestRegistry_Remove(t *testing.T) {
	registry := newRegistry(time.Hour)
	state := models.NewWorkflowState(models.WorkflowTypeResearch, "request", "user-1", "")

	registry.Track(state, nil)
	registry.Remove(state.ExecutionID)

	_, ok := registry.Get(state.ExecutionID)
	assert.False(t, ok)
}

func TestRegistry_Sweeper_InvalidSchedule(t *testing.T) {
	cfg := config.Default()
	cfg.SweepSchedule = "not a schedule"

	registry := NewRegistry(cfg, nil)

	assert.Error(t, registry.StartSweeper())
}

func TestRegistry_Sweeper_DisabledWithoutRetention(t *testing.T) {
	registry := newRegistry(0)

	require.NoError(t, registry.StartSweeper())
	registry.Shutdown(context.Background())
}
