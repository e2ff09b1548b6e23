package workflow

import (
	"context"
	"time"

	"github.com/ideaforge/ideaforge/pkg/models"
)

// ProgressEventType discriminates the progress events an execution emits.
type ProgressEventType string

const (
	// ProgressEventStatus reports a lifecycle change (started, cancelled).
	ProgressEventStatus ProgressEventType = "status"

	// ProgressEventProgress reports a stage transition with an updated
	// completion percentage.
	ProgressEventProgress ProgressEventType = "progress"

	// ProgressEventCompleted is the final event of a successful execution.
	ProgressEventCompleted ProgressEventType = "completed"

	// ProgressEventError reports a stage failure, including recoverable ones
	// that will be retried.
	ProgressEventError ProgressEventType = "error"
)

// ProgressEvent is one observation of an execution's progress, delivered to
// the registered callback and to streaming clients.
type ProgressEvent struct {
	Type         ProgressEventType      `json:"type"`
	ExecutionID  string                 `json:"execution_id"`
	WorkflowType models.WorkflowType    `json:"workflow_type"`
	Status       models.ExecutionStatus `json:"status"`
	Step         string                 `json:"step,omitempty"`
	StepTitle    string                 `json:"step_title,omitempty"`
	Progress     float64                `json:"progress"`
	Confidence   float64                `json:"confidence,omitempty"`
	Cost         float64                `json:"cost,omitempty"`
	RetryCount   int                    `json:"retry_count,omitempty"`
	Message      string                 `json:"message,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
}

// ProgressCallback receives progress events synchronously from the
// orchestrator goroutine. Callbacks must be fast; anything slow should hand
// off to its own goroutine.
type ProgressCallback func(event ProgressEvent)

// Streamer converts a live execution state into a polled event stream for
// clients that attach after the execution started, such as SSE handlers.
type Streamer struct {
	interval time.Duration
	budget   time.Duration
}

// DefaultStreamBudget bounds how long a stream follows a non-terminating
// execution before it is cut off.
const DefaultStreamBudget = 30 * time.Minute

// NewStreamer creates a streamer polling at the given interval. A zero
// interval defaults to 250ms; a zero budget defaults to DefaultStreamBudget.
func NewStreamer(interval, budget time.Duration) *Streamer {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}

	if budget <= 0 {
		budget = DefaultStreamBudget
	}

	return &Streamer{interval: interval, budget: budget}
}

// Stream emits a progress event whenever the execution shows new activity,
// then a final event and channel close once the execution reaches a terminal
// status. The stream also ends when ctx is done or the budget elapses; a
// budget cutoff emits one last status event before the close.
func (s *Streamer) Stream(ctx context.Context, state *models.WorkflowState) <-chan ProgressEvent {
	events := make(chan ProgressEvent, 8)

	go func() {
		defer close(events)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		budget := time.NewTimer(s.budget)
		defer budget.Stop()

		var lastActivity time.Time

		for {
			snapshot := state.Snapshot()

			if snapshot.LastActivity.After(lastActivity) {
				lastActivity = snapshot.LastActivity

				select {
				case events <- snapshotEvent(snapshot):
				case <-ctx.Done():
					return
				}
			}

			if snapshot.Status.IsTerminal() {
				return
			}

			select {
			case <-ticker.C:
			case <-budget.C:
				event := snapshotEvent(state.Snapshot())
				event.Type = ProgressEventStatus
				event.Message = "stream budget exhausted"

				select {
				case events <- event:
				case <-ctx.Done():
				}

				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return events
}

// snapshotEvent projects a state snapshot into the event a late-attaching
// client should see.
func snapshotEvent(snapshot *models.WorkflowState) ProgressEvent {
	event := ProgressEvent{
		Type:         ProgressEventProgress,
		ExecutionID:  snapshot.ExecutionID,
		WorkflowType: snapshot.WorkflowType,
		Status:       snapshot.Status,
		Step:         snapshot.CurrentStep,
		Progress:     snapshot.ProgressPercentage,
		Timestamp:    snapshot.LastActivity,
	}

	switch snapshot.Status {
	case models.ExecutionStatusCompleted:
		event.Type = ProgressEventCompleted
	case models.ExecutionStatusFailed:
		event.Type = ProgressEventError
	case models.ExecutionStatusCancelled:
		event.Type = ProgressEventStatus
	case models.ExecutionStatusPending, models.ExecutionStatusRunning:
	}

	return event
}
