package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ideaforge/ideaforge/pkg/eventbus"
	"github.com/ideaforge/ideaforge/pkg/events"
	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/persistence"
	"github.com/ideaforge/ideaforge/pkg/workflow"
)

// StartExecutionRequest describes one execution to start.
type StartExecutionRequest struct {
	WorkflowType   models.WorkflowType `json:"workflow_type"   validate:"required"`
	InitialRequest string              `json:"initial_request" validate:"required,min=3"`
	UserID         string              `json:"user_id"         validate:"required"`
	ProjectID      string              `json:"project_id"`
	Parameters     map[string]any      `json:"parameters"`
}

// Execution coordinates the workflow engine: it starts runs on their own
// goroutines, tracks them in the registry, publishes lifecycle events and
// persists terminal snapshots.
type Execution struct {
	orchestrators map[models.WorkflowType]*workflow.Orchestrator
	registry      *workflow.Registry
	persistence   persistence.Persistence
	eventBus      eventbus.EventBus
	validator     *validator.Validate
	logger        *slog.Logger
}

// NewExecution creates the execution service. The event bus may be nil when
// no broker is configured.
func NewExecution(
	orchestrators []*workflow.Orchestrator,
	registry *workflow.Registry,
	store persistence.Persistence,
	bus eventbus.EventBus,
	logger *slog.Logger,
) *Execution {
	byType := make(map[models.WorkflowType]*workflow.Orchestrator, len(orchestrators))
	for _, orchestrator := range orchestrators {
		byType[orchestrator.Definition().Type] = orchestrator
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Execution{
		orchestrators: byType,
		registry:      registry,
		persistence:   store,
		eventBus:      bus,
		validator:     validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger,
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Execution) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// WorkflowTypes returns the workflow types this service can run.
func (s *Execution) WorkflowTypes() []models.WorkflowType {
	types := make([]models.WorkflowType, 0, len(s.orchestrators))
	for workflowType := range s.orchestrators {
		types = append(types, workflowType)
	}

	return types
}

// Start validates the request and launches the execution on its own
// goroutine. The returned summary carries the execution ID for status
// polling; the run itself outlives the request context.
func (s *Execution) Start(ctx context.Context, req StartExecutionRequest) (models.ExecutionSummary, error) {
	err := s.validator.Struct(req)
	if err != nil {
		return models.ExecutionSummary{}, NewValidationError(
			"Start", "INVALID_REQUEST", err.Error(), ErrInvalidRequest)
	}

	orchestrator, ok := s.orchestrators[req.WorkflowType]
	if !ok {
		return models.ExecutionSummary{}, NewValidationError(
			"Start", "UNKNOWN_WORKFLOW_TYPE",
			fmt.Sprintf("no workflow registered for type %q", req.WorkflowType),
			ErrUnknownWorkflowType)
	}

	state := orchestrator.Begin(req.InitialRequest, req.UserID, req.ProjectID, req.Parameters)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.registry.Track(state, cancel)

	s.publish(runCtx, state.ExecutionID, events.ExecutionStarted{
		BaseEvent:      events.NewBaseEvent(events.ExecutionStartedEvent, state.ExecutionID, state.WorkflowType),
		UserID:         req.UserID,
		ProjectID:      req.ProjectID,
		InitialRequest: req.InitialRequest,
		Parameters:     req.Parameters,
	})

	go s.run(runCtx, orchestrator, state)

	return state.Summary(), nil
}

// run drives the execution to a terminal state, then publishes the terminal
// event and persists the final snapshot.
func (s *Execution) run(ctx context.Context, orchestrator *workflow.Orchestrator, state *models.WorkflowState) {
	err := orchestrator.Run(ctx, state)
	if err != nil {
		s.logger.WarnContext(ctx, "Execution run stopped",
			"execution_id", state.ExecutionID, "error", err)
	}

	s.publishTerminal(ctx, state)

	if s.persistence != nil {
		// Persist with a fresh context: the run context may already be
		// cancelled when the execution was aborted.
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()

		err := s.persistence.SaveExecution(saveCtx, state)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to persist execution",
				"execution_id", state.ExecutionID, "error", err)
		}
	}
}

func (s *Execution) publishTerminal(ctx context.Context, state *models.WorkflowState) {
	snapshot := state.Snapshot()

	var durationMs int64
	if snapshot.StartedAt != nil && snapshot.CompletedAt != nil {
		durationMs = snapshot.CompletedAt.Sub(*snapshot.StartedAt).Milliseconds()
	}

	switch snapshot.Status {
	case models.ExecutionStatusCompleted:
		s.publish(ctx, snapshot.ExecutionID, events.ExecutionCompleted{
			BaseEvent:         events.NewBaseEvent(events.ExecutionCompletedEvent, snapshot.ExecutionID, snapshot.WorkflowType),
			DurationMs:        durationMs,
			StagesCompleted:   len(snapshot.CompletedNodes),
			TotalCost:         snapshot.TotalCost,
			OverallConfidence: snapshot.OverallConfidence(snapshot.QualityWeights),
		})
	case models.ExecutionStatusFailed:
		var lastError string
		if len(snapshot.Errors) > 0 {
			lastError = snapshot.Errors[len(snapshot.Errors)-1].Error
		}

		s.publish(ctx, snapshot.ExecutionID, events.ExecutionFailed{
			BaseEvent:       events.NewBaseEvent(events.ExecutionFailedEvent, snapshot.ExecutionID, snapshot.WorkflowType),
			DurationMs:      durationMs,
			FailedNodes:     snapshot.FailedNodes,
			RetryCount:      snapshot.RetryCount,
			StagesCompleted: len(snapshot.CompletedNodes),
			LastError:       lastError,
		})
	case models.ExecutionStatusCancelled:
		reason, _ := snapshot.Metadata[models.MetadataCancellationReason].(string)

		s.publish(ctx, snapshot.ExecutionID, events.ExecutionCancelled{
			BaseEvent:       events.NewBaseEvent(events.ExecutionCancelledEvent, snapshot.ExecutionID, snapshot.WorkflowType),
			DurationMs:      durationMs,
			Reason:          reason,
			StagesCompleted: len(snapshot.CompletedNodes),
		})
	case models.ExecutionStatusPending, models.ExecutionStatusRunning:
		// Run returned without a terminal status; nothing to publish.
	}
}

func (s *Execution) publish(ctx context.Context, key string, event eventbus.Event) {
	if s.eventBus == nil {
		return
	}

	err := s.eventBus.Publish(ctx, key, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "execution_id", key, "error", err)
	}
}

// Status returns the execution summary, preferring the live registry entry
// and falling back to the durable store.
func (s *Execution) Status(ctx context.Context, executionID string) (models.ExecutionSummary, error) {
	if state, ok := s.registry.Get(executionID); ok {
		return state.Summary(), nil
	}

	state, err := s.loadPersisted(ctx, executionID)
	if err != nil {
		return models.ExecutionSummary{}, err
	}

	return state.Summary(), nil
}

// Result returns the full state of a finished execution, including all stage
// results. Running executions yield ErrExecutionNotFinished.
func (s *Execution) Result(ctx context.Context, executionID string) (*models.WorkflowState, error) {
	var state *models.WorkflowState

	if live, ok := s.registry.Get(executionID); ok {
		state = live.Snapshot()
	} else {
		persisted, err := s.loadPersisted(ctx, executionID)
		if err != nil {
			return nil, err
		}

		state = persisted
	}

	if !state.Status.IsTerminal() {
		return nil, &ServiceError{
			Op:      "Result",
			Code:    "EXECUTION_NOT_FINISHED",
			Message: fmt.Sprintf("execution %s is still %s", executionID, state.Status),
			Err:     ErrExecutionNotFinished,
		}
	}

	return state, nil
}

// Cancel requests cooperative cancellation of a running execution.
func (s *Execution) Cancel(ctx context.Context, executionID, reason string) error {
	err := s.registry.Cancel(executionID, reason)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, workflow.ErrExecutionFinished):
		return &ServiceError{
			Op:   "Cancel",
			Code: "EXECUTION_FINISHED",
			Err:  ErrExecutionAlreadyFinished,
		}
	default:
		// Not tracked: either unknown or already evicted. A persisted
		// terminal execution cannot be cancelled either way.
		if _, loadErr := s.loadPersisted(ctx, executionID); loadErr == nil {
			return &ServiceError{
				Op:   "Cancel",
				Code: "EXECUTION_FINISHED",
				Err:  ErrExecutionAlreadyFinished,
			}
		}

		return &ServiceError{
			Op:   "Cancel",
			Code: "EXECUTION_NOT_FOUND",
			Err:  ErrExecutionNotFound,
		}
	}
}

// List returns summaries for a user's executions, merging live registry
// entries over the durable store.
func (s *Execution) List(ctx context.Context, userID string) ([]models.ExecutionSummary, error) {
	merged := make(map[string]models.ExecutionSummary)

	if s.persistence != nil {
		var (
			states []*models.WorkflowState
			err    error
		)

		if userID == "" {
			states, err = s.persistence.Executions(ctx)
		} else {
			states, err = s.persistence.ExecutionsByUser(ctx, userID)
		}

		if err != nil {
			return nil, fmt.Errorf("failed to list executions: %w", err)
		}

		for _, state := range states {
			merged[state.ExecutionID] = state.Summary()
		}
	}

	for _, state := range s.registry.List() {
		if userID != "" && state.UserID != userID {
			continue
		}

		merged[state.ExecutionID] = state.Summary()
	}

	summaries := make([]models.ExecutionSummary, 0, len(merged))
	for _, summary := range merged {
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})

	return summaries, nil
}

// Stream attaches a progress event stream to a live execution.
func (s *Execution) Stream(ctx context.Context, executionID string, interval time.Duration) (<-chan workflow.ProgressEvent, error) {
	state, ok := s.registry.Get(executionID)
	if !ok {
		// Finished and evicted executions have no live stream.
		if _, err := s.loadPersisted(ctx, executionID); err == nil {
			return nil, &ServiceError{
				Op:   "Stream",
				Code: "EXECUTION_FINISHED",
				Err:  ErrExecutionAlreadyFinished,
			}
		}

		return nil, &ServiceError{
			Op:   "Stream",
			Code: "EXECUTION_NOT_FOUND",
			Err:  ErrExecutionNotFound,
		}
	}

	return workflow.NewStreamer(interval, 0).Stream(ctx, state), nil
}

func (s *Execution) loadPersisted(ctx context.Context, executionID string) (*models.WorkflowState, error) {
	if s.persistence == nil {
		return nil, &ServiceError{
			Op:   "loadPersisted",
			Code: "EXECUTION_NOT_FOUND",
			Err:  ErrExecutionNotFound,
		}
	}

	state, err := s.persistence.ExecutionByID(ctx, executionID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return nil, &ServiceError{
				Op:   "loadPersisted",
				Code: "EXECUTION_NOT_FOUND",
				Err:  ErrExecutionNotFound,
			}
		}

		return nil, fmt.Errorf("failed to load execution %s: %w", executionID, err)
	}

	return state, nil
}
