package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ideaforge/ideaforge/pkg/config"
	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/otelhelper"
)

// ErrUnknownStep reports a transition target that is neither a defined stage
// nor a reserved step. It indicates a broken workflow definition.
var ErrUnknownStep = errors.New("unknown workflow step")

// Orchestrator drives one workflow definition as a finite-state machine. Each
// iteration executes the current stage, then transitions to the next stage,
// to retry, or to the error state. A single orchestrator is safe to share
// across executions; all per-execution state lives in WorkflowState.
type Orchestrator struct {
	definition Definition
	factory    NodeFactory
	config     config.Engine
	logger     *slog.Logger
	tracer     trace.Tracer
	callback   ProgressCallback
}

// Option configures an orchestrator.
type Option func(*Orchestrator)

// WithProgressCallback registers a callback invoked after every state
// transition.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(o *Orchestrator) {
		o.callback = callback
	}
}

// WithTracer enables per-stage tracing spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

// NewOrchestrator validates the definition and builds an orchestrator for it.
func NewOrchestrator(definition Definition, factory NodeFactory, cfg config.Engine, logger *slog.Logger, opts ...Option) (*Orchestrator, error) {
	if err := definition.Validate(); err != nil {
		return nil, err
	}

	if factory == nil {
		return nil, fmt.Errorf("workflow %s: node factory is required", definition.Type)
	}

	if logger == nil {
		logger = slog.Default()
	}

	orchestrator := &Orchestrator{
		definition: definition,
		factory:    factory,
		config:     cfg,
		logger:     logger,
	}

	for _, opt := range opts {
		opt(orchestrator)
	}

	return orchestrator, nil
}

// Definition returns the workflow definition this orchestrator runs.
func (o *Orchestrator) Definition() Definition {
	return o.definition
}

// Begin creates the pending execution state for a new run. Callers get the
// execution ID before the run starts, so Run can be dispatched to its own
// goroutine.
func (o *Orchestrator) Begin(initialRequest, userID, projectID string, parameters map[string]any) *models.WorkflowState {
	state := models.NewWorkflowState(o.definition.Type, initialRequest, userID, projectID)
	state.Parameters = parameters
	state.SetQualityWeights(o.definition.Weights)

	return state
}

// Execute runs a workflow synchronously from a fresh state and returns it.
func (o *Orchestrator) Execute(ctx context.Context, initialRequest, userID, projectID string, parameters map[string]any) (*models.WorkflowState, error) {
	state := o.Begin(initialRequest, userID, projectID, parameters)

	err := o.Run(ctx, state)

	return state, err
}

// Run drives the state machine to a terminal status. Stage failures are
// absorbed into the state (retries, then the error state); the returned error
// is non-nil only for cancellation and broken definitions.
func (o *Orchestrator) Run(ctx context.Context, state *models.WorkflowState) error {
	logger := o.logger.With(
		"workflow_type", o.definition.Type,
		"execution_id", state.ExecutionID,
	)

	// A cancel can land before the run goroutine gets here.
	if err := ctx.Err(); err != nil || state.GetStatus() == models.ExecutionStatusCancelled {
		o.cancel(ctx, state, logger, err)

		return err
	}

	state.Begin(o.definition.FirstStep())
	logger.InfoContext(ctx, "Execution started", "first_step", o.definition.FirstStep())

	o.emit(state, ProgressEvent{
		Type:    ProgressEventStatus,
		Step:    state.GetCurrentStep(),
		Message: "execution started",
	})

	for {
		if err := ctx.Err(); err != nil {
			o.cancel(ctx, state, logger, err)

			return err
		}

		step := state.GetCurrentStep()

		switch step {
		case models.StepEnd:
			o.complete(ctx, state, logger)

			return nil
		case models.StepError:
			o.fail(ctx, state, logger)

			return nil
		}

		stage, ok := o.definition.StageByName(step)
		if !ok {
			state.MarkNodeFailed(step, fmt.Sprintf("step %q is not part of workflow %s", step, o.definition.Type))
			o.fail(ctx, state, logger)

			return fmt.Errorf("%w: %q", ErrUnknownStep, step)
		}

		result, err := o.executeStage(ctx, state, stage)
		if err != nil {
			if ctx.Err() != nil {
				o.cancel(ctx, state, logger, ctx.Err())

				return ctx.Err()
			}

			o.handleFailure(ctx, state, stage, logger, err)

			continue
		}

		o.handleSuccess(ctx, state, stage, result, logger)
	}
}

// executeStage runs one stage under the per-step deadline and a tracing span.
func (o *Orchestrator) executeStage(ctx context.Context, state *models.WorkflowState, stage models.Stage) (*models.StageResult, error) {
	stepCtx := ctx

	if o.config.TimeoutPerStep > 0 {
		var cancel context.CancelFunc

		stepCtx, cancel = context.WithTimeout(ctx, o.config.TimeoutPerStep)
		defer cancel()
	}

	if o.tracer != nil {
		var span trace.Span

		stepCtx, span = otelhelper.StartSpan(stepCtx, o.tracer, "workflow.stage",
			attribute.String(otelhelper.WorkflowTypeKey, string(o.definition.Type)),
			attribute.String(otelhelper.ExecutionIDKey, state.ExecutionID),
			attribute.String(otelhelper.StageNameKey, stage.Name),
		)
		defer span.End()

		result, err := o.factory(stage).Execute(stepCtx, state)
		if err != nil {
			otelhelper.RecordError(span, err)
		}

		return result, err
	}

	return o.factory(stage).Execute(stepCtx, state)
}

// handleSuccess folds the stage result into the state and advances to the
// next step.
func (o *Orchestrator) handleSuccess(ctx context.Context, state *models.WorkflowState, stage models.Stage, result *models.StageResult, logger *slog.Logger) {
	state.MarkNodeCompleted(stage.Name, result)

	if stage.QualityDimension != "" {
		state.SetQualityScore(stage.QualityDimension, result.ConfidenceScore)
	}

	next := o.definition.NextStep(stage.Name)
	state.UpdateProgress(next, o.progress(state))

	logger.InfoContext(ctx, "Stage completed",
		"stage", stage.Name,
		"next_step", next,
		"confidence", result.ConfidenceScore,
		"cost", result.Cost,
	)

	o.emit(state, ProgressEvent{
		Type:       ProgressEventProgress,
		Step:       stage.Name,
		StepTitle:  stage.Title,
		Confidence: result.ConfidenceScore,
		Cost:       result.Cost,
		Message:    fmt.Sprintf("stage %s completed", stage.Name),
	})
}

// handleFailure records the failure, then either schedules a retry of the
// same step or transitions to the error state once the retry budget is spent.
func (o *Orchestrator) handleFailure(ctx context.Context, state *models.WorkflowState, stage models.Stage, logger *slog.Logger, err error) {
	state.MarkNodeFailed(stage.Name, err.Error())

	if o.retriesUsed(state, stage.Name) < o.config.MaxRetriesPerStep {
		retryCount := state.IncrementRetry(stage.Name)
		state.SetCurrentStep(stage.Name)

		logger.WarnContext(ctx, "Stage failed, retrying",
			"stage", stage.Name,
			"retry_count", retryCount,
			"error", err,
		)

		o.emit(state, ProgressEvent{
			Type:       ProgressEventError,
			Step:       stage.Name,
			StepTitle:  stage.Title,
			RetryCount: retryCount,
			Message:    fmt.Sprintf("stage %s failed, retrying: %v", stage.Name, err),
		})

		return
	}

	logger.ErrorContext(ctx, "Stage failed, retry budget exhausted",
		"stage", stage.Name,
		"retry_count", state.GetRetryCount(),
		"error", err,
	)

	state.SetCurrentStep(models.StepError)

	o.emit(state, ProgressEvent{
		Type:       ProgressEventError,
		Step:       stage.Name,
		StepTitle:  stage.Title,
		RetryCount: o.retriesUsed(state, stage.Name),
		Message:    fmt.Sprintf("stage %s failed permanently: %v", stage.Name, err),
	})
}

// retriesUsed returns the spent retry budget for a step under the configured
// accounting mode.
func (o *Orchestrator) retriesUsed(state *models.WorkflowState, step string) int {
	if o.config.RetryBudget == config.RetryBudgetPerNode {
		return state.NodeRetryCount(step)
	}

	return state.GetRetryCount()
}

func (o *Orchestrator) complete(ctx context.Context, state *models.WorkflowState, logger *slog.Logger) {
	state.UpdateProgress(models.StepEnd, 100)
	state.Finish(models.ExecutionStatusCompleted)

	summary := state.Summary()
	logger.InfoContext(ctx, "Execution completed",
		"total_cost", summary.TotalCost,
		"overall_confidence", summary.OverallConfidence,
	)

	o.emit(state, ProgressEvent{
		Type:    ProgressEventCompleted,
		Message: "execution completed",
	})
}

func (o *Orchestrator) fail(ctx context.Context, state *models.WorkflowState, logger *slog.Logger) {
	state.Finish(models.ExecutionStatusFailed)

	logger.ErrorContext(ctx, "Execution failed",
		"failed_nodes", state.Snapshot().FailedNodes,
		"retry_count", state.GetRetryCount(),
	)

	o.emit(state, ProgressEvent{
		Type:    ProgressEventError,
		Message: "execution failed",
	})
}

func (o *Orchestrator) cancel(ctx context.Context, state *models.WorkflowState, logger *slog.Logger, cause error) {
	reason := "cancelled"
	if errors.Is(cause, context.DeadlineExceeded) {
		reason = "deadline exceeded"
	}

	// A registry cancel already marked the state with the caller's reason.
	if state.GetStatus() != models.ExecutionStatusCancelled {
		state.CancelWith(reason)
	}
	logger.WarnContext(ctx, "Execution cancelled", "reason", reason)

	o.emit(state, ProgressEvent{
		Type:    ProgressEventStatus,
		Message: "execution cancelled: " + reason,
	})
}

// progress is the completed share of the definition's stages, as a
// percentage.
func (o *Orchestrator) progress(state *models.WorkflowState) float64 {
	snapshot := state.Snapshot()

	completed := make(map[string]struct{}, len(snapshot.CompletedNodes))
	for _, step := range snapshot.CompletedNodes {
		completed[step] = struct{}{}
	}

	var done int

	for _, stage := range o.definition.Stages {
		if _, ok := completed[stage.Name]; ok {
			done++
		}
	}

	return float64(done) / float64(len(o.definition.Stages)) * 100
}

// emit fills the event envelope from the live state and delivers it to the
// registered callback.
func (o *Orchestrator) emit(state *models.WorkflowState, event ProgressEvent) {
	if o.callback == nil {
		return
	}

	snapshot := state.Snapshot()

	event.ExecutionID = snapshot.ExecutionID
	event.WorkflowType = snapshot.WorkflowType
	event.Status = snapshot.Status
	event.Progress = snapshot.ProgressPercentage
	event.Timestamp = time.Now().UTC()

	o.callback(event)
}
