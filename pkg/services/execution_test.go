package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaforge/ideaforge/pkg/config"
	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/persistence/file"
	"github.com/ideaforge/ideaforge/pkg/workflow"
)

type nodeFunc func(ctx context.Context, state *models.WorkflowState) (*models.StageResult, error)

func (f nodeFunc) Execute(ctx context.Context, state *models.WorkflowState) (*models.StageResult, error) {
	return f(ctx, state)
}

func quickFactory(delay time.Duration) workflow.NodeFactory {
	return func(stage models.Stage) workflow.Node {
		return nodeFunc(func(ctx context.Context, _ *models.WorkflowState) (*models.StageResult, error) {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}

			return &models.StageResult{
				StepName:        stage.Name,
				Content:         map[string]any{"output": "ok"},
				ConfidenceScore: 0.9,
				Cost:            0.01,
				Timestamp:       time.Now().UTC(),
			}, nil
		})
	}
}

func researchDefinition() workflow.Definition {
	return workflow.Definition{
		Type: models.WorkflowTypeResearch,
		Stages: []models.Stage{
			{Name: "analyze_idea", PromptTemplate: "analyze"},
			{Name: "synthesize", PromptTemplate: "synthesize"},
		},
	}
}

func newService(t *testing.T, factory workflow.NodeFactory) (*Execution, *workflow.Registry) {
	t.Helper()

	orchestrator, err := workflow.NewOrchestrator(researchDefinition(), factory, config.Default(), nil)
	require.NoError(t, err)

	registry := workflow.NewRegistry(config.Default(), nil)

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	service := NewExecution([]*workflow.Orchestrator{orchestrator}, registry, store, nil, nil)

	return service, registry
}

func validRequest() StartExecutionRequest {
	return StartExecutionRequest{
		WorkflowType:   models.WorkflowTypeResearch,
		InitialRequest: "a collaborative editor",
		UserID:         "user-1",
	}
}

func waitForStatus(t *testing.T, service *Execution, executionID string, expected models.ExecutionStatus) {
	t.Helper()

	require.Eventually(t, func() bool {
		summary, err := service.Status(context.Background(), executionID)

		return err == nil && summary.Status == expected
	}, 5*time.Second, 10*time.Millisecond)
}

func TestExecution_Start_RunsToCompletion(t *testing.T) {
	service, _ := newService(t, quickFactory(0))

	summary, err := service.Start(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotEmpty(t, summary.ExecutionID)

	waitForStatus(t, service, summary.ExecutionID, models.ExecutionStatusCompleted)

	result, err := service.Result(context.Background(), summary.ExecutionID)
	require.NoError(t, err)

	assert.Equal(t, []string{"analyze_idea", "synthesize"}, result.CompletedNodes)
	assert.InDelta(t, 100.0, result.ProgressPercentage, 0.001)
	assert.InDelta(t, 0.02, result.TotalCost, 0.0001)
}

func TestExecution_Start_ValidationFailure(t *testing.T) {
	service, _ := newService(t, quickFactory(0))

	req := validRequest()
	req.InitialRequest = ""

	_, err := service.Start(context.Background(), req)

	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestExecution_Start_UnknownWorkflowType(t *testing.T) {
	service, _ := newService(t, quickFactory(0))

	req := validRequest()
	req.WorkflowType = models.WorkflowTypeCustom

	_, err := service.Start(context.Background(), req)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownWorkflowType)
}

func TestExecution_Status_UnknownExecution(t *testing.T) {
	service, _ := newService(t, quickFactory(0))

	_, err := service.Status(context.Background(), "exec-missing")

	assert.True(t, IsNotFoundError(err))
}

func TestExecution_Status_FallsBackToPersistence(t *testing.T) {
	service, registry := newService(t, quickFactory(0))

	summary, err := service.Start(context.Background(), validRequest())
	require.NoError(t, err)

	waitForStatus(t, service, summary.ExecutionID, models.ExecutionStatusCompleted)

	// Simulate retention eviction; the durable snapshot must still answer.
	registry.Remove(summary.ExecutionID)

	persisted, err := service.Status(context.Background(), summary.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, persisted.Status)
}

func TestExecution_Result_WhileRunning(t *testing.T) {
	service, _ := newService(t, quickFactory(time.Minute))

	summary, err := service.Start(context.Background(), validRequest())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = service.Cancel(context.Background(), summary.ExecutionID, "test cleanup")
	})

	_, err = service.Result(context.Background(), summary.ExecutionID)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExecutionNotFinished)
	assert.True(t, IsConflictError(err))
}

func TestExecution_Cancel(t *testing.T) {
	service, _ := newService(t, quickFactory(time.Minute))

	summary, err := service.Start(context.Background(), validRequest())
	require.NoError(t, err)

	require.NoError(t, service.Cancel(context.Background(), summary.ExecutionID, "changed my mind"))

	waitForStatus(t, service, summary.ExecutionID, models.ExecutionStatusCancelled)

	result, err := service.Result(context.Background(), summary.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "changed my mind", result.Metadata[models.MetadataCancellationReason])

	err = service.Cancel(context.Background(), summary.ExecutionID, "again")
	assert.ErrorIs(t, err, ErrExecutionAlreadyFinished)
}

func TestExecution_Cancel_UnknownExecution(t *testing.T) {
	service, _ := newService(t, quickFactory(0))

	err := service.Cancel(context.Background(), "exec-missing", "")

	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestExecution_List_FiltersByUser(t *testing.T) {
	service, _ := newService(t, quickFactory(0))

	first, err := service.Start(context.Background(), validRequest())
	require.NoError(t, err)

	other := validRequest()
	other.UserID = "user-2"

	second, err := service.Start(context.Background(), other)
	require.NoError(t, err)

	waitForStatus(t, service, first.ExecutionID, models.ExecutionStatusCompleted)
	waitForStatus(t, service, second.ExecutionID, models.ExecutionStatusCompleted)

	mine, err := service.List(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ExecutionID, mine[0].ExecutionID)

	all, err := service.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestExecution_Stream_DeliversProgress(t *testing.T) {
	service, _ := newService(t, quickFactory(20*time.Millisecond))

	summary, err := service.Start(context.Background(), validRequest())
	require.NoError(t, err)

	events, err := service.Stream(context.Background(), summary.ExecutionID, 5*time.Millisecond)
	require.NoError(t, err)

	var last workflow.ProgressEvent

	for event := range events {
		last = event
	}

	assert.Equal(t, workflow.ProgressEventCompleted, last.Type)
	assert.InDelta(t, 100.0, last.Progress, 0.001)
}

func TestExecution_Stream_UnknownExecution(t *testing.T) {
	service, _ := newService(t, quickFactory(0))

	_, err := service.Stream(context.Background(), "exec-missing", 0)

	assert.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestExecution_WorkflowTypes(t *testing.T) {
	service, _ := newService(t, quickFactory(0))

	assert.Equal(t, []models.WorkflowType{models.WorkflowTypeResearch}, service.WorkflowTypes())
}
