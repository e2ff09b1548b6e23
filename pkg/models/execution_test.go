package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResult(step, model string, cost float64, in, out int64) *StageResult {
	return &StageResult{
		StepName:        step,
		Content:         map[string]any{"summary": "ok"},
		ConfidenceScore: 0.8,
		ModelUsed:       model,
		TokensInput:     in,
		TokensOutput:    out,
		Cost:            cost,
		Timestamp:       time.Now().UTC(),
	}
}

func TestNewWorkflowState(t *testing.T) {
	state := NewWorkflowState(WorkflowTypeResearch, "Build a collaborative editor", "user-1", "proj-1")

	assert.Equal(t, ExecutionStatusPending, state.Status)
	assert.Equal(t, "wf-research", state.WorkflowID)
	assert.NotEmpty(t, state.ExecutionID)
	assert.Equal(t, "user-1", state.UserID)
	assert.Equal(t, "proj-1", state.ProjectID)
	assert.Empty(t, state.CompletedNodes)
	assert.Empty(t, state.FailedNodes)
	assert.Empty(t, state.Errors)
	assert.Zero(t, state.TotalCost)
}

func TestWorkflowState_BeginAndFinish(t *testing.T) {
	state := NewWorkflowState(WorkflowTypePRD, "request", "user-1", "")

	state.Begin("analyze_requirements")

	assert.Equal(t, ExecutionStatusRunning, state.GetStatus())
	assert.Equal(t, "analyze_requirements", state.GetCurrentStep())
	require.NotNil(t, state.StartedAt)

	state.Finish(ExecutionStatusCompleted)

	assert.Equal(t, ExecutionStatusCompleted, state.GetStatus())
	require.NotNil(t, state.CompletedAt)
	assert.False(t, state.CompletedAt.Before(*state.StartedAt))
}

func TestWorkflowState_MarkNodeCompleted(t *testing.T) {
	state := NewWorkflowState(WorkflowTypeResearch, "request", "user-1", "")

	state.MarkNodeCompleted("analyze_idea", newResult("analyze_idea", "gpt-4o", 0.05, 100, 200))
	state.MarkNodeCompleted("market_research", newResult("market_research", "gpt-4o", 0.07, 150, 250))

	assert.Equal(t, []string{"analyze_idea", "market_research"}, state.CompletedNodes)
	assert.InDelta(t, 0.12, state.TotalCost, 1e-9)
	require.Contains(t, state.TokenUsage, "gpt-4o")
	assert.Equal(t, int64(250), state.TokenUsage["gpt-4o"].Input)
	assert.Equal(t, int64(450), state.TokenUsage["gpt-4o"].Output)
	require.NotNil(t, state.Result("analyze_idea"))
}

func TestWorkflowState_MarkNodeCompleted_Idempotent(t *testing.T) {
	state := NewWorkflowState(WorkflowTypeResearch, "request", "user-1", "")

	state.MarkNodeFailed("analyze_idea", "transient failure")
	state.MarkNodeCompleted("analyze_idea", newResult("analyze_idea", "gpt-4o", 0.05, 100, 200))

	// Retry recovered the node: exactly once in completed, gone from failed,
	// but the error log keeps its history.
	assert.Equal(t, []string{"analyze_idea"}, state.CompletedNodes)
	assert.Empty(t, state.FailedNodes)
	assert.Len(t, state.Errors, 1)
}

func TestWorkflowState_FailureAfterCompletionIsRegression(t *testing.T) {
	state := NewWorkflowState(WorkflowTypeResearch, "request", "user-1", "")

	state.MarkNodeCompleted("analyze_idea", newResult("analyze_idea", "gpt-4o", 0.05, 100, 200))
	state.MarkNodeFailed("analyze_idea", "invalid output")

	assert.NotContains(t, state.CompletedNodes, "analyze_idea")
	assert.Contains(t, state.FailedNodes, "analyze_idea")
	assert.Len(t, state.Errors, 1)
}

func TestWorkflowState_TokenUsagePerModel(t *testing.T) {
	state := NewWorkflowState(WorkflowTypeResearch, "request", "user-1", "")

	state.MarkNodeCompleted("analyze_idea", newResult("analyze_idea", "gpt-4o", 0.05, 100, 200))
	state.MarkNodeCompleted("market_research", newResult("market_research", "gpt-4o-mini", 0.01, 300, 400))

	assert.Equal(t, int64(100), state.TokenUsage["gpt-4o"].Input)
	assert.Equal(t, int64(300), state.TokenUsage["gpt-4o-mini"].Input)
	assert.Equal(t, int64(400), state.TokenUsage["gpt-4o-mini"].Output)
}

func TestWorkflowState_IncrementRetry(t *testing.T) {
	state := NewWorkflowState(WorkflowTypeResearch, "request", "user-1", "")

	assert.Equal(t, 1, state.IncrementRetry("analyze_idea"))
	assert.Equal(t, 2, state.IncrementRetry("market_research"))
	assert.Equal(t, 1, state.NodeRetryCount("analyze_idea"))
	assert.Equal(t, 1, state.NodeRetryCount("market_research"))
	assert.Equal(t, 2, state.GetRetryCount())
}

func TestWorkflowState_CancelWith(t *testing.T) {
	state := NewWorkflowState(WorkflowTypeResearch, "request", "user-1", "")
	state.Begin("analyze_idea")

	state.CancelWith("user requested")

	assert.Equal(t, ExecutionStatusCancelled, state.GetStatus())
	assert.Equal(t, "user requested", state.Metadata[MetadataCancellationReason])
	require.NotNil(t, state.CompletedAt)
}

func TestWorkflowState_OverallConfidence(t *testing.T) {
	state := NewWorkflowState(WorkflowTypeResearch, "request", "user-1", "")

	// No sub-scores set.
	assert.Equal(t, 0.0, state.OverallConfidence(nil))

	// Single populated score dominates regardless of other unset dimensions.
	state.SetQualityScore("analysis_depth", 0.9)
	assert.InDelta(t, 0.9, state.OverallConfidence(nil), 1e-9)

	state.SetQualityScore("market_coverage", 0.5)
	assert.InDelta(t, 0.7, state.OverallConfidence(nil), 1e-9)
}

func TestWorkflowState_OverallConfidence_Weighted(t *testing.T) {
	state := NewWorkflowState(WorkflowTypeResearch, "request", "user-1", "")

	state.SetQualityScore("analysis_depth", 1.0)
	state.SetQualityScore("market_coverage", 0.0)

	weights := map[string]float64{
		"analysis_depth":  3.0,
		"market_coverage": 1.0,
	}

	assert.InDelta(t, 0.75, state.OverallConfidence(weights), 1e-9)
}

func TestWorkflowState_Snapshot_Isolated(t *testing.T) {
	state := NewWorkflowState(WorkflowTypeResearch, "request", "user-1", "")
	state.MarkNodeCompleted("analyze_idea", newResult("analyze_idea", "gpt-4o", 0.05, 100, 200))

	snapshot := state.Snapshot()
	state.MarkNodeCompleted("market_research", newResult("market_research", "gpt-4o", 0.07, 100, 200))
	state.MarkNodeFailed("competitive_analysis", "boom")

	assert.Len(t, snapshot.CompletedNodes, 1)
	assert.Empty(t, snapshot.FailedNodes)
	assert.Len(t, snapshot.Results, 1)
	assert.InDelta(t, 0.05, snapshot.TotalCost, 1e-9)
}

func TestWorkflowState_Summary(t *testing.T) {
	state := NewWorkflowState(WorkflowTypeResearch, "request", "user-1", "")
	state.Begin("analyze_idea")
	state.MarkNodeCompleted("analyze_idea", newResult("analyze_idea", "gpt-4o", 0.05, 100, 200))
	state.SetQualityScore("analysis_depth", 0.8)
	state.UpdateProgress("market_research", 20)

	summary := state.Summary()

	assert.Equal(t, state.ExecutionID, summary.ExecutionID)
	assert.Equal(t, ExecutionStatusRunning, summary.Status)
	assert.Equal(t, "market_research", summary.CurrentStep)
	assert.Equal(t, 20.0, summary.ProgressPercentage)
	assert.InDelta(t, 0.8, summary.OverallConfidence, 1e-9)
	assert.InDelta(t, 0.05, summary.TotalCost, 1e-9)
}

func TestWorkflowState_Summary_UsesQualityWeights(t *testing.T) {
	state := NewWorkflowState(WorkflowTypeResearch, "request", "user-1", "")
	state.Begin("analyze_idea")
	state.SetQualityWeights(map[string]float64{"analysis_depth": 1, "synthesis_quality": 3})
	state.SetQualityScore("analysis_depth", 1.0)
	state.SetQualityScore("synthesis_quality", 0.0)

	assert.InDelta(t, 0.25, state.Summary().OverallConfidence, 1e-9)
	assert.InDelta(t, 0.5, state.OverallConfidence(nil), 1e-9)
}

func TestWorkflowState_JSONRoundTrip(t *testing.T) {
	state := NewWorkflowState(WorkflowTypeTaskGeneration, "request", "user-1", "proj-9")
	state.Begin("decompose_prd")
	state.MarkNodeCompleted("decompose_prd", newResult("decompose_prd", "gpt-4o", 0.02, 10, 20))
	state.Finish(ExecutionStatusCompleted)

	payload, err := json.Marshal(state.Snapshot())
	require.NoError(t, err)

	var restored WorkflowState

	require.NoError(t, json.Unmarshal(payload, &restored))
	assert.Equal(t, state.ExecutionID, restored.ExecutionID)
	assert.Equal(t, ExecutionStatusCompleted, restored.Status)
	assert.Equal(t, []string{"decompose_prd"}, restored.CompletedNodes)
	assert.InDelta(t, 0.02, restored.TotalCost, 1e-9)
}
