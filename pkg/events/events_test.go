package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ideaforge/ideaforge/pkg/models"
)

func TestNewBaseEvent(t *testing.T) {
	base := NewBaseEvent(ExecutionStartedEvent, "exec-12345678", models.WorkflowTypeResearch)

	assert.NotEmpty(t, base.ID)
	assert.Equal(t, ExecutionStartedEvent, base.Type)
	assert.Equal(t, "exec-12345678", base.ExecutionID)
	assert.Equal(t, models.WorkflowTypeResearch, base.WorkflowType)
	assert.False(t, base.Timestamp.IsZero())
	assert.NotNil(t, base.Metadata)
}

func TestEventTypes(t *testing.T) {
	assert.Equal(t, ExecutionStartedEvent, ExecutionStarted{}.GetType())
	assert.Equal(t, ExecutionCompletedEvent, ExecutionCompleted{}.GetType())
	assert.Equal(t, ExecutionFailedEvent, ExecutionFailed{}.GetType())
	assert.Equal(t, ExecutionCancelledEvent, ExecutionCancelled{}.GetType())
	assert.Equal(t, StageCompletedEvent, StageCompleted{}.GetType())
	assert.Equal(t, StageFailedEvent, StageFailed{}.GetType())
}

func TestExecutionFailed_SerializesFailureDetails(t *testing.T) {
	event := ExecutionFailed{
		BaseEvent:   NewBaseEvent(ExecutionFailedEvent, "exec-12345678", models.WorkflowTypePRD),
		FailedNodes: []string{"draft_prd"},
		RetryCount:  2,
		LastError:   "model output is not valid JSON",
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded ExecutionFailed

	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, []string{"draft_prd"}, decoded.FailedNodes)
	assert.Equal(t, 2, decoded.RetryCount)
	assert.Equal(t, "exec-12345678", decoded.ExecutionID)
}
