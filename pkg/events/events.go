// Package events defines event types and structures for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/ideaforge/ideaforge/pkg/models"
)

type EventType string

// Topic carries all execution lifecycle events.
const Topic = "ideaforge.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	ExecutionCancelledEvent EventType = "execution.cancelled"

	// Stage-level events.
	StageCompletedEvent EventType = "execution.stage.completed"
	StageFailedEvent    EventType = "execution.stage.failed"
)

type BaseEvent struct {
	ID           string              `json:"id"`
	Type         EventType           `json:"type"`
	Timestamp    time.Time           `json:"timestamp"`
	ExecutionID  string              `json:"execution_id"`
	WorkflowType models.WorkflowType `json:"workflow_type"`
	Metadata     map[string]any      `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, executionID string, workflowType models.WorkflowType) BaseEvent {
	return BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		ExecutionID:  executionID,
		WorkflowType: workflowType,
		Metadata:     make(map[string]any),
	}
}

type ExecutionStarted struct {
	BaseEvent

	UserID         string         `json:"user_id"`
	ProjectID      string         `json:"project_id,omitempty"`
	InitialRequest string         `json:"initial_request"`
	Parameters     map[string]any `json:"parameters,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	DurationMs        int64   `json:"duration_ms"`
	StagesCompleted   int     `json:"stages_completed"`
	TotalCost         float64 `json:"total_cost"`
	OverallConfidence float64 `json:"overall_confidence"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	DurationMs      int64    `json:"duration_ms"`
	FailedNodes     []string `json:"failed_nodes"`
	RetryCount      int      `json:"retry_count"`
	StagesCompleted int      `json:"stages_completed"`
	LastError       string   `json:"last_error,omitempty"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type ExecutionCancelled struct {
	BaseEvent

	DurationMs      int64  `json:"duration_ms"`
	Reason          string `json:"reason,omitempty"`
	StagesCompleted int    `json:"stages_completed"`
}

func (e ExecutionCancelled) GetType() EventType {
	return ExecutionCancelledEvent
}

type StageCompleted struct {
	BaseEvent

	Stage      string  `json:"stage"`
	Confidence float64 `json:"confidence"`
	Cost       float64 `json:"cost"`
	Progress   float64 `json:"progress"`
}

func (e StageCompleted) GetType() EventType {
	return StageCompletedEvent
}

type StageFailed struct {
	BaseEvent

	Stage      string `json:"stage"`
	Error      string `json:"error"`
	RetryCount int    `json:"retry_count"`
	WillRetry  bool   `json:"will_retry"`
}

func (e StageFailed) GetType() EventType {
	return StageFailedEvent
}
