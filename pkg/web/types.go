package web

import "github.com/ideaforge/ideaforge/pkg/models"

// StartExecutionRequest is the POST /executions payload.
type StartExecutionRequest struct {
	WorkflowType   string         `json:"workflow_type"   validate:"required"`
	InitialRequest string         `json:"initial_request" validate:"required,min=3"`
	UserID         string         `json:"user_id"         validate:"required"`
	ProjectID      string         `json:"project_id"`
	Parameters     map[string]any `json:"parameters"`
}

// CancelExecutionRequest is the optional DELETE /executions/:id payload.
type CancelExecutionRequest struct {
	Reason string `json:"reason"`
}

// StartExecutionResponse is returned from POST /executions.
type StartExecutionResponse struct {
	ExecutionID  string                 `json:"execution_id"`
	WorkflowID   string                 `json:"workflow_id"`
	WorkflowType models.WorkflowType    `json:"workflow_type"`
	Status       models.ExecutionStatus `json:"status"`
}
