// Package persistence provides the durable storage abstraction for workflow
// executions.
package persistence

import (
	"context"

	"github.com/ideaforge/ideaforge/pkg/models"
)

// Persistence stores execution states. Implementations persist snapshots, so
// callers must pass states that are safe to marshal (snapshot or quiescent).
type Persistence interface {
	Executions(ctx context.Context) ([]*models.WorkflowState, error)
	ExecutionByID(ctx context.Context, executionID string) (*models.WorkflowState, error)
	ExecutionsByUser(ctx context.Context, userID string) ([]*models.WorkflowState, error)
	SaveExecution(ctx context.Context, state *models.WorkflowState) error
	DeleteExecution(ctx context.Context, executionID string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
