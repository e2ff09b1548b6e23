package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/persistence"
)

// ExecutionRepository handles execution-related database operations. The full
// state is stored as JSONB; the promoted columns exist for filtering and
// indexing.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const selectExecutionColumns = `
	SELECT
		execution_id
	  , state
	FROM executions
`

// Save upserts an execution snapshot.
func (r *ExecutionRepository) Save(ctx context.Context, state *models.WorkflowState) error {
	snapshot := state.Snapshot()

	stateJSON, err := json.Marshal(snapshot)
	if err != nil {
		return persistence.NewStoreError("SaveExecution", snapshot.ExecutionID, fmt.Errorf("failed to marshal state: %w", err))
	}

	query := `
		INSERT INTO executions (execution_id, workflow_id, workflow_type, user_id, project_id,
			status, total_cost, state, created_at, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (execution_id) DO UPDATE SET
			status = EXCLUDED.status,
			total_cost = EXCLUDED.total_cost,
			state = EXCLUDED.state,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		snapshot.ExecutionID,
		snapshot.WorkflowID,
		string(snapshot.WorkflowType),
		snapshot.UserID,
		nullableString(snapshot.ProjectID),
		string(snapshot.Status),
		snapshot.TotalCost,
		stateJSON,
		snapshot.CreatedAt,
		snapshot.CompletedAt,
		time.Now().UTC(),
	)
	if err != nil {
		return persistence.NewStoreError("SaveExecution", snapshot.ExecutionID, err)
	}

	return nil
}

// GetByID loads one execution state.
func (r *ExecutionRepository) GetByID(ctx context.Context, executionID string) (*models.WorkflowState, error) {
	row := r.db.QueryRowContext(ctx, selectExecutionColumns+"WHERE execution_id = $1", executionID)

	state, err := scanExecution(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("ExecutionByID", executionID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewStoreError("ExecutionByID", executionID, err)
	}

	return state, nil
}

// GetAll loads all executions, newest first.
func (r *ExecutionRepository) GetAll(ctx context.Context) ([]*models.WorkflowState, error) {
	return r.query(ctx, selectExecutionColumns+"ORDER BY created_at DESC")
}

// GetByUser loads all executions started by one user, newest first.
func (r *ExecutionRepository) GetByUser(ctx context.Context, userID string) ([]*models.WorkflowState, error) {
	return r.query(ctx, selectExecutionColumns+"WHERE user_id = $1 ORDER BY created_at DESC", userID)
}

// Delete removes an execution.
func (r *ExecutionRepository) Delete(ctx context.Context, executionID string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM executions WHERE execution_id = $1", executionID)
	if err != nil {
		return persistence.NewStoreError("DeleteExecution", executionID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("DeleteExecution", executionID, err)
	}

	if affected == 0 {
		return persistence.NewStoreError("DeleteExecution", executionID, persistence.ErrExecutionNotFound)
	}

	return nil
}

func (r *ExecutionRepository) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowState, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("Executions", "", err)
	}

	defer func(ctx context.Context, r *ExecutionRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	states := make([]*models.WorkflowState, 0)

	for rows.Next() {
		state, err := scanExecution(rows)
		if err != nil {
			return nil, persistence.NewStoreError("Executions", "", err)
		}

		states = append(states, state)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewStoreError("Executions", "", err)
	}

	return states, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*models.WorkflowState, error) {
	var (
		executionID string
		stateJSON   []byte
	)

	err := row.Scan(&executionID, &stateJSON)
	if err != nil {
		return nil, err
	}

	var state models.WorkflowState

	err = json.Unmarshal(stateJSON, &state)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal state for execution %s: %w", executionID, err)
	}

	return &state, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}

	return value
}
