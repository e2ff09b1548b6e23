// Package postgresql provides PostgreSQL persistence for workflow executions.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	executionRepo *ExecutionRepository
}

// NewPersistence connects, runs migrations and returns the persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		executionRepo: NewExecutionRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Executions returns all stored executions.
func (p *Persistence) Executions(ctx context.Context) ([]*models.WorkflowState, error) {
	return p.executionRepo.GetAll(ctx)
}

// ExecutionByID returns an execution by its ID.
func (p *Persistence) ExecutionByID(ctx context.Context, executionID string) (*models.WorkflowState, error) {
	return p.executionRepo.GetByID(ctx, executionID)
}

// ExecutionsByUser returns the executions started by one user.
func (p *Persistence) ExecutionsByUser(ctx context.Context, userID string) ([]*models.WorkflowState, error) {
	return p.executionRepo.GetByUser(ctx, userID)
}

// SaveExecution upserts an execution snapshot.
func (p *Persistence) SaveExecution(ctx context.Context, state *models.WorkflowState) error {
	return p.executionRepo.Save(ctx, state)
}

// DeleteExecution removes an execution.
func (p *Persistence) DeleteExecution(ctx context.Context, executionID string) error {
	return p.executionRepo.Delete(ctx, executionID)
}
