// Package file provides file-based persistence for executions, used in local
// development and single-node deployments.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/persistence"
)

// Persistence stores each execution as one JSON file under <root>/executions.
type Persistence struct {
	root string
}

// NewPersistence creates a file persistence rooted at the given directory.
// A file:// prefix is accepted for symmetry with database URLs.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	err := os.MkdirAll(filepath.Join(cleanRoot, "executions"), 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create executions directory: %w", err)
	}

	return &Persistence{root: cleanRoot}, nil
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) executionPath(executionID string) string {
	return filepath.Join(fp.root, "executions", executionID+".json")
}

// SaveExecution writes the execution snapshot to disk, replacing any previous
// version.
func (fp *Persistence) SaveExecution(_ context.Context, state *models.WorkflowState) error {
	snapshot := state.Snapshot()

	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return persistence.NewStoreError("SaveExecution", snapshot.ExecutionID, err)
	}

	err = os.WriteFile(fp.executionPath(snapshot.ExecutionID), payload, 0o644)
	if err != nil {
		return persistence.NewStoreError("SaveExecution", snapshot.ExecutionID, err)
	}

	return nil
}

// ExecutionByID loads one execution.
func (fp *Persistence) ExecutionByID(_ context.Context, executionID string) (*models.WorkflowState, error) {
	payload, err := os.ReadFile(fp.executionPath(executionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, persistence.NewStoreError("ExecutionByID", executionID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewStoreError("ExecutionByID", executionID, err)
	}

	var state models.WorkflowState

	err = json.Unmarshal(payload, &state)
	if err != nil {
		return nil, persistence.NewStoreError("ExecutionByID", executionID, err)
	}

	return &state, nil
}

// Executions loads all stored executions, newest first.
func (fp *Persistence) Executions(ctx context.Context) ([]*models.WorkflowState, error) {
	root := os.DirFS(filepath.Join(fp.root, "executions"))

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, persistence.NewStoreError("Executions", "", err)
	}

	states := make([]*models.WorkflowState, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		executionID := strings.TrimSuffix(file, ".json")

		state, err := fp.ExecutionByID(ctx, executionID)
		if err != nil {
			return nil, err
		}

		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].CreatedAt.After(states[j].CreatedAt)
	})

	return states, nil
}

// ExecutionsByUser loads all executions started by one user, newest first.
func (fp *Persistence) ExecutionsByUser(ctx context.Context, userID string) ([]*models.WorkflowState, error) {
	all, err := fp.Executions(ctx)
	if err != nil {
		return nil, err
	}

	states := make([]*models.WorkflowState, 0)

	for _, state := range all {
		if state.UserID == userID {
			states = append(states, state)
		}
	}

	return states, nil
}

// DeleteExecution removes a stored execution.
func (fp *Persistence) DeleteExecution(_ context.Context, executionID string) error {
	err := os.Remove(fp.executionPath(executionID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return persistence.NewStoreError("DeleteExecution", executionID, persistence.ErrExecutionNotFound)
		}

		return persistence.NewStoreError("DeleteExecution", executionID, err)
	}

	return nil
}
