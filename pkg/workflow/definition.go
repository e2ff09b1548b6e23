// Package workflow implements the finite-state orchestrator that drives AI
// workflow executions through their stage pipeline.
package workflow

import (
	"context"
	"fmt"

	"github.com/ideaforge/ideaforge/pkg/models"
)

// Node executes one stage against the current execution state. It must not
// mutate the state; all transitions belong to the orchestrator.
type Node interface {
	Execute(ctx context.Context, state *models.WorkflowState) (*models.StageResult, error)
}

// NodeFactory builds the node for a stage. The orchestrator calls it once per
// stage invocation, so retries get a fresh node.
type NodeFactory func(stage models.Stage) Node

// Definition is a workflow type's fixed stage pipeline. Stages run in order;
// the transition table is linear with the reserved retry, error and end steps
// layered on top by the orchestrator.
type Definition struct {
	Type   models.WorkflowType `json:"type"   validate:"required"`
	Title  string              `json:"title"`
	Stages []models.Stage      `json:"stages" validate:"required,min=1,dive"`

	// Weights maps quality dimensions to their share of the overall
	// confidence score. Dimensions absent here count with weight 1.0.
	Weights map[string]float64 `json:"weights,omitempty"`
}

// Validate checks the definition is runnable: at least one stage, unique
// stage names, and no stage using a reserved step name.
func (d Definition) Validate() error {
	if len(d.Stages) == 0 {
		return fmt.Errorf("workflow %s has no stages", d.Type)
	}

	seen := make(map[string]struct{}, len(d.Stages))

	for _, stage := range d.Stages {
		if stage.Name == "" {
			return fmt.Errorf("workflow %s has a stage without a name", d.Type)
		}

		if stage.Name == models.StepError || stage.Name == models.StepRetry || stage.Name == models.StepEnd {
			return fmt.Errorf("workflow %s uses reserved step name %q", d.Type, stage.Name)
		}

		if _, ok := seen[stage.Name]; ok {
			return fmt.Errorf("workflow %s has duplicate stage %q", d.Type, stage.Name)
		}

		seen[stage.Name] = struct{}{}
	}

	return nil
}

// FirstStep returns the entry step of the pipeline.
func (d Definition) FirstStep() string {
	return d.Stages[0].Name
}

// StageByName looks up a stage by its step name.
func (d Definition) StageByName(name string) (models.Stage, bool) {
	for _, stage := range d.Stages {
		if stage.Name == name {
			return stage, true
		}
	}

	return models.Stage{}, false
}

// NextStep returns the step after the given one, or the reserved end step
// when the given step is the last stage.
func (d Definition) NextStep(current string) string {
	for i, stage := range d.Stages {
		if stage.Name == current {
			if i+1 < len(d.Stages) {
				return d.Stages[i+1].Name
			}

			return models.StepEnd
		}
	}

	return models.StepEnd
}

// StageNames returns the ordered step names of the pipeline.
func (d Definition) StageNames() []string {
	names := make([]string, 0, len(d.Stages))
	for _, stage := range d.Stages {
		names = append(names, stage.Name)
	}

	return names
}
