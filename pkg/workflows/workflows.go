package workflows

import (
	"fmt"

	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/workflow"
)

// All returns the built-in workflow definitions.
func All() []workflow.Definition {
	return []workflow.Definition{
		Research(),
		PRD(),
		TaskGeneration(),
	}
}

// ByType resolves a built-in definition by workflow type.
func ByType(workflowType models.WorkflowType) (workflow.Definition, error) {
	for _, definition := range All() {
		if definition.Type == workflowType {
			return definition, nil
		}
	}

	return workflow.Definition{}, fmt.Errorf("unknown workflow type: %s", workflowType)
}
