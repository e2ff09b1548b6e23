package workflows

import (
	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/workflow"
)

// TaskGeneration decomposes a PRD into an ordered, estimated task backlog.
// The source PRD arrives via the execution parameters under "prd".
func TaskGeneration() workflow.Definition {
	return workflow.Definition{
		Type:  models.WorkflowTypeTaskGeneration,
		Title: "Task Generation",
		Stages: []models.Stage{
			{
				Name:         "decompose_prd",
				Title:        "Decompose PRD",
				SystemPrompt: "You are an engineering lead planning delivery. Answer in JSON only.",
				PromptTemplate: `Decompose this PRD into concrete engineering tasks.

Request: {{ .initial_request }}
{{ if .parameters.prd }}PRD: {{ json .parameters.prd }}{{ end }}

Return a JSON object with: tasks (array of objects with id, title, description, component), dependencies (array of objects with task and depends_on).`,
				OutputSchema: objectSchema(map[string]any{
					"tasks":        arrayProperty(),
					"dependencies": arrayProperty(),
				}, "tasks"),
				QualityDimension: "decomposition_coverage",
				MaxTokens:        4000,
			},
			{
				Name:         "estimate_tasks",
				Title:        "Estimate Tasks",
				SystemPrompt: "You are an engineering lead estimating work. Answer in JSON only.",
				PromptTemplate: `Estimate each task.

Tasks: {{ json (index .results "decompose_prd") }}

Return a JSON object with: estimates (array of objects with task_id, points, risk), total_points (number).`,
				OutputSchema: objectSchema(map[string]any{
					"estimates":    arrayProperty(),
					"total_points": map[string]any{"type": "number"},
				}, "estimates"),
				QualityDimension: "estimate_consistency",
			},
			{
				Name:         "sequence_tasks",
				Title:        "Sequence Tasks",
				SystemPrompt: "You are an engineering lead sequencing delivery. Answer in JSON only.",
				PromptTemplate: `Order the tasks into a delivery plan respecting dependencies.

Tasks: {{ json (index .results "decompose_prd") }}
Estimates: {{ json (index .results "estimate_tasks") }}

Return a JSON object with: milestones (array of objects with name and task_ids), critical_path (array), notes.`,
				OutputSchema: objectSchema(map[string]any{
					"milestones":    arrayProperty(),
					"critical_path": arrayProperty(),
					"notes":         stringProperty(),
				}, "milestones"),
				QualityDimension: "plan_quality",
			},
		},
		Weights: map[string]float64{
			"decomposition_coverage": 1.5,
			"estimate_consistency":   1,
			"plan_quality":           2,
		},
	}
}
