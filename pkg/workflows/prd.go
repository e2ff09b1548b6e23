package workflows

import (
	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/workflow"
)

// PRD turns a validated idea into a reviewed product requirements document.
func PRD() workflow.Definition {
	return workflow.Definition{
		Type:  models.WorkflowTypePRD,
		Title: "PRD Generation",
		Stages: []models.Stage{
			{
				Name:         "analyze_requirements",
				Title:        "Analyze Requirements",
				SystemPrompt: "You are a senior product manager. Answer in JSON only.",
				PromptTemplate: `Extract the product requirements implied by this request.

Request: {{ .initial_request }}
{{ if .parameters }}Parameters: {{ json .parameters }}{{ end }}

Return a JSON object with: goals (array), user_personas (array), constraints (array), success_metrics (array).`,
				OutputSchema: objectSchema(map[string]any{
					"goals":           arrayProperty(),
					"user_personas":   arrayProperty(),
					"constraints":     arrayProperty(),
					"success_metrics": arrayProperty(),
				}, "goals", "user_personas"),
				QualityDimension: "requirements_clarity",
			},
			{
				Name:         "define_features",
				Title:        "Define Features",
				SystemPrompt: "You are a senior product manager. Answer in JSON only.",
				PromptTemplate: `Define the feature set for this product.

Request: {{ .initial_request }}
Requirements: {{ json (index .results "analyze_requirements") }}

Return a JSON object with: features (array of objects with name, description, priority), out_of_scope (array).`,
				OutputSchema: objectSchema(map[string]any{
					"features":     arrayProperty(),
					"out_of_scope": arrayProperty(),
				}, "features"),
				QualityDimension: "feature_completeness",
			},
			{
				Name:         "draft_prd",
				Title:        "Draft PRD",
				SystemPrompt: "You are a senior product manager writing a PRD. Answer in JSON only.",
				PromptTemplate: `Write the full PRD.

Request: {{ .initial_request }}
Requirements: {{ json (index .results "analyze_requirements") }}
Features: {{ json (index .results "define_features") }}

Return a JSON object with: overview, user_stories (array), functional_requirements (array), non_functional_requirements (array), open_questions (array).`,
				OutputSchema: objectSchema(map[string]any{
					"overview":                    stringProperty(),
					"user_stories":                arrayProperty(),
					"functional_requirements":     arrayProperty(),
					"non_functional_requirements": arrayProperty(),
					"open_questions":              arrayProperty(),
				}, "overview", "user_stories", "functional_requirements"),
				QualityDimension: "document_depth",
				MaxTokens:        4000,
			},
			{
				Name:         "review_prd",
				Title:        "Review PRD",
				SystemPrompt: "You are a principal PM reviewing a PRD for gaps. Answer in JSON only.",
				PromptTemplate: `Review this PRD draft critically.

Draft: {{ json (index .results "draft_prd") }}

Return a JSON object with: issues (array of objects with section and problem), severity (high|medium|low), approved (boolean).`,
				OutputSchema: objectSchema(map[string]any{
					"issues":   arrayProperty(),
					"severity": stringProperty(),
					"approved": map[string]any{"type": "boolean"},
				}, "issues", "severity"),
				QualityDimension: "review_rigor",
			},
			{
				Name:         "finalize_prd",
				Title:        "Finalize PRD",
				SystemPrompt: "You are a senior product manager. Answer in JSON only.",
				PromptTemplate: `Produce the final PRD incorporating the review feedback.

Draft: {{ json (index .results "draft_prd") }}
Review: {{ json (index .results "review_prd") }}

Return a JSON object with: document (the full PRD text in markdown), changelog (array).`,
				OutputSchema: objectSchema(map[string]any{
					"document":  stringProperty(),
					"changelog": arrayProperty(),
				}, "document"),
				QualityDimension: "final_quality",
				MaxTokens:        4000,
			},
		},
		Weights: map[string]float64{
			"requirements_clarity": 1,
			"feature_completeness": 1,
			"document_depth":       1.5,
			"review_rigor":         1,
			"final_quality":        2,
		},
	}
}
