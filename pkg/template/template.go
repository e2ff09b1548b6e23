// Package template renders stage prompt templates against workflow state.
package template

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/ideaforge/ideaforge/pkg/models"
)

// RenderWithState renders a prompt template with the execution's input and
// the structured results of prior stages.
func RenderWithState(input string, state *models.WorkflowState) (string, error) {
	snapshot := state.Snapshot()

	results := make(map[string]any, len(snapshot.Results))
	for step, result := range snapshot.Results {
		results[step] = result.Content
	}

	data := map[string]any{
		"initial_request": snapshot.InitialRequest,
		"parameters":      snapshot.Parameters,
		"context":         snapshot.Context,
		"results":         results,
		"quality_scores":  snapshot.QualityScores,
		"execution": map[string]any{
			"id":            snapshot.ExecutionID,
			"workflow_id":   snapshot.WorkflowID,
			"workflow_type": string(snapshot.WorkflowType),
		},
	}

	return Render(input, data)
}

// Render executes a text/template with prompt-building helpers.
func Render(templateStr string, data any) (string, error) {
	tmpl, err := template.
		New("prompt").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"json": func(v any) string {
				encoded, err := json.MarshalIndent(v, "", "  ")
				if err != nil {
					return fmt.Sprintf("%v", v)
				}

				return string(encoded)
			},
		}).Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return strings.TrimSpace(buf.String()), nil
}
