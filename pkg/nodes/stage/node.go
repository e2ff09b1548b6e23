// Package stage implements the reasoning node that executes one workflow
// stage: it renders the stage prompt against the execution state, calls the
// reasoning service, parses and validates the structured output, and scores
// structural completeness.
package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/reasoning"
	"github.com/ideaforge/ideaforge/pkg/retrieval"
	"github.com/ideaforge/ideaforge/pkg/template"
)

const defaultSnippetLimit = 5

// Services are the shared external dependencies stage nodes execute against.
// Retrieval is optional; stages with a retrieval query simply skip context
// enrichment when it is nil.
type Services struct {
	Reasoning    reasoning.Client
	Retrieval    retrieval.SearchClient
	Logger       *slog.Logger
	DefaultModel string
}

// Node executes one pipeline stage.
type Node struct {
	stage    models.Stage
	services Services
}

// New creates a stage node bound to the shared services.
func New(stage models.Stage, services Services) *Node {
	return &Node{
		stage:    stage,
		services: services,
	}
}

// NewFactory returns a constructor producing stage nodes that share one set
// of services. Orchestrator wiring adapts it to the workflow node contract.
func NewFactory(services Services) func(models.Stage) *Node {
	return func(stage models.Stage) *Node {
		return New(stage, services)
	}
}

// Name returns the stage's step name.
func (n *Node) Name() string {
	return n.stage.Name
}

// Execute runs the stage against the current execution state. It never
// mutates the state; the orchestrator owns all state transitions.
func (n *Node) Execute(ctx context.Context, state *models.WorkflowState) (*models.StageResult, error) {
	prompt, err := template.RenderWithState(n.stage.PromptTemplate, state)
	if err != nil {
		return nil, &NodeExecutionError{Step: n.stage.Name, Reason: "failed to render prompt template", Err: err}
	}

	if snippets := n.retrieveContext(ctx, state); len(snippets) > 0 {
		prompt = formatSnippets(snippets) + "\n\n" + prompt
	}

	model := n.stage.Model
	if model == "" {
		model = n.services.DefaultModel
	}

	response, err := n.services.Reasoning.Complete(ctx, reasoning.Request{
		Model:     model,
		System:    n.stage.SystemPrompt,
		Prompt:    prompt,
		MaxTokens: n.stage.MaxTokens,
	})
	if err != nil {
		return nil, &NodeExecutionError{Step: n.stage.Name, Reason: "reasoning call failed", Err: err}
	}

	content, err := parseStructuredOutput(response.Content)
	if err != nil {
		return nil, &NodeExecutionError{
			Step:       n.stage.Name,
			Reason:     "model output is not valid JSON",
			RawContent: response.Content,
			Err:        err,
		}
	}

	err = n.validateOutput(content)
	if err != nil {
		return nil, &NodeExecutionError{
			Step:       n.stage.Name,
			Reason:     "model output failed schema validation",
			RawContent: response.Content,
			Err:        err,
		}
	}

	return &models.StageResult{
		StepName:        n.stage.Name,
		Content:         content,
		RawContent:      response.Content,
		ConfidenceScore: n.confidence(content),
		ModelUsed:       response.Model,
		TokensInput:     response.Usage.PromptTokens,
		TokensOutput:    response.Usage.CompletionTokens,
		Cost:            reasoning.Cost(response.Model, response.Usage),
		Timestamp:       time.Now().UTC(),
	}, nil
}

// retrieveContext fetches background snippets for stages that declare a
// retrieval query. Retrieval failures degrade to an un-enriched prompt.
func (n *Node) retrieveContext(ctx context.Context, state *models.WorkflowState) []retrieval.Snippet {
	if n.stage.RetrievalQuery == "" || n.services.Retrieval == nil {
		return nil
	}

	query, err := template.RenderWithState(n.stage.RetrievalQuery, state)
	if err != nil {
		n.logWarn(ctx, "Failed to render retrieval query", err)

		return nil
	}

	snippets, err := n.services.Retrieval.Search(ctx, query, defaultSnippetLimit)
	if err != nil {
		n.logWarn(ctx, "Context retrieval failed", err)

		return nil
	}

	return snippets
}

func (n *Node) logWarn(ctx context.Context, msg string, err error) {
	if n.services.Logger != nil {
		n.services.Logger.WarnContext(ctx, msg, "stage", n.stage.Name, "error", err)
	}
}

func formatSnippets(snippets []retrieval.Snippet) string {
	var builder strings.Builder

	builder.WriteString("Background context:")

	for _, snippet := range snippets {
		builder.WriteString("\n- ")
		builder.WriteString(snippet.Text)
	}

	return builder.String()
}

// parseStructuredOutput decodes the model's JSON answer, tolerating markdown
// code fences around the payload.
func parseStructuredOutput(raw string) (map[string]any, error) {
	cleaned := strings.TrimSpace(raw)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")

		if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
			cleaned = cleaned[:idx]
		}

		cleaned = strings.TrimSpace(cleaned)
	}

	var content map[string]any

	err := json.Unmarshal([]byte(cleaned), &content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}

	return content, nil
}

// validateOutput checks the parsed content against the stage's output schema.
func (n *Node) validateOutput(content map[string]any) error {
	if len(n.stage.OutputSchema) == 0 {
		return nil
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(n.stage.OutputSchema),
		gojsonschema.NewGoLoader(content),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		violations := make([]string, 0, len(result.Errors()))
		for _, violation := range result.Errors() {
			violations = append(violations, violation.String())
		}

		return fmt.Errorf("invalid stage output: %s", strings.Join(violations, "; "))
	}

	return nil
}

// confidence scores structural completeness: the fraction of the schema's
// top-level properties that are populated in the content. Stages without a
// schema score 1.0 once their output parses.
func (n *Node) confidence(content map[string]any) float64 {
	properties, ok := n.stage.OutputSchema["properties"].(map[string]any)
	if !ok || len(properties) == 0 {
		return 1.0
	}

	var populated int

	for property := range properties {
		if isPopulated(content[property]) {
			populated++
		}
	}

	return float64(populated) / float64(len(properties))
}

func isPopulated(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(v) != ""
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}
