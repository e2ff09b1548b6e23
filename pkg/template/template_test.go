package template

import (
	"testing"
	"time"

	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_PlainText(t *testing.T) {
	out, err := Render("Analyze the following idea: {{ .idea }}", map[string]any{"idea": "a shared todo list"})

	require.NoError(t, err)
	assert.Equal(t, "Analyze the following idea: a shared todo list", out)
}

func TestRender_JSONHelper(t *testing.T) {
	out, err := Render("{{ json .payload }}", map[string]any{"payload": map[string]any{"key": "value"}})

	require.NoError(t, err)
	assert.Contains(t, out, `"key": "value"`)
}

func TestRender_ParseError(t *testing.T) {
	_, err := Render("{{ .unclosed", nil)

	assert.Error(t, err)
}

func TestRenderWithState(t *testing.T) {
	state := models.NewWorkflowState(models.WorkflowTypeResearch, "Build a collaborative editor", "user-1", "")
	state.MarkNodeCompleted("analyze_idea", &models.StageResult{
		StepName:  "analyze_idea",
		Content:   map[string]any{"problem_statement": "editing together is hard"},
		Timestamp: time.Now().UTC(),
	})

	out, err := RenderWithState(
		"Idea: {{ .initial_request }}\nPrior analysis: {{ json (index .results \"analyze_idea\") }}",
		state,
	)

	require.NoError(t, err)
	assert.Contains(t, out, "Idea: Build a collaborative editor")
	assert.Contains(t, out, "editing together is hard")
}

func TestRenderWithState_MissingStageRendersNoValue(t *testing.T) {
	state := models.NewWorkflowState(models.WorkflowTypeResearch, "request", "user-1", "")

	out, err := RenderWithState("{{ index .results \"missing\" }}", state)

	require.NoError(t, err)
	assert.Equal(t, "<no value>", out)
}
