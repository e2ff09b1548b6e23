package models

// Stage describes one pipeline stage of a workflow definition: the prompt it
// builds, the schema its output must satisfy, and the quality dimension it
// contributes to.
type Stage struct {
	// Name is the step name used in transition tables and state tracking.
	Name string `json:"name" validate:"required,min=1"`

	// Title is the human-readable stage name shown in progress events.
	Title string `json:"title"`

	// SystemPrompt frames the reasoning call for this stage.
	SystemPrompt string `json:"system_prompt"`

	// PromptTemplate is rendered against the execution state (initial request,
	// parameters, prior stage results) to build the user prompt.
	PromptTemplate string `json:"prompt_template" validate:"required"`

	// OutputSchema is a JSON schema the parsed model output must satisfy. Its
	// required top-level keys define structural completeness for this stage.
	OutputSchema map[string]any `json:"output_schema"`

	// QualityDimension names the quality sub-score this stage populates, e.g.
	// "analysis_depth". Empty for stages that do not contribute a score. The
	// dimension's weight lives in the definition's Weights map.
	QualityDimension string `json:"quality_dimension,omitempty"`

	// Model overrides the engine's default model for this stage.
	Model string `json:"model,omitempty"`

	// RetrievalQuery, when set, is rendered against the state and used to fetch
	// context snippets prepended to the prompt.
	RetrievalQuery string `json:"retrieval_query,omitempty"`

	// MaxTokens caps the completion length. Zero uses the client default.
	MaxTokens int `json:"max_tokens,omitempty"`
}
