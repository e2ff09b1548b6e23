// Package workflows holds the built-in workflow definitions: the fixed stage
// pipelines, their prompts, output schemas and quality weights.
package workflows

import (
	"github.com/ideaforge/ideaforge/pkg/models"
	"github.com/ideaforge/ideaforge/pkg/workflow"
)

// Research analyzes a product idea end to end: problem, market, competitors,
// feasibility, then a synthesized report.
func Research() workflow.Definition {
	return workflow.Definition{
		Type:  models.WorkflowTypeResearch,
		Title: "Idea Research",
		Stages: []models.Stage{
			{
				Name:         "analyze_idea",
				Title:        "Analyze Idea",
				SystemPrompt: "You are a product analyst. Answer in JSON only.",
				PromptTemplate: `Analyze the following product idea and extract its core elements.

Idea: {{ .initial_request }}

Return a JSON object with: problem_statement, target_audience, value_proposition, assumptions (array).`,
				OutputSchema: objectSchema(map[string]any{
					"problem_statement": stringProperty(),
					"target_audience":   stringProperty(),
					"value_proposition": stringProperty(),
					"assumptions":       arrayProperty(),
				}, "problem_statement", "target_audience", "value_proposition"),
				QualityDimension: "analysis_depth",
				RetrievalQuery:   "{{ .initial_request }}",
			},
			{
				Name:         "market_research",
				Title:        "Market Research",
				SystemPrompt: "You are a market researcher. Answer in JSON only.",
				PromptTemplate: `Research the market for this idea.

Idea: {{ .initial_request }}
Prior analysis: {{ json (index .results "analyze_idea") }}

Return a JSON object with: market_size, growth_trends (array), customer_segments (array), risks (array).`,
				OutputSchema: objectSchema(map[string]any{
					"market_size":       stringProperty(),
					"growth_trends":     arrayProperty(),
					"customer_segments": arrayProperty(),
					"risks":             arrayProperty(),
				}, "market_size", "customer_segments"),
				QualityDimension: "market_insight",
				RetrievalQuery:   "market size and trends for {{ .initial_request }}",
			},
			{
				Name:         "competitive_analysis",
				Title:        "Competitive Analysis",
				SystemPrompt: "You are a competitive intelligence analyst. Answer in JSON only.",
				PromptTemplate: `Identify and assess competitors for this idea.

Idea: {{ .initial_request }}
Market research: {{ json (index .results "market_research") }}

Return a JSON object with: competitors (array of objects with name and positioning), differentiation, competitive_risks (array).`,
				OutputSchema: objectSchema(map[string]any{
					"competitors":       arrayProperty(),
					"differentiation":   stringProperty(),
					"competitive_risks": arrayProperty(),
				}, "competitors", "differentiation"),
				QualityDimension: "competitive_coverage",
			},
			{
				Name:         "technical_feasibility",
				Title:        "Technical Feasibility",
				SystemPrompt: "You are a staff engineer assessing feasibility. Answer in JSON only.",
				PromptTemplate: `Assess the technical feasibility of building this idea.

Idea: {{ .initial_request }}
Analysis: {{ json (index .results "analyze_idea") }}

Return a JSON object with: feasibility_rating (high|medium|low), key_challenges (array), suggested_stack (array), estimated_effort.`,
				OutputSchema: objectSchema(map[string]any{
					"feasibility_rating": stringProperty(),
					"key_challenges":     arrayProperty(),
					"suggested_stack":    arrayProperty(),
					"estimated_effort":   stringProperty(),
				}, "feasibility_rating", "key_challenges"),
				QualityDimension: "feasibility_rigor",
			},
			{
				Name:         "synthesize",
				Title:        "Synthesize Report",
				SystemPrompt: "You are a product strategist writing an executive summary. Answer in JSON only.",
				PromptTemplate: `Synthesize all research into a final report.

Idea: {{ .initial_request }}
Analysis: {{ json (index .results "analyze_idea") }}
Market: {{ json (index .results "market_research") }}
Competition: {{ json (index .results "competitive_analysis") }}
Feasibility: {{ json (index .results "technical_feasibility") }}

Return a JSON object with: summary, recommendation (pursue|pivot|drop), rationale, next_steps (array).`,
				OutputSchema: objectSchema(map[string]any{
					"summary":        stringProperty(),
					"recommendation": stringProperty(),
					"rationale":      stringProperty(),
					"next_steps":     arrayProperty(),
				}, "summary", "recommendation", "rationale"),
				QualityDimension: "synthesis_quality",
			},
		},
		Weights: map[string]float64{
			"analysis_depth":       1,
			"market_insight":       1,
			"competitive_coverage": 1,
			"feasibility_rigor":    1,
			"synthesis_quality":    2,
		},
	}
}
