package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCost(t *testing.T) {
	usage := Usage{PromptTokens: 1000, CompletionTokens: 2000}

	assert.InDelta(t, 0.0025+0.02, Cost("gpt-4o", usage), 1e-9)
	assert.InDelta(t, 0.003+0.03, Cost("claude-3-5-sonnet", usage), 1e-9)
}

func TestCost_UnknownModel(t *testing.T) {
	usage := Usage{PromptTokens: 5000, CompletionTokens: 5000}

	assert.Zero(t, Cost("some-unlisted-model", usage))
}

func TestCost_ZeroUsage(t *testing.T) {
	assert.Zero(t, Cost("gpt-4o", Usage{}))
}

func TestKnownModel(t *testing.T) {
	assert.True(t, KnownModel("gpt-4o-mini"))
	assert.False(t, KnownModel("some-unlisted-model"))
}
