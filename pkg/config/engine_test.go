package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngine_WithDefaults_FillsUnsetFields(t *testing.T) {
	cfg := Engine{}.WithDefaults()

	assert.Equal(t, 2, cfg.MaxRetriesPerStep)
	assert.Equal(t, RetryBudgetPerRun, cfg.RetryBudget)
	assert.Equal(t, 120*time.Second, cfg.TimeoutPerStep)
	assert.NotEmpty(t, cfg.DefaultModel)
	assert.Equal(t, time.Hour, cfg.RetentionTTL)
	assert.Equal(t, "@every 5m", cfg.SweepSchedule)
}

func TestEngine_WithDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := Engine{
		MaxRetriesPerStep: 5,
		RetryBudget:       RetryBudgetPerNode,
		TimeoutPerStep:    time.Second,
		DefaultModel:      "gpt-4o",
	}.WithDefaults()

	assert.Equal(t, 5, cfg.MaxRetriesPerStep)
	assert.Equal(t, RetryBudgetPerNode, cfg.RetryBudget)
	assert.Equal(t, time.Second, cfg.TimeoutPerStep)
	assert.Equal(t, "gpt-4o", cfg.DefaultModel)
}

func TestEngine_WithDefaults_NegativeRetriesDisableRetries(t *testing.T) {
	cfg := Engine{MaxRetriesPerStep: -1}.WithDefaults()

	assert.Equal(t, 0, cfg.MaxRetriesPerStep)
}
