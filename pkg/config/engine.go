// Package config defines the tunables of the workflow orchestration engine.
package config

import "time"

// RetryBudgetMode selects how the retry budget is accounted.
type RetryBudgetMode string

const (
	// RetryBudgetPerRun shares one retry counter across all nodes of an
	// execution: an early flaky node consumes budget for later nodes too.
	RetryBudgetPerRun RetryBudgetMode = "per_run"

	// RetryBudgetPerNode gives each node its own counter.
	RetryBudgetPerNode RetryBudgetMode = "per_node"
)

// Engine holds the orchestrator configuration shared by all workflow types.
type Engine struct {
	// MaxRetriesPerStep bounds node re-invocations after failures. Zero means
	// unset (WithDefaults fills it); a negative value disables retries.
	MaxRetriesPerStep int `json:"max_retries_per_step" validate:"min=-1,max=10"`

	// RetryBudget selects per-run (historical behavior) or per-node accounting.
	RetryBudget RetryBudgetMode `json:"retry_budget" validate:"oneof=per_run per_node"`

	// TimeoutPerStep bounds each node invocation, enforced by the orchestrator
	// with a per-step context deadline.
	TimeoutPerStep time.Duration `json:"timeout_per_step"`

	// DefaultModel is used by stages that do not declare their own.
	DefaultModel string `json:"default_model" validate:"required"`

	// RetentionTTL is how long terminal executions stay in the in-memory
	// registry before the sweeper evicts them.
	RetentionTTL time.Duration `json:"retention_ttl"`

	// SweepSchedule is the cron spec of the registry retention sweep.
	SweepSchedule string `json:"sweep_schedule"`
}

// Default returns the engine configuration used when callers pass a zero
// value.
func Default() Engine {
	return Engine{
		MaxRetriesPerStep: 2,
		RetryBudget:       RetryBudgetPerRun,
		TimeoutPerStep:    120 * time.Second,
		DefaultModel:      "gpt-4o-mini",
		RetentionTTL:      time.Hour,
		SweepSchedule:     "@every 5m",
	}
}

// WithDefaults fills unset fields from Default.
func (e Engine) WithDefaults() Engine {
	defaults := Default()

	if e.MaxRetriesPerStep == 0 {
		e.MaxRetriesPerStep = defaults.MaxRetriesPerStep
	} else if e.MaxRetriesPerStep < 0 {
		e.MaxRetriesPerStep = 0
	}

	if e.RetryBudget == "" {
		e.RetryBudget = defaults.RetryBudget
	}

	if e.TimeoutPerStep == 0 {
		e.TimeoutPerStep = defaults.TimeoutPerStep
	}

	if e.DefaultModel == "" {
		e.DefaultModel = defaults.DefaultModel
	}

	if e.RetentionTTL == 0 {
		e.RetentionTTL = defaults.RetentionTTL
	}

	if e.SweepSchedule == "" {
		e.SweepSchedule = defaults.SweepSchedule
	}

	return e
}
