// Package models defines the core domain models for AI workflow executions.
package models

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// WorkflowType identifies a fixed pipeline of stages.
type WorkflowType string

const (
	WorkflowTypeResearch       WorkflowType = "research"
	WorkflowTypePRD            WorkflowType = "prd"
	WorkflowTypeTaskGeneration WorkflowType = "task_generation"
	WorkflowTypeCustom         WorkflowType = "custom"
)

// ExecutionStatus represents the lifecycle state of one workflow execution.
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether the status is a final state.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusCancelled
}

// Reserved step names used by the orchestrator's transition table alongside
// the stage names of the workflow definition.
const (
	StepError = "error"
	StepRetry = "retry"
	StepEnd   = "end"
)

// MetadataCancellationReason is the metadata key recording why an execution
// was cancelled.
const MetadataCancellationReason = "cancellation_reason"

// TokenUsage accumulates token counts for one model across an execution.
type TokenUsage struct {
	Input  int64 `json:"input"`
	Output int64 `json:"output"`
}

// ExecutionError is one entry in the append-only error log of an execution.
// Entries are never removed, even after a failed node later succeeds.
type ExecutionError struct {
	Node      string    `json:"node"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// StageResult holds the merged output of one completed stage.
type StageResult struct {
	StepName        string         `json:"step_name"`
	Content         map[string]any `json:"content"`
	RawContent      string         `json:"raw_content,omitempty"`
	ConfidenceScore float64        `json:"confidence_score"`
	ModelUsed       string         `json:"model_used"`
	TokensInput     int64          `json:"tokens_input"`
	TokensOutput    int64          `json:"tokens_output"`
	Cost            float64        `json:"cost"`
	Timestamp       time.Time      `json:"timestamp"`
}

// WorkflowState is the full record of one execution's progress, results, cost
// and quality. The owning orchestrator is the only writer; concurrent readers
// (status polling, streaming) must go through Snapshot or Summary, which take
// the state lock.
type WorkflowState struct {
	mu sync.RWMutex

	WorkflowID   string       `json:"workflow_id"`
	ExecutionID  string       `json:"execution_id"`
	WorkflowType WorkflowType `json:"workflow_type"`
	UserID       string       `json:"user_id"`
	ProjectID    string       `json:"project_id,omitempty"`

	InitialRequest string         `json:"initial_request"`
	Parameters     map[string]any `json:"parameters,omitempty"`
	Context        map[string]any `json:"context,omitempty"`

	Status             ExecutionStatus `json:"status"`
	CurrentStep        string          `json:"current_step"`
	ProgressPercentage float64         `json:"progress_percentage"`
	CompletedNodes     []string        `json:"completed_nodes"`
	FailedNodes        []string        `json:"failed_nodes"`
	RetryCount         int             `json:"retry_count"`
	NodeRetries        map[string]int  `json:"node_retries,omitempty"`

	Results        map[string]*StageResult `json:"results"`
	QualityScores  map[string]float64      `json:"quality_scores"`
	QualityWeights map[string]float64      `json:"quality_weights,omitempty"`

	TotalCost  float64                `json:"total_cost"`
	TokenUsage map[string]*TokenUsage `json:"token_usage"`

	Errors   []ExecutionError `json:"errors"`
	Metadata map[string]any   `json:"metadata,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	LastActivity time.Time  `json:"last_activity"`
}

// NewWorkflowState creates a pending execution state for the given workflow.
func NewWorkflowState(workflowType WorkflowType, initialRequest, userID, projectID string) *WorkflowState {
	now := time.Now().UTC()

	return &WorkflowState{
		WorkflowID:     fmt.Sprintf("wf-%s", workflowType),
		ExecutionID:    GenerateExecutionID(),
		WorkflowType:   workflowType,
		UserID:         userID,
		ProjectID:      projectID,
		InitialRequest: initialRequest,
		Status:         ExecutionStatusPending,
		CompletedNodes: []string{},
		FailedNodes:    []string{},
		NodeRetries:    make(map[string]int),
		Results:        make(map[string]*StageResult),
		QualityScores:  make(map[string]float64),
		TokenUsage:     make(map[string]*TokenUsage),
		Errors:         []ExecutionError{},
		Metadata:       make(map[string]any),
		CreatedAt:      now,
		LastActivity:   now,
	}
}

// GenerateExecutionID generates a unique execution ID.
func GenerateExecutionID() string {
	return fmt.Sprintf("exec-%s", uuid.New().String()[:8])
}

// Begin transitions the execution to running and records the start time.
func (s *WorkflowState) Begin(firstStep string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.Status = ExecutionStatusRunning
	s.StartedAt = &now
	s.CurrentStep = firstStep
	s.touch()
}

// Finish transitions the execution to a terminal status and records the
// completion time.
func (s *WorkflowState) Finish(status ExecutionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.Status = status
	s.CompletedAt = &now
	s.touch()
}

// CancelWith marks the execution cancelled and records the reason.
func (s *WorkflowState) CancelWith(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	s.Status = ExecutionStatusCancelled
	s.CompletedAt = &now

	if reason != "" {
		s.Metadata[MetadataCancellationReason] = reason
	}

	s.touch()
}

// UpdateProgress sets the current step and progress percentage.
func (s *WorkflowState) UpdateProgress(step string, percentage float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CurrentStep = step
	s.ProgressPercentage = percentage
	s.touch()
}

// MarkNodeCompleted records a successful stage: the step joins completed_nodes,
// leaves failed_nodes if a retry recovered it, and the result's cost and token
// usage are folded into the execution totals.
func (s *WorkflowState) MarkNodeCompleted(step string, result *StageResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !contains(s.CompletedNodes, step) {
		s.CompletedNodes = append(s.CompletedNodes, step)
	}

	s.FailedNodes = remove(s.FailedNodes, step)
	s.Results[step] = result
	s.TotalCost += result.Cost

	if result.ModelUsed != "" {
		usage, ok := s.TokenUsage[result.ModelUsed]
		if !ok {
			usage = &TokenUsage{}
			s.TokenUsage[result.ModelUsed] = usage
		}

		usage.Input += result.TokensInput
		usage.Output += result.TokensOutput
	}

	s.touch()
}

// MarkNodeFailed records a failed stage. A failure after an earlier completion
// is a regression: the step leaves completed_nodes and joins failed_nodes. The
// error log is append-only.
func (s *WorkflowState) MarkNodeFailed(step string, errMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CompletedNodes = remove(s.CompletedNodes, step)

	if !contains(s.FailedNodes, step) {
		s.FailedNodes = append(s.FailedNodes, step)
	}

	s.Errors = append(s.Errors, ExecutionError{
		Node:      step,
		Error:     errMessage,
		Timestamp: time.Now().UTC(),
	})

	s.touch()
}

// IncrementRetry bumps the shared per-execution retry counter and the per-node
// counter for the given step, returning the new per-execution count.
func (s *WorkflowState) IncrementRetry(step string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.RetryCount++
	s.NodeRetries[step]++
	s.touch()

	return s.RetryCount
}

// SetCurrentStep moves the execution pointer without touching the progress
// percentage.
func (s *WorkflowState) SetCurrentStep(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.CurrentStep = step
	s.touch()
}

// SetQualityWeights records the per-dimension weights the definition assigns
// to this execution's quality sub-scores. Summary and terminal aggregates use
// them; unlisted dimensions count as 1.0.
func (s *WorkflowState) SetQualityWeights(weights map[string]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.QualityWeights = weights
}

// SetQualityScore records a 0.0-1.0 sub-score for one quality dimension.
func (s *WorkflowState) SetQualityScore(dimension string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.QualityScores[dimension] = score
	s.touch()
}

// GetStatus returns the current status under the state lock.
func (s *WorkflowState) GetStatus() ExecutionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Status
}

// GetCurrentStep returns the current step under the state lock.
func (s *WorkflowState) GetCurrentStep() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.CurrentStep
}

// GetRetryCount returns the per-execution retry counter.
func (s *WorkflowState) GetRetryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.RetryCount
}

// NodeRetryCount returns the retry counter for one step.
func (s *WorkflowState) NodeRetryCount(step string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.NodeRetries[step]
}

// Result returns the stored result for a stage, or nil if the stage has not
// completed.
func (s *WorkflowState) Result(step string) *StageResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.Results[step]
}

// OverallConfidence aggregates the populated quality sub-scores into one
// 0.0-1.0 value. With no weights (or no populated weighted dimension) it is the
// unweighted mean over populated scores; weights only apply to dimensions that
// have a score. Returns 0.0 when no sub-score is set.
func (s *WorkflowState) OverallConfidence(weights map[string]float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.QualityScores) == 0 {
		return 0.0
	}

	var weightedSum, totalWeight float64

	for dimension, score := range s.QualityScores {
		weight := 1.0
		if w, ok := weights[dimension]; ok && w > 0 {
			weight = w
		}

		weightedSum += score * weight
		totalWeight += weight
	}

	if totalWeight == 0 {
		return 0.0
	}

	return weightedSum / totalWeight
}

// Snapshot returns a deep copy safe for concurrent readers while the owning
// orchestrator keeps mutating the live state.
func (s *WorkflowState) Snapshot() *WorkflowState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := &WorkflowState{
		WorkflowID:         s.WorkflowID,
		ExecutionID:        s.ExecutionID,
		WorkflowType:       s.WorkflowType,
		UserID:             s.UserID,
		ProjectID:          s.ProjectID,
		InitialRequest:     s.InitialRequest,
		Parameters:         copyMap(s.Parameters),
		Context:            copyMap(s.Context),
		Status:             s.Status,
		CurrentStep:        s.CurrentStep,
		ProgressPercentage: s.ProgressPercentage,
		CompletedNodes:     append([]string{}, s.CompletedNodes...),
		FailedNodes:        append([]string{}, s.FailedNodes...),
		RetryCount:         s.RetryCount,
		NodeRetries:        make(map[string]int, len(s.NodeRetries)),
		Results:            make(map[string]*StageResult, len(s.Results)),
		QualityScores:      make(map[string]float64, len(s.QualityScores)),
		QualityWeights:     make(map[string]float64, len(s.QualityWeights)),
		TotalCost:          s.TotalCost,
		TokenUsage:         make(map[string]*TokenUsage, len(s.TokenUsage)),
		Errors:             append([]ExecutionError{}, s.Errors...),
		Metadata:           copyMap(s.Metadata),
		CreatedAt:          s.CreatedAt,
		LastActivity:       s.LastActivity,
	}

	for step, count := range s.NodeRetries {
		snapshot.NodeRetries[step] = count
	}

	for step, result := range s.Results {
		resultCopy := *result
		snapshot.Results[step] = &resultCopy
	}

	for dimension, score := range s.QualityScores {
		snapshot.QualityScores[dimension] = score
	}

	for dimension, weight := range s.QualityWeights {
		snapshot.QualityWeights[dimension] = weight
	}

	for model, usage := range s.TokenUsage {
		usageCopy := *usage
		snapshot.TokenUsage[model] = &usageCopy
	}

	if s.StartedAt != nil {
		startedAt := *s.StartedAt
		snapshot.StartedAt = &startedAt
	}

	if s.CompletedAt != nil {
		completedAt := *s.CompletedAt
		snapshot.CompletedAt = &completedAt
	}

	return snapshot
}

// ExecutionSummary is the read-only projection served by status endpoints.
type ExecutionSummary struct {
	WorkflowID         string           `json:"workflow_id"`
	ExecutionID        string           `json:"execution_id"`
	WorkflowType       WorkflowType     `json:"workflow_type"`
	Status             ExecutionStatus  `json:"status"`
	CurrentStep        string           `json:"current_step"`
	ProgressPercentage float64          `json:"progress_percentage"`
	CompletedNodes     []string         `json:"completed_nodes"`
	FailedNodes        []string         `json:"failed_nodes"`
	RetryCount         int              `json:"retry_count"`
	OverallConfidence  float64          `json:"overall_confidence"`
	TotalCost          float64          `json:"total_cost"`
	Errors             []ExecutionError `json:"errors"`
	CreatedAt          time.Time        `json:"created_at"`
	StartedAt          *time.Time       `json:"started_at,omitempty"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
	LastActivity       time.Time        `json:"last_activity"`
}

// Summary builds the status projection without mutating state.
func (s *WorkflowState) Summary() ExecutionSummary {
	snapshot := s.Snapshot()

	return ExecutionSummary{
		WorkflowID:         snapshot.WorkflowID,
		ExecutionID:        snapshot.ExecutionID,
		WorkflowType:       snapshot.WorkflowType,
		Status:             snapshot.Status,
		CurrentStep:        snapshot.CurrentStep,
		ProgressPercentage: snapshot.ProgressPercentage,
		CompletedNodes:     snapshot.CompletedNodes,
		FailedNodes:        snapshot.FailedNodes,
		RetryCount:         snapshot.RetryCount,
		OverallConfidence:  snapshot.OverallConfidence(snapshot.QualityWeights),
		TotalCost:          snapshot.TotalCost,
		Errors:             snapshot.Errors,
		CreatedAt:          snapshot.CreatedAt,
		StartedAt:          snapshot.StartedAt,
		CompletedAt:        snapshot.CompletedAt,
		LastActivity:       snapshot.LastActivity,
	}
}

// touch updates the liveness timestamp. Callers must hold the write lock.
func (s *WorkflowState) touch() {
	s.LastActivity = time.Now().UTC()
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}

	return false
}

func remove(list []string, value string) []string {
	result := list[:0]

	for _, item := range list {
		if item != value {
			result = append(result, item)
		}
	}

	return result
}

func copyMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}

	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}

	return dst
}
