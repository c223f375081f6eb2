package pipeline

import (
	"time"

	"contentpipe/pkg/contracts/domain"
)

// Stage identifies one step of the content pipeline.
type Stage string

const (
	StageExtract Stage = "extract"
	StageAnalyze Stage = "analyze"
	StageWrite   Stage = "write"
	StagePublish Stage = "publish"
)

// StageOrder is the fixed execution order of the pipeline. Requested
// stage subsets are always run in this order.
func StageOrder() []Stage {
	return []Stage{StageExtract, StageAnalyze, StageWrite, StagePublish}
}

// stageIndex maps a stage to its position in the pipeline order.
var stageIndex = map[Stage]int{
	StageExtract: 0,
	StageAnalyze: 1,
	StageWrite:   2,
	StagePublish: 3,
}

// IsValid reports whether s names a known stage.
func (s Stage) IsValid() bool {
	_, ok := stageIndex[s]
	return ok
}

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transition.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// FailureReason classifies why a task reached the Failed status.
type FailureReason string

const (
	ReasonStageExhausted        FailureReason = "stage_exhausted"
	ReasonStagePermanentFailure FailureReason = "stage_permanent_failure"
)

// Default stage timeouts. Extraction drives a real browser and the
// write stage produces the longest model completions.
const (
	DefaultExtractTimeout = 30 * time.Second
	DefaultAnalyzeTimeout = 60 * time.Second
	DefaultWriteTimeout   = 120 * time.Second
	DefaultPublishTimeout = 30 * time.Second
)

// Article length bounds enforced at submission.
const (
	MinTargetWords     = 300
	MaxTargetWords     = 5000
	DefaultTargetWords = 1000
)

// RetryConfig defines retry behavior for stage attempts.
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts" yaml:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay" yaml:"max_delay"`
	Multiplier   float64       `json:"multiplier" yaml:"multiplier"`
}

// NewRetryConfig returns the default retry configuration.
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// TaskRequest carries everything a task needs to run: the stage
// subset plus stage parameters and, for tasks that start mid
// pipeline, the explicit input for the leading stage.
type TaskRequest struct {
	Stages []Stage `json:"stages"`

	// Extract parameters.
	URL           string `json:"url,omitempty"`
	IncludeImages bool   `json:"include_images,omitempty"`
	IncludeLinks  bool   `json:"include_links,omitempty"`

	// Write parameters.
	Style       domain.WritingStyle `json:"style,omitempty"`
	Audience    domain.Audience     `json:"audience,omitempty"`
	TargetWords int                 `json:"target_words,omitempty"`

	// Publish parameters.
	Author    string `json:"author,omitempty"`
	DraftOnly bool   `json:"draft_only,omitempty"`

	// Explicit inputs for tasks whose first stage is not extract.
	Content  *domain.ExtractedContent `json:"content,omitempty"`
	Analysis *domain.ContentAnalysis  `json:"analysis,omitempty"`
	Article  *domain.Article          `json:"article,omitempty"`
}

// HasStage reports whether the request includes the given stage.
func (r *TaskRequest) HasStage(stage Stage) bool {
	for _, s := range r.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// FirstStage returns the leading stage of the request in pipeline
// order, or "" for an empty request.
func (r *TaskRequest) FirstStage() Stage {
	first := Stage("")
	best := len(stageIndex)
	for _, s := range r.Stages {
		if idx, ok := stageIndex[s]; ok && idx < best {
			best = idx
			first = s
		}
	}
	return first
}

// orderedStages returns the requested stages sorted into pipeline
// order with duplicates removed.
func (r *TaskRequest) orderedStages() []Stage {
	out := make([]Stage, 0, len(r.Stages))
	for _, s := range StageOrder() {
		if r.HasStage(s) {
			out = append(out, s)
		}
	}
	return out
}
