package pipeline

import (
	"time"

	"github.com/google/uuid"

	"contentpipe/pkg/contracts/domain"
)

// StageOutputs holds the typed result of each completed stage. A
// field is nil until its stage completes; once set it is never
// replaced.
type StageOutputs struct {
	Content  *domain.ExtractedContent `json:"content,omitempty"`
	Analysis *domain.ContentAnalysis  `json:"analysis,omitempty"`
	Article  *domain.Article          `json:"article,omitempty"`
	Receipt  *domain.PublishReceipt   `json:"receipt,omitempty"`
}

// clone returns a shallow copy; the payload pointers are shared
// because outputs are write-once.
func (o StageOutputs) clone() StageOutputs {
	return o
}

// Has reports whether the output for stage has been recorded.
func (o *StageOutputs) Has(stage Stage) bool {
	switch stage {
	case StageExtract:
		return o.Content != nil
	case StageAnalyze:
		return o.Analysis != nil
	case StageWrite:
		return o.Article != nil
	case StagePublish:
		return o.Receipt != nil
	}
	return false
}

// TaskRecord is the stored state of one pipeline task.
type TaskRecord struct {
	ID              string       `json:"id"`
	Status          TaskStatus   `json:"status"`
	Request         TaskRequest  `json:"request"`
	Outputs         StageOutputs `json:"outputs"`
	CompletedStages []Stage      `json:"completed_stages"`
	Error           *StageError  `json:"error,omitempty"`
	CancelRequested bool         `json:"-"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	StartedAt       time.Time    `json:"started_at,omitempty"`
	CompletedAt     time.Time    `json:"completed_at,omitempty"`
}

// NewTask builds a Pending task for the given request.
func NewTask(req TaskRequest) *TaskRecord {
	now := time.Now()
	return &TaskRecord{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns an independent snapshot of the record. Stage payloads
// are shared since they are write-once.
func (t *TaskRecord) Clone() *TaskRecord {
	c := *t
	c.Outputs = t.Outputs.clone()
	if t.CompletedStages != nil {
		c.CompletedStages = make([]Stage, len(t.CompletedStages))
		copy(c.CompletedStages, t.CompletedStages)
	}
	if t.Error != nil {
		errCopy := *t.Error
		c.Error = &errCopy
	}
	return &c
}

// recordOutput stores a stage output and appends the stage to the
// completion log.
func (t *TaskRecord) recordOutput(stage Stage, out StageOutputs) {
	switch stage {
	case StageExtract:
		t.Outputs.Content = out.Content
	case StageAnalyze:
		t.Outputs.Analysis = out.Analysis
	case StageWrite:
		t.Outputs.Article = out.Article
	case StagePublish:
		t.Outputs.Receipt = out.Receipt
	}
	t.CompletedStages = append(t.CompletedStages, stage)
}

// finish moves the task into a terminal status. It is a no-op when
// the task is already terminal.
func (t *TaskRecord) finish(status TaskStatus, stageErr *StageError) {
	if t.Status.IsTerminal() {
		return
	}
	t.Status = status
	t.Error = stageErr
	t.CompletedAt = time.Now()
}
