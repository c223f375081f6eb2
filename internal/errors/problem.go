// Package errors provides RFC 7807 problem documents for the HTTP
// surface.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs.
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface.
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// Error implements the error interface.
func (pd *ProblemDetails) Error() string {
	return fmt.Sprintf("%d %s: %s", pd.Status, pd.Title, pd.Detail)
}

// MarshalJSON flattens the extensions into the document.
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{})
	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status
	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}
	for k, v := range pd.Extensions {
		data[k] = v
	}
	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error.
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details.
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// Problem types used by the task API.
const (
	TypeValidation   = "/errors/invalid-request"
	TypeTaskNotFound = "/errors/task-not-found"
	TypeTaskNotReady = "/errors/task-not-ready"
	TypeTaskActive   = "/errors/task-active"
	TypeQueueFull    = "/errors/queue-full"
	TypeInternal     = "/errors/internal"
)

// NewValidationProblem reports a rejected submission.
func NewValidationProblem(detail, instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusBadRequest, TypeValidation, "Invalid Request", detail, instance)
}

// NewTaskNotFoundProblem reports an unknown task id.
func NewTaskNotFoundProblem(taskID, instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusNotFound, TypeTaskNotFound, "Task Not Found",
		fmt.Sprintf("no task with id %s", taskID), instance).
		WithExtension("task_id", taskID)
}

// NewTaskNotReadyProblem reports a result request for a task that is
// still pending or running.
func NewTaskNotReadyProblem(taskID, status, instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusConflict, TypeTaskNotReady, "Task Not Ready",
		"the task has not reached a terminal status yet", instance).
		WithExtension("task_id", taskID).
		WithExtension("current_status", status)
}

// NewTaskActiveProblem reports a delete of a task that is still
// pending or running.
func NewTaskActiveProblem(taskID, instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusConflict, TypeTaskActive, "Task Still Active",
		"cancel the task before deleting it", instance).
		WithExtension("task_id", taskID)
}

// NewQueueFullProblem reports submission backpressure.
func NewQueueFullProblem(instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusServiceUnavailable, TypeQueueFull, "Queue Full",
		"the task queue is full, retry later", instance).
		WithExtension("retry_after_seconds", 5)
}

// NewInternalProblem reports an unexpected server failure.
func NewInternalProblem(instance string) *ProblemDetails {
	return NewProblemDetails(http.StatusInternalServerError, TypeInternal, "Internal Server Error",
		"an unexpected error occurred", instance)
}
