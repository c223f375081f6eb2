// Package http exposes the task engine over a chi-routed JSON API.
package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apierrors "contentpipe/internal/errors"
	"contentpipe/internal/infrastructure"
	"contentpipe/internal/middleware"
	"contentpipe/internal/pipeline"
	"contentpipe/internal/services"
	"contentpipe/pkg/contracts/domain"
)

var validate = validator.New()

// PipelineHandler serves task submission, polling, cancellation and
// eviction.
type PipelineHandler struct {
	service *services.PipelineService
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewPipelineHandler creates the handler.
func NewPipelineHandler(service *services.PipelineService, logger *slog.Logger) *PipelineHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "pipeline")),
		tracer:  otel.Tracer(infrastructure.TracerName),
	}
}

// Routes returns the router for the task API.
func (h *PipelineHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/pipeline", h.SubmitPipeline)
	r.Post("/pipeline/extract", h.SubmitExtract)
	r.Post("/pipeline/analyze", h.SubmitAnalyze)
	r.Post("/pipeline/write", h.SubmitWrite)
	r.Post("/pipeline/publish", h.SubmitPublish)

	r.Get("/tasks", h.ListTasks)
	r.Route("/tasks/{taskID}", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Get("/result", h.GetResult)
		r.Post("/cancel", h.CancelTask)
		r.Delete("/", h.DeleteTask)
	})

	return r
}

// PipelineRequest is the body of POST /pipeline: the full pipeline
// from a URL, optionally ending in a publish.
type PipelineRequest struct {
	URL           string `json:"url" validate:"required,url"`
	Style         string `json:"style,omitempty"`
	Audience      string `json:"audience,omitempty"`
	TargetWords   int    `json:"target_words,omitempty"`
	IncludeImages bool   `json:"include_images,omitempty"`
	IncludeLinks  bool   `json:"include_links,omitempty"`
	Publish       bool   `json:"publish,omitempty"`
	DraftOnly     bool   `json:"draft_only,omitempty"`
	Author        string `json:"author,omitempty"`
}

// Bind implements render.Binder.
func (p *PipelineRequest) Bind(r *http.Request) error {
	return validate.Struct(p)
}

func (p *PipelineRequest) toTaskRequest() pipeline.TaskRequest {
	stages := []pipeline.Stage{pipeline.StageExtract, pipeline.StageAnalyze, pipeline.StageWrite}
	if p.Publish {
		stages = append(stages, pipeline.StagePublish)
	}
	return pipeline.TaskRequest{
		Stages:        stages,
		URL:           p.URL,
		IncludeImages: p.IncludeImages,
		IncludeLinks:  p.IncludeLinks,
		Style:         domain.WritingStyle(p.Style),
		Audience:      domain.Audience(p.Audience),
		TargetWords:   p.TargetWords,
		Author:        p.Author,
		DraftOnly:     p.DraftOnly,
	}
}

// SubmitPipeline handles POST /api/pipeline.
func (h *PipelineHandler) SubmitPipeline(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "pipeline.submit")
	defer span.End()
	r = r.WithContext(ctx)

	data := &PipelineRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.NewValidationProblem(err.Error(), r.URL.Path))
		return
	}
	span.SetAttributes(attribute.String("url", data.URL))
	h.accept(w, r, data.toTaskRequest())
}

// ExtractOnlyRequest is the body of POST /pipeline/extract.
type ExtractOnlyRequest struct {
	URL           string `json:"url" validate:"required,url"`
	IncludeImages bool   `json:"include_images,omitempty"`
	IncludeLinks  bool   `json:"include_links,omitempty"`
}

func (p *ExtractOnlyRequest) Bind(r *http.Request) error {
	return validate.Struct(p)
}

// SubmitExtract handles POST /api/pipeline/extract.
func (h *PipelineHandler) SubmitExtract(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "pipeline.submit_extract")
	defer span.End()
	r = r.WithContext(ctx)

	data := &ExtractOnlyRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.NewValidationProblem(err.Error(), r.URL.Path))
		return
	}
	h.accept(w, r, pipeline.TaskRequest{
		Stages:        []pipeline.Stage{pipeline.StageExtract},
		URL:           data.URL,
		IncludeImages: data.IncludeImages,
		IncludeLinks:  data.IncludeLinks,
	})
}

// AnalyzeOnlyRequest is the body of POST /pipeline/analyze: explicit
// content in, analysis out.
type AnalyzeOnlyRequest struct {
	Content *domain.ExtractedContent `json:"content" validate:"required"`
}

func (p *AnalyzeOnlyRequest) Bind(r *http.Request) error {
	return validate.Struct(p)
}

// SubmitAnalyze handles POST /api/pipeline/analyze.
func (h *PipelineHandler) SubmitAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "pipeline.submit_analyze")
	defer span.End()
	r = r.WithContext(ctx)

	data := &AnalyzeOnlyRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.NewValidationProblem(err.Error(), r.URL.Path))
		return
	}
	h.accept(w, r, pipeline.TaskRequest{
		Stages:  []pipeline.Stage{pipeline.StageAnalyze},
		Content: data.Content,
	})
}

// WriteOnlyRequest is the body of POST /pipeline/write.
type WriteOnlyRequest struct {
	Analysis    *domain.ContentAnalysis  `json:"analysis" validate:"required"`
	Content     *domain.ExtractedContent `json:"content,omitempty"`
	Style       string                   `json:"style,omitempty"`
	Audience    string                   `json:"audience,omitempty"`
	TargetWords int                      `json:"target_words,omitempty"`
}

func (p *WriteOnlyRequest) Bind(r *http.Request) error {
	return validate.Struct(p)
}

// SubmitWrite handles POST /api/pipeline/write.
func (h *PipelineHandler) SubmitWrite(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "pipeline.submit_write")
	defer span.End()
	r = r.WithContext(ctx)

	data := &WriteOnlyRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.NewValidationProblem(err.Error(), r.URL.Path))
		return
	}
	h.accept(w, r, pipeline.TaskRequest{
		Stages:      []pipeline.Stage{pipeline.StageWrite},
		Analysis:    data.Analysis,
		Content:     data.Content,
		Style:       domain.WritingStyle(data.Style),
		Audience:    domain.Audience(data.Audience),
		TargetWords: data.TargetWords,
	})
}

// PublishOnlyRequest is the body of POST /pipeline/publish.
type PublishOnlyRequest struct {
	Article   *domain.Article `json:"article" validate:"required"`
	Author    string          `json:"author,omitempty"`
	DraftOnly bool            `json:"draft_only,omitempty"`
}

func (p *PublishOnlyRequest) Bind(r *http.Request) error {
	return validate.Struct(p)
}

// SubmitPublish handles POST /api/pipeline/publish.
func (h *PipelineHandler) SubmitPublish(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "pipeline.submit_publish")
	defer span.End()
	r = r.WithContext(ctx)

	data := &PublishOnlyRequest{}
	if err := render.Bind(r, data); err != nil {
		render.Render(w, r, apierrors.NewValidationProblem(err.Error(), r.URL.Path))
		return
	}
	h.accept(w, r, pipeline.TaskRequest{
		Stages:    []pipeline.Stage{pipeline.StagePublish},
		Article:   data.Article,
		Author:    data.Author,
		DraftOnly: data.DraftOnly,
	})
}

// TaskAcceptedResponse is returned with 202 on any submission.
type TaskAcceptedResponse struct {
	TaskID    string   `json:"task_id"`
	Status    string   `json:"status"`
	Stages    []string `json:"stages"`
	PollURL   string   `json:"poll_url"`
	ResultURL string   `json:"result_url"`
}

// accept submits the request to the service and renders the 202.
func (h *PipelineHandler) accept(w http.ResponseWriter, r *http.Request, req pipeline.TaskRequest) {
	task, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.renderError(w, r, "", err)
		return
	}

	stages := make([]string, len(task.Request.Stages))
	for i, s := range task.Request.Stages {
		stages[i] = string(s)
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, TaskAcceptedResponse{
		TaskID:    task.ID,
		Status:    string(task.Status),
		Stages:    stages,
		PollURL:   "/api/tasks/" + task.ID + "/status",
		ResultURL: "/api/tasks/" + task.ID + "/result",
	})
}

// TaskStatusResponse is the polling payload.
type TaskStatusResponse struct {
	TaskID          string               `json:"task_id"`
	Status          string               `json:"status"`
	CompletedStages []pipeline.Stage     `json:"completed_stages"`
	Error           *pipeline.StageError `json:"error,omitempty"`
	IsComplete      bool                 `json:"is_complete"`
	PollAfter       int                  `json:"poll_after_seconds,omitempty"`
	CreatedAt       string               `json:"created_at"`
	UpdatedAt       string               `json:"updated_at"`
}

// GetStatus handles GET /api/tasks/{taskID}/status.
func (h *PipelineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := h.service.Status(r.Context(), taskID)
	if err != nil {
		h.renderError(w, r, taskID, err)
		return
	}

	resp := TaskStatusResponse{
		TaskID:          task.ID,
		Status:          string(task.Status),
		CompletedStages: task.CompletedStages,
		Error:           task.Error,
		IsComplete:      task.Status.IsTerminal(),
		CreatedAt:       task.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       task.UpdatedAt.Format(time.RFC3339),
	}
	if !resp.IsComplete {
		resp.PollAfter = 2
	}
	render.JSON(w, r, resp)
}

// TaskResultResponse carries the terminal outcome with all stage
// outputs recorded before completion or failure.
type TaskResultResponse struct {
	TaskID          string                `json:"task_id"`
	Status          string                `json:"status"`
	CompletedStages []pipeline.Stage      `json:"completed_stages"`
	Outputs         pipeline.StageOutputs `json:"outputs"`
	Error           *pipeline.StageError  `json:"error,omitempty"`
}

// GetResult handles GET /api/tasks/{taskID}/result.
func (h *PipelineHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, err := h.service.Result(r.Context(), taskID)
	if err != nil {
		h.renderError(w, r, taskID, err)
		return
	}
	render.JSON(w, r, TaskResultResponse{
		TaskID:          task.ID,
		Status:          string(task.Status),
		CompletedStages: task.CompletedStages,
		Outputs:         task.Outputs,
		Error:           task.Error,
	})
}

// CancelTask handles POST /api/tasks/{taskID}/cancel.
func (h *PipelineHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "pipeline.cancel")
	defer span.End()
	r = r.WithContext(ctx)

	taskID := chi.URLParam(r, "taskID")
	previous, err := h.service.Cancel(r.Context(), taskID)
	if err != nil {
		h.renderError(w, r, taskID, err)
		return
	}
	render.JSON(w, r, map[string]string{
		"task_id":         taskID,
		"previous_status": string(previous),
	})
}

// DeleteTask handles DELETE /api/tasks/{taskID}.
func (h *PipelineHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if err := h.service.Delete(r.Context(), taskID); err != nil {
		h.renderError(w, r, taskID, err)
		return
	}
	render.NoContent(w, r)
}

// ListTasks handles GET /api/tasks with an optional status filter.
func (h *PipelineHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	status := pipeline.TaskStatus(r.URL.Query().Get("status"))
	tasks := h.service.List(r.Context(), status)

	items := make([]TaskStatusResponse, 0, len(tasks))
	for _, task := range tasks {
		items = append(items, TaskStatusResponse{
			TaskID:          task.ID,
			Status:          string(task.Status),
			CompletedStages: task.CompletedStages,
			Error:           task.Error,
			IsComplete:      task.Status.IsTerminal(),
			CreatedAt:       task.CreatedAt.Format(time.RFC3339),
			UpdatedAt:       task.UpdatedAt.Format(time.RFC3339),
		})
	}
	render.JSON(w, r, map[string]any{
		"tasks": items,
		"count": len(items),
	})
}

// renderError maps service errors onto problem documents.
func (h *PipelineHandler) renderError(w http.ResponseWriter, r *http.Request, taskID string, err error) {
	instance := r.URL.Path

	var verr *pipeline.ValidationError
	switch {
	case errors.As(err, &verr):
		problem := apierrors.NewValidationProblem(verr.Message, instance)
		if verr.Field != "" {
			problem.WithExtension("field", verr.Field)
		}
		render.Render(w, r, problem)
	case errors.Is(err, pipeline.ErrTaskNotFound):
		render.Render(w, r, apierrors.NewTaskNotFoundProblem(taskID, instance))
	case errors.Is(err, pipeline.ErrTaskNotReady):
		status := ""
		if task, serr := h.service.Status(r.Context(), taskID); serr == nil {
			status = string(task.Status)
		}
		render.Render(w, r, apierrors.NewTaskNotReadyProblem(taskID, status, instance))
	case errors.Is(err, pipeline.ErrTaskActive):
		render.Render(w, r, apierrors.NewTaskActiveProblem(taskID, instance))
	case errors.Is(err, pipeline.ErrQueueFull), errors.Is(err, pipeline.ErrQueueStopped):
		render.Render(w, r, apierrors.NewQueueFullProblem(instance))
	default:
		h.logger.ErrorContext(r.Context(), "unexpected handler error",
			slog.String("task_id", taskID),
			slog.String("error", err.Error()))
		problem := apierrors.NewInternalProblem(instance)
		if reqID := middleware.GetRequestID(r.Context()); reqID != "" {
			problem.WithExtension("request_id", reqID)
		}
		render.Render(w, r, problem)
	}
}
