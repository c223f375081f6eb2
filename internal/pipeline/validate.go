package pipeline

import (
	"net/url"
	"strings"

	"contentpipe/pkg/contracts/domain"
)

// ValidateRequest checks a submission and fills parameter defaults.
// A rejected request returns a *ValidationError and never becomes a
// stored task.
func ValidateRequest(req *TaskRequest) error {
	if len(req.Stages) == 0 {
		return newValidationError("stages", "at least one stage is required")
	}
	seen := make(map[Stage]bool, len(req.Stages))
	for _, s := range req.Stages {
		if !s.IsValid() {
			return newValidationError("stages", "unknown stage "+string(s))
		}
		if seen[s] {
			return newValidationError("stages", "duplicate stage "+string(s))
		}
		seen[s] = true
	}
	if err := checkContiguous(req.orderedStages()); err != nil {
		return err
	}

	if req.Style == "" {
		req.Style = domain.StyleProfessional
	}
	if !req.Style.IsValid() {
		return newValidationError("style", "must be one of professional, casual, news")
	}
	if req.Audience == "" {
		req.Audience = domain.AudienceGeneral
	}
	if !req.Audience.IsValid() {
		return newValidationError("audience", "must be one of general, technical, business")
	}
	if req.TargetWords == 0 {
		req.TargetWords = DefaultTargetWords
	}
	if req.TargetWords < MinTargetWords || req.TargetWords > MaxTargetWords {
		return newValidationError("target_words", "must be between 300 and 5000")
	}

	return checkLeadingInput(req)
}

// checkContiguous rejects stage subsets with gaps; a task that skips
// an intermediate stage would run a stage without its input.
func checkContiguous(ordered []Stage) error {
	for i := 1; i < len(ordered); i++ {
		if stageIndex[ordered[i]] != stageIndex[ordered[i-1]]+1 {
			return newValidationError("stages",
				"stages must be contiguous: "+string(ordered[i-1])+" cannot be followed by "+string(ordered[i]))
		}
	}
	return nil
}

// checkLeadingInput verifies the first requested stage has the input
// it needs: a URL for extract, an explicit payload otherwise.
func checkLeadingInput(req *TaskRequest) error {
	switch req.FirstStage() {
	case StageExtract:
		if strings.TrimSpace(req.URL) == "" {
			return newValidationError("url", "url is required")
		}
		u, err := url.Parse(req.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return newValidationError("url", "must be an absolute http or https url")
		}
	case StageAnalyze:
		if req.Content == nil || strings.TrimSpace(req.Content.Body) == "" {
			return newValidationError("content", "extracted content with a body is required")
		}
	case StageWrite:
		if req.Analysis == nil || strings.TrimSpace(req.Analysis.Summary) == "" {
			return newValidationError("analysis", "content analysis with a summary is required")
		}
	case StagePublish:
		if req.Article == nil || req.Article.Title == "" || req.Article.Content == "" {
			return newValidationError("article", "article with title and content is required")
		}
	}
	return nil
}
