package pipeline_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contentpipe/internal/pipeline"
	"contentpipe/pkg/contracts/domain"
)

func TestValidateRequest_FillsDefaults(t *testing.T) {
	req := pipeline.TaskRequest{
		Stages: allStages(),
		URL:    "https://example.com/post",
	}
	require.NoError(t, pipeline.ValidateRequest(&req))
	assert.Equal(t, domain.StyleProfessional, req.Style)
	assert.Equal(t, domain.AudienceGeneral, req.Audience)
	assert.Equal(t, pipeline.DefaultTargetWords, req.TargetWords)
}

func TestValidateRequest_KeepsExplicitParameters(t *testing.T) {
	req := pipeline.TaskRequest{
		Stages:      allStages(),
		URL:         "https://example.com/post",
		Style:       domain.StyleCasual,
		Audience:    domain.AudienceTechnical,
		TargetWords: 2500,
	}
	require.NoError(t, pipeline.ValidateRequest(&req))
	assert.Equal(t, domain.StyleCasual, req.Style)
	assert.Equal(t, domain.AudienceTechnical, req.Audience)
	assert.Equal(t, 2500, req.TargetWords)
}

func TestValidateRequest_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		req   pipeline.TaskRequest
		field string
	}{
		{
			name:  "no stages",
			req:   pipeline.TaskRequest{URL: "https://example.com"},
			field: "stages",
		},
		{
			name: "unknown stage",
			req: pipeline.TaskRequest{
				Stages: []pipeline.Stage{"translate"},
				URL:    "https://example.com",
			},
			field: "stages",
		},
		{
			name: "duplicate stage",
			req: pipeline.TaskRequest{
				Stages: []pipeline.Stage{pipeline.StageExtract, pipeline.StageExtract},
				URL:    "https://example.com",
			},
			field: "stages",
		},
		{
			name: "gap between stages",
			req: pipeline.TaskRequest{
				Stages: []pipeline.Stage{pipeline.StageExtract, pipeline.StageWrite},
				URL:    "https://example.com",
			},
			field: "stages",
		},
		{
			name: "missing url",
			req: pipeline.TaskRequest{
				Stages: []pipeline.Stage{pipeline.StageExtract},
			},
			field: "url",
		},
		{
			name: "relative url",
			req: pipeline.TaskRequest{
				Stages: []pipeline.Stage{pipeline.StageExtract},
				URL:    "/blog/post",
			},
			field: "url",
		},
		{
			name: "unsupported scheme",
			req: pipeline.TaskRequest{
				Stages: []pipeline.Stage{pipeline.StageExtract},
				URL:    "ftp://example.com/post",
			},
			field: "url",
		},
		{
			name: "unknown style",
			req: pipeline.TaskRequest{
				Stages: []pipeline.Stage{pipeline.StageExtract},
				URL:    "https://example.com",
				Style:  "baroque",
			},
			field: "style",
		},
		{
			name: "unknown audience",
			req: pipeline.TaskRequest{
				Stages:   []pipeline.Stage{pipeline.StageExtract},
				URL:      "https://example.com",
				Audience: "executives",
			},
			field: "audience",
		},
		{
			name: "target words below minimum",
			req: pipeline.TaskRequest{
				Stages:      []pipeline.Stage{pipeline.StageExtract},
				URL:         "https://example.com",
				TargetWords: 100,
			},
			field: "target_words",
		},
		{
			name: "target words above maximum",
			req: pipeline.TaskRequest{
				Stages:      []pipeline.Stage{pipeline.StageExtract},
				URL:         "https://example.com",
				TargetWords: 10000,
			},
			field: "target_words",
		},
		{
			name: "analyze without content",
			req: pipeline.TaskRequest{
				Stages: []pipeline.Stage{pipeline.StageAnalyze},
			},
			field: "content",
		},
		{
			name: "write without analysis",
			req: pipeline.TaskRequest{
				Stages: []pipeline.Stage{pipeline.StageWrite},
			},
			field: "analysis",
		},
		{
			name: "publish without article",
			req: pipeline.TaskRequest{
				Stages: []pipeline.Stage{pipeline.StagePublish},
			},
			field: "article",
		},
		{
			name: "publish with empty article title",
			req: pipeline.TaskRequest{
				Stages:  []pipeline.Stage{pipeline.StagePublish},
				Article: &domain.Article{Content: "body"},
			},
			field: "article",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pipeline.ValidateRequest(&tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, pipeline.ErrInvalidRequest)

			var verr *pipeline.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestValidateRequest_StageOrderDoesNotMatter(t *testing.T) {
	req := pipeline.TaskRequest{
		Stages: []pipeline.Stage{pipeline.StageAnalyze, pipeline.StageExtract},
		URL:    "https://example.com/post",
	}
	assert.NoError(t, pipeline.ValidateRequest(&req))
}

func TestValidateRequest_MidPipelineStart(t *testing.T) {
	req := pipeline.TaskRequest{
		Stages: []pipeline.Stage{pipeline.StageAnalyze, pipeline.StageWrite},
		Content: &domain.ExtractedContent{
			URL:  "https://example.com/post",
			Body: "enough text to analyze",
		},
	}
	assert.NoError(t, pipeline.ValidateRequest(&req))
}
