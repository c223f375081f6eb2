package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractedContent_WordCount(t *testing.T) {
	tests := []struct {
		body string
		want int
	}{
		{"", 0},
		{"one", 1},
		{"one two three", 3},
		{"  spaced\tout\nwords  ", 3},
		{"line\r\nbreaks count", 3},
	}
	for _, tt := range tests {
		c := &ExtractedContent{Body: tt.body}
		assert.Equal(t, tt.want, c.WordCount(), "%q", tt.body)
	}
}

func TestWritingStyle_IsValid(t *testing.T) {
	for _, s := range ValidStyles() {
		assert.True(t, s.IsValid())
	}
	assert.False(t, WritingStyle("").IsValid())
	assert.False(t, WritingStyle("florid").IsValid())
}

func TestAudience_IsValid(t *testing.T) {
	assert.True(t, AudienceGeneral.IsValid())
	assert.True(t, AudienceTechnical.IsValid())
	assert.True(t, AudienceBusiness.IsValid())
	assert.False(t, Audience("children").IsValid())
}
