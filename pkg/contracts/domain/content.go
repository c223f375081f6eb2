package domain

import (
	"time"
)

// ExtractedContent is the output of the extract stage: the readable
// payload of a single web page.
type ExtractedContent struct {
	URL         string            `json:"url" validate:"required,url"`
	Title       string            `json:"title"`
	Body        string            `json:"body" validate:"required"`
	Images      []string          `json:"images,omitempty"`
	Links       []string          `json:"links,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	RetrievedAt time.Time         `json:"retrieved_at"`
}

// WordCount returns the whitespace-delimited token count of the body.
func (c *ExtractedContent) WordCount() int {
	n := 0
	inWord := false
	for _, r := range c.Body {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				n++
				inWord = true
			}
		}
	}
	return n
}

// Sentiment classification produced by the analyze stage.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentMixed    Sentiment = "mixed"
)

// ContentAnalysis is the output of the analyze stage.
type ContentAnalysis struct {
	Summary         string    `json:"summary" validate:"required"`
	KeyPoints       []string  `json:"key_points"`
	Themes          []string  `json:"themes"`
	Sentiment       Sentiment `json:"sentiment"`
	Recommendations []string  `json:"recommendations,omitempty"`
	AnalyzedAt      time.Time `json:"analyzed_at"`
}

// WritingStyle selects the article template used by the write stage.
type WritingStyle string

const (
	StyleProfessional WritingStyle = "professional"
	StyleCasual       WritingStyle = "casual"
	StyleNews         WritingStyle = "news"
)

// ValidStyles lists the accepted writing styles.
func ValidStyles() []WritingStyle {
	return []WritingStyle{StyleProfessional, StyleCasual, StyleNews}
}

// IsValid reports whether s is a known writing style.
func (s WritingStyle) IsValid() bool {
	switch s {
	case StyleProfessional, StyleCasual, StyleNews:
		return true
	}
	return false
}

// Audience selects the reader profile used by the write stage.
type Audience string

const (
	AudienceGeneral   Audience = "general"
	AudienceTechnical Audience = "technical"
	AudienceBusiness  Audience = "business"
)

// IsValid reports whether a is a known audience profile.
func (a Audience) IsValid() bool {
	switch a {
	case AudienceGeneral, AudienceTechnical, AudienceBusiness:
		return true
	}
	return false
}

// Article is the output of the write stage.
type Article struct {
	Title       string       `json:"title" validate:"required"`
	Content     string       `json:"content" validate:"required"`
	Summary     string       `json:"summary"`
	Tags        []string     `json:"tags,omitempty"`
	WordCount   int          `json:"word_count"`
	Style       WritingStyle `json:"style,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// PublishReceipt is the output of the publish stage.
type PublishReceipt struct {
	Platform    string    `json:"platform"`
	DraftID     string    `json:"draft_id,omitempty"`
	ArticleID   string    `json:"article_id,omitempty"`
	DraftOnly   bool      `json:"draft_only"`
	PublishedAt time.Time `json:"published_at"`
}
