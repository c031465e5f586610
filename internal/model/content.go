package model

import (
	"time"
)

// AnalysisType selects the analysis prompt depth.
type AnalysisType string

const (
	AnalysisQuick AnalysisType = "quick"
	AnalysisDeep  AnalysisType = "deep"
)

// Section is one titled block of analysis prose.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Analysis is the structured LLM output for one filing.
type Analysis struct {
	Headline       string            `json:"headline"`
	Intro          string            `json:"intro"`
	KeyPoints      []string          `json:"key_points,omitempty"`
	Sections       []Section         `json:"sections"`
	Conclusion     string            `json:"conclusion"`
	KeyMetrics     map[string]string `json:"key_metrics"`
	SentimentScore float64           `json:"sentiment_score"`
	RiskFactors    []string          `json:"risk_factors"`
	Opportunities  []string          `json:"opportunities"`
}

// Sentiment buckets the score the same way the rendered content labels it.
func (a Analysis) Sentiment() string {
	switch {
	case a.SentimentScore > 0.2:
		return "positive"
	case a.SentimentScore < -0.2:
		return "negative"
	default:
		return "neutral"
	}
}

// Rendered holds the generated artifacts for a content record.
type Rendered struct {
	BlogHTML       string
	EmailHTML      string
	EmailText      string
	WordCount      int
	ReadingMinutes int
}

// Content is the second-stage work unit, created once analysis succeeds.
// Its later sub-states are recorded by artifact presence rather than a
// status column.
type Content struct {
	ID             string       `json:"id"`
	FilingID       string       `json:"filing_id"`
	AnalysisType   AnalysisType `json:"analysis_type"`
	Analysis       Analysis     `json:"analysis"`
	BlogHTML       string       `json:"blog_html,omitempty"`
	EmailHTML      string       `json:"email_html,omitempty"`
	EmailText      string       `json:"email_text,omitempty"`
	WordCount      int          `json:"word_count,omitempty"`
	ReadingMinutes int          `json:"reading_minutes,omitempty"`
	PublishedAt    *time.Time   `json:"published_at,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Key returns the originating filing id.
func (c Content) Key() string { return c.FilingID }

// ContentState is the sub-state derived from which artifacts exist.
type ContentState string

const (
	ContentAnalyzed  ContentState = "analyzed"
	ContentRendered  ContentState = "rendered"
	ContentPublished ContentState = "published"
)

// Rendered reports whether every generated artifact is present.
func (c Content) Rendered() bool {
	return c.BlogHTML != "" && c.EmailHTML != ""
}

// State derives the sub-state from artifact presence.
func (c Content) State() ContentState {
	switch {
	case c.PublishedAt != nil:
		return ContentPublished
	case c.Rendered():
		return ContentRendered
	default:
		return ContentAnalyzed
	}
}

// ContentView joins a content record with the filing and company details
// needed to render and publish it.
type ContentView struct {
	Content
	Filing Filing `json:"filing"`
}
