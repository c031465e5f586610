package analyzer

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/tenkay/filing-pipeline/internal/model"
)

// ErrBadResponse is returned when the model reply cannot be used.
var ErrBadResponse = eris.New("analyzer: unusable model response")

var fencedRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")

// rawAnalysis accepts both prompt shapes and tolerates numbers where
// strings were asked for.
type rawAnalysis struct {
	Headline       string          `json:"headline"`
	Summary        string          `json:"summary"`
	Intro          string          `json:"intro"`
	KeyPoints      []string        `json:"key_points"`
	Sections       []model.Section `json:"sections"`
	Conclusion     string          `json:"conclusion"`
	KeyMetrics     map[string]any  `json:"key_metrics"`
	SentimentScore any             `json:"sentiment_score"`
	RiskFactors    []string        `json:"risk_factors"`
	Opportunities  []string        `json:"opportunities"`
}

// ParseResponse decodes the model's JSON, falling back to a fenced code
// block, and normalizes it into an Analysis.
func ParseResponse(text string, typ model.AnalysisType) (model.Analysis, error) {
	raw, err := decode(text)
	if err != nil {
		return model.Analysis{}, err
	}

	a := model.Analysis{
		Headline:       cleanField(raw.Headline),
		Intro:          cleanField(firstNonEmpty(raw.Intro, raw.Summary)),
		Conclusion:     cleanField(raw.Conclusion),
		SentimentScore: sentiment(raw.SentimentScore),
		KeyPoints:      cleanList(raw.KeyPoints),
		RiskFactors:    cleanList(raw.RiskFactors),
		Opportunities:  cleanList(raw.Opportunities),
		KeyMetrics:     make(map[string]string, len(raw.KeyMetrics)),
	}
	for _, s := range raw.Sections {
		title, body := cleanField(s.Title), cleanField(s.Content)
		if title == "" && body == "" {
			continue
		}
		a.Sections = append(a.Sections, model.Section{Title: title, Content: body})
	}
	for k, v := range raw.KeyMetrics {
		if s := cleanField(metricString(v)); s != "" {
			a.KeyMetrics[k] = s
		}
	}

	if a.Headline == "" {
		return model.Analysis{}, eris.Wrap(ErrBadResponse, "missing headline")
	}
	if typ == model.AnalysisDeep {
		if len(a.Sections) == 0 {
			return model.Analysis{}, eris.Wrap(ErrBadResponse, "deep analysis has no sections")
		}
		if len(a.KeyPoints) == 0 {
			for _, s := range a.Sections[:min(3, len(a.Sections))] {
				a.KeyPoints = append(a.KeyPoints, s.Title)
			}
		}
	}
	return a, nil
}

func decode(text string) (*rawAnalysis, error) {
	var raw rawAnalysis
	text = strings.TrimSpace(text)
	if err := json.Unmarshal([]byte(text), &raw); err == nil {
		return &raw, nil
	}
	if m := fencedRe.FindStringSubmatch(text); m != nil {
		if err := json.Unmarshal([]byte(m[1]), &raw); err == nil {
			return &raw, nil
		}
	}
	// Prose around a bare object.
	if i, j := strings.Index(text, "{"), strings.LastIndex(text, "}"); i >= 0 && j > i {
		if err := json.Unmarshal([]byte(text[i:j+1]), &raw); err == nil {
			return &raw, nil
		}
	}
	return nil, eris.Wrapf(ErrBadResponse, "no JSON object in %q", clip(text, 80))
}

func sentiment(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case string:
		f, _ = strconv.ParseFloat(strings.TrimSpace(x), 64)
	}
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(-1, math.Min(1, f))
}

func metricString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		if s = cleanField(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
