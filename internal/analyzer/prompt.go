package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/tenkay/filing-pipeline/internal/model"
)

const perSectionPromptLimit = 5000

const systemPrompt = `You are a financial analyst writing for tech operators, founders and investors who read fast.
Tone: direct, analytical, opinionated. No corporate speak, no hedging, no restating what is legally required.
Focus on what changed, why it matters, what comes next and the second-order effects others miss.
Use specific figures from the filing. Respond with a single valid JSON object and nothing else.`

const quickTask = `Generate a TLDR summary as JSON:
{
  "headline": "one-line summary, 8-12 words",
  "summary": "2-3 sentence overview of the most important findings",
  "key_points": ["point 1", "point 2", "point 3"],
  "sentiment_score": 0.0,
  "key_metrics": {"revenue": "value with context", "growth_rate": "value with context"}
}
sentiment_score runs from -1 (very negative) to 1 (very positive).`

const deepTask = `Generate a deep analysis as JSON:
{
  "headline": "compelling headline, 8-15 words",
  "intro": "2-3 paragraphs setting up the key themes",
  "sections": [{"title": "Section title", "content": "2-4 paragraphs with specific details and implications"}],
  "conclusion": "2-3 paragraphs synthesizing the insights and forward-looking implications",
  "key_metrics": {"revenue": "with YoY comparison", "margins": "...", "growth_indicators": "..."},
  "sentiment_score": 0.0,
  "risk_factors": ["top risk 1", "top risk 2", "top risk 3"],
  "opportunities": ["opportunity 1", "opportunity 2", "opportunity 3"]
}
Write 4-6 sections covering financial performance, strategic moves, risks, opportunities and market position.
sentiment_score runs from -1 (very negative) to 1 (very positive).`

// BuildPrompt renders the user message for one filing.
func BuildPrompt(f model.Filing, sections []Section, typ model.AnalysisType) string {
	name := f.CompanyName
	if name == "" {
		name = f.Ticker
	}

	var sb strings.Builder
	if typ == model.AnalysisDeep {
		fmt.Fprintf(&sb, "Perform a comprehensive analysis of this %s filing for %s (%s).\n\n", f.FilingType, name, f.FiscalPeriod)
	} else {
		fmt.Fprintf(&sb, "Analyze this %s filing for %s (%s) and summarize it concisely.\n\n", f.FilingType, name, f.FiscalPeriod)
	}

	sb.WriteString("Context:\n")
	fmt.Fprintf(&sb, "- Company: %s (%s)\n", name, f.Ticker)
	fmt.Fprintf(&sb, "- Filing: %s for %s %d\n", f.FilingType, f.FiscalPeriod, f.FiscalYear)
	fmt.Fprintf(&sb, "- Filing date: %s\n\n", f.FilingDate.Format(time.DateOnly))

	sb.WriteString("Filing sections:\n\n")
	for i, s := range sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "### %s\n%s", s.Title, clip(s.Text, perSectionPromptLimit))
	}
	sb.WriteString("\n\n")

	if typ == model.AnalysisDeep {
		sb.WriteString(deepTask)
	} else {
		sb.WriteString(quickTask)
	}
	return sb.String()
}
