package analyzer

import (
	"regexp"
	"strings"
)

// Section is an excerpt of a filing that goes into the prompt.
type Section struct {
	Name  string
	Title string
	Text  string
}

type sectionRule struct {
	name  string
	title string
	re    *regexp.Regexp
	limit int
}

// Item headings differ between 10-K (Items 1, 1A, 7, 8) and 10-Q (Part I
// Items 1, 2; Part II Item 1A); each rule accepts both numbering schemes
// and ends at the next item heading.
var sectionRules = []sectionRule{
	{
		name: "business", title: "Business", limit: 10000,
		re: regexp.MustCompile(`(?is)item\s+1[^a\d].{0,50}?business(.*?)(?:item\s+1a|item\s+2)`),
	},
	{
		name: "risk_factors", title: "Risk Factors", limit: 15000,
		re: regexp.MustCompile(`(?is)item\s+1a.{0,50}?risk\s+factors(.*?)(?:item\s+1b|item\s+2)`),
	},
	{
		name: "md_and_a", title: "Management's Discussion and Analysis", limit: 20000,
		re: regexp.MustCompile(`(?is)item\s+(?:7|2).{0,100}?management.?s\s+discussion\s+and\s+analysis(.*?)(?:item\s+7a|item\s+8|item\s+3)`),
	},
	{
		name: "financial_statements", title: "Financial Statements", limit: 15000,
		re: regexp.MustCompile(`(?is)item\s+(?:8|1[^a\d]).{0,100}?financial\s+statements(.*?)(?:item\s+9|item\s+2)`),
	},
}

const fullTextLimit = 30000

// ExtractSections pulls the business, risk, MD&A and financial statement
// sections out of plain filing text. A heading usually appears twice, once
// in the table of contents; the longest match is the real section. When
// nothing matches, the head of the document is returned as a single
// full-text section.
func ExtractSections(text string) []Section {
	var out []Section
	for _, r := range sectionRules {
		best := ""
		for _, m := range r.re.FindAllStringSubmatch(text, -1) {
			if len(m[1]) > len(best) {
				best = m[1]
			}
		}
		best = strings.TrimSpace(best)
		if best == "" {
			continue
		}
		out = append(out, Section{Name: r.name, Title: r.title, Text: clip(best, r.limit)})
	}
	if len(out) == 0 && text != "" {
		out = append(out, Section{Name: "full_text", Title: "Full Text", Text: clip(text, fullTextLimit)})
	}
	return out
}
