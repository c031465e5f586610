// Package render turns an analysis into the blog page and email bodies
// that the generate stage stores.
package render

import (
	"bytes"
	"embed"
	"html"
	"html/template"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tenkay/filing-pipeline/internal/model"
)

// Placeholders left in email bodies, filled per recipient by Personalize.
const (
	FirstNamePlaceholder      = "{{first_name}}"
	UnsubscribeURLPlaceholder = "{{unsubscribe_url}}"
)

// Sentinels survive both template escaping and markdown escaping.
const (
	firstNameSentinel   = "TKFIRSTNAME"
	unsubscribeSentinel = "TKUNSUBSCRIBEURL"
)

const wordsPerMinute = 200

//go:embed templates/*.tmpl
var templateFS embed.FS

// Options configures a Renderer.
type Options struct {
	// SiteURL prefixes blog links in emails. Empty omits the link.
	SiteURL string
}

// Renderer produces the generated artifacts for a content record. It is
// safe for concurrent use.
type Renderer struct {
	blog  *template.Template
	email *template.Template
	md    *converter.Converter
	opts  Options
}

// New parses the embedded templates.
func New(opts Options) (*Renderer, error) {
	blog, err := template.ParseFS(templateFS, "templates/blog.html.tmpl")
	if err != nil {
		return nil, eris.Wrap(err, "render: parse blog template")
	}
	email, err := template.ParseFS(templateFS, "templates/email.html.tmpl")
	if err != nil {
		return nil, eris.Wrap(err, "render: parse email template")
	}
	md := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
	opts.SiteURL = strings.TrimRight(opts.SiteURL, "/")
	return &Renderer{blog: blog, email: email, md: md, opts: opts}, nil
}

type metric struct {
	Label string
	Value string
}

type sectionView struct {
	Anchor     string
	Title      string
	Paragraphs []string
}

type pageData struct {
	Headline       string
	Summary        string
	CompanyName    string
	Ticker         string
	FilingType     string
	Period         string
	FiscalYear     int
	FilingDate     string
	Sentiment      string
	SentimentLabel string
	ReadingMinutes int
	KeyPoints      []string
	Metrics        []metric
	Intro          []string
	Sections       []sectionView
	RiskFactors    []string
	Opportunities  []string
	Conclusion     []string
	BlogURL        string
	FirstName      string
	UnsubscribeURL string
}

// Render builds the blog HTML, email HTML and plain-text email for v.
func (r *Renderer) Render(v model.ContentView) (model.Rendered, error) {
	a := v.Analysis
	words := WordCount(a)
	d := pageData{
		Headline:       a.Headline,
		Summary:        firstParagraph(a.Intro),
		CompanyName:    firstNonEmpty(v.Filing.CompanyName, v.Filing.Ticker),
		Ticker:         v.Filing.Ticker,
		FilingType:     string(v.Filing.FilingType),
		Period:         string(v.Filing.FiscalPeriod),
		FiscalYear:     v.Filing.FiscalYear,
		FilingDate:     v.Filing.FilingDate.Format(time.DateOnly),
		Sentiment:      a.Sentiment(),
		SentimentLabel: SentimentLabel(a.SentimentScore),
		ReadingMinutes: ReadingMinutes(words),
		KeyPoints:      a.KeyPoints,
		Metrics:        metrics(a.KeyMetrics),
		Intro:          paragraphs(a.Intro),
		RiskFactors:    a.RiskFactors,
		Opportunities:  a.Opportunities,
		Conclusion:     paragraphs(a.Conclusion),
		FirstName:      firstNameSentinel,
		UnsubscribeURL: unsubscribeSentinel,
	}
	seen := map[string]int{}
	for _, s := range a.Sections {
		d.Sections = append(d.Sections, sectionView{
			Anchor:     anchor(s.Title, seen),
			Title:      s.Title,
			Paragraphs: paragraphs(s.Content),
		})
	}
	if r.opts.SiteURL != "" && v.Filing.AccessionNumber != "" {
		d.BlogURL = r.opts.SiteURL + "/filings/" + strings.ToLower(v.Filing.Ticker) + "/" + v.Filing.AccessionNumber
	}

	var blog, email bytes.Buffer
	if err := r.blog.Execute(&blog, d); err != nil {
		return model.Rendered{}, eris.Wrap(err, "render: blog")
	}
	if err := r.email.Execute(&email, d); err != nil {
		return model.Rendered{}, eris.Wrap(err, "render: email")
	}
	text, err := r.md.ConvertString(email.String())
	if err != nil {
		return model.Rendered{}, eris.Wrap(err, "render: email text")
	}

	return model.Rendered{
		BlogHTML:       blog.String(),
		EmailHTML:      fillSentinels(email.String()),
		EmailText:      fillSentinels(strings.TrimSpace(text)),
		WordCount:      words,
		ReadingMinutes: d.ReadingMinutes,
	}, nil
}

// Personalize fills the recipient placeholders of an email body. HTML
// bodies get escaped values.
func Personalize(body string, s model.Subscriber, unsubscribeURL string, isHTML bool) string {
	name := s.DisplayName()
	if isHTML {
		name = html.EscapeString(name)
		unsubscribeURL = html.EscapeString(unsubscribeURL)
	}
	return strings.NewReplacer(
		FirstNamePlaceholder, name,
		UnsubscribeURLPlaceholder, unsubscribeURL,
	).Replace(body)
}

// SentimentLabel renders a sentiment score for readers.
func SentimentLabel(score float64) string {
	switch {
	case score > 0.2:
		return "Positive"
	case score < -0.2:
		return "Negative"
	default:
		return "Neutral"
	}
}

// WordCount counts the words of every prose field in a.
func WordCount(a model.Analysis) int {
	n := len(strings.Fields(a.Headline)) + len(strings.Fields(a.Intro)) + len(strings.Fields(a.Conclusion))
	for _, s := range a.Sections {
		n += len(strings.Fields(s.Title)) + len(strings.Fields(s.Content))
	}
	for _, l := range [][]string{a.KeyPoints, a.RiskFactors, a.Opportunities} {
		for _, s := range l {
			n += len(strings.Fields(s))
		}
	}
	return n
}

// ReadingMinutes is the reading time at 200 words per minute, at least one.
func ReadingMinutes(words int) int {
	return max(1, int(math.Ceil(float64(words)/wordsPerMinute)))
}

// MetricLabel turns a metric key such as "growth_rate" into "Growth Rate".
func MetricLabel(key string) string {
	// Casers carry state; one per call keeps Render goroutine-safe.
	return cases.Title(language.English).String(strings.ReplaceAll(key, "_", " "))
}

func metrics(m map[string]string) []metric {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]metric, 0, len(keys))
	for _, k := range keys {
		out = append(out, metric{Label: MetricLabel(k), Value: m[k]})
	}
	return out
}

var paraSplitRe = regexp.MustCompile(`\n\s*\n|\n`)

func paragraphs(s string) []string {
	var out []string
	for _, p := range paraSplitRe.Split(s, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstParagraph(s string) string {
	if p := paragraphs(s); len(p) > 0 {
		return p[0]
	}
	return ""
}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

func anchor(title string, seen map[string]int) string {
	a := strings.Trim(nonSlugRe.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if a == "" {
		a = "section"
	}
	seen[a]++
	if n := seen[a]; n > 1 {
		return a + "-" + strconv.Itoa(n)
	}
	return a
}

func fillSentinels(s string) string {
	return strings.NewReplacer(
		firstNameSentinel, FirstNamePlaceholder,
		unsubscribeSentinel, UnsubscribeURLPlaceholder,
	).Replace(s)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
