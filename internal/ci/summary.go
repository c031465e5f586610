// Package ci writes machine-readable run summaries for CI job pages.
package ci

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tenkay/filing-pipeline/internal/pipeline"
)

// FormatSummary renders a batch result as the markdown key/value block
// that workflow steps append to the job summary. The line shapes are
// stable; scripts grep them.
func FormatSummary(r *pipeline.BatchResult, completed time.Time) string {
	var sb strings.Builder

	mode := "live"
	if r.DryRun {
		mode = "dry run"
	}

	fmt.Fprintf(&sb, "**%s Summary**\n\n", title(r.Stage))
	fmt.Fprintf(&sb, "- **Mode**: %s\n", mode)
	fmt.Fprintf(&sb, "- **Total**: %d\n", r.Total)
	fmt.Fprintf(&sb, "- **Succeeded**: %d\n", r.Succeeded)
	fmt.Fprintf(&sb, "- **Failed**: %d\n", r.Failed)
	fmt.Fprintf(&sb, "- **Skipped**: %d\n", r.Skipped)
	fmt.Fprintf(&sb, "- **Success rate**: %s\n", r.RateString())
	fmt.Fprintf(&sb, "- **Completed**: %s\n", completed.UTC().Format(time.RFC3339))

	if failures := r.Failures(); len(failures) > 0 {
		sb.WriteString("\n| Unit | Error |\n")
		sb.WriteString("|:-----|:------|\n")
		for _, f := range failures {
			fmt.Fprintf(&sb, "| `%s` | %s |\n", f.UnitID, strings.ReplaceAll(f.Message, "|", "\\|"))
		}
	}

	return sb.String()
}

// FormatReport renders every phase of an orchestrated run.
func FormatReport(r *pipeline.Report, completed time.Time) string {
	var sb strings.Builder

	sb.WriteString("**Orchestration Summary**\n\n")
	sb.WriteString("| Phase | State | Total | Succeeded | Failed | Skipped | Success rate |\n")
	sb.WriteString("|:------|:------|------:|----------:|-------:|--------:|-------------:|\n")
	for _, p := range r.Phases {
		if p.Result == nil {
			fmt.Fprintf(&sb, "| %s | %s | - | - | - | - | - |\n", p.Name, p.State)
			continue
		}
		res := p.Result
		fmt.Fprintf(&sb, "| %s | %s | %d | %d | %d | %d | %s |\n",
			p.Name, p.State, res.Total, res.Succeeded, res.Failed, res.Skipped, res.RateString())
	}
	fmt.Fprintf(&sb, "\n- **Elapsed**: %s\n", r.Elapsed.Round(time.Second))
	fmt.Fprintf(&sb, "- **Completed**: %s\n", completed.UTC().Format(time.RFC3339))

	return sb.String()
}

// WriteSummary writes FormatSummary output to path.
func WriteSummary(path string, r *pipeline.BatchResult) error {
	return writeFile(path, FormatSummary(r, time.Now()))
}

// WriteReport writes FormatReport output to path.
func WriteReport(path string, r *pipeline.Report) error {
	return writeFile(path, FormatReport(r, time.Now()))
}

func writeFile(path, body string) error {
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return eris.Wrapf(err, "ci: write summary %s", path)
	}
	return nil
}

func title(stage string) string {
	if stage == "" {
		return "Batch"
	}
	return strings.ToUpper(stage[:1]) + stage[1:]
}
