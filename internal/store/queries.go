package store

import (
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"

	"github.com/tenkay/filing-pipeline/internal/model"
)

// Both backends share query shapes; only the placeholder style differs.
var (
	pgSQL   = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	liteSQL = sq.StatementBuilder.PlaceholderFormat(sq.Question)
)

var filingColumns = []string{
	"f.id", "f.company_id", "c.ticker", "c.name", "f.filing_type", "f.filing_date",
	"f.fiscal_year", "f.fiscal_period", "f.accession_number", "f.document_url",
	"f.raw_document_url", "f.status", "f.error_message", "f.created_at", "f.updated_at",
}

var contentColumns = []string{
	"ct.id", "ct.filing_id", "ct.analysis_type", "ct.analysis", "ct.blog_html",
	"ct.email_html", "ct.email_text", "ct.word_count", "ct.reading_minutes",
	"ct.published_at", "ct.created_at", "ct.updated_at",
}

func selectFilings(b sq.StatementBuilderType) sq.SelectBuilder {
	return b.Select(filingColumns...).
		From("filings f").
		Join("companies c ON c.id = f.company_id")
}

func withLimit(q sq.SelectBuilder, limit int) sq.SelectBuilder {
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return q
}

func listFilingsQuery(b sq.StatementBuilderType, f FilingFilter) (string, []any, error) {
	q := selectFilings(b)
	if f.Status != "" {
		q = q.Where(sq.Eq{"f.status": string(f.Status)})
	}
	if f.Ticker != "" {
		q = q.Where(sq.Eq{"c.ticker": f.Ticker})
	}
	if f.FilingType != "" {
		q = q.Where(sq.Eq{"f.filing_type": string(f.FilingType)})
	}
	q = q.OrderBy("f.filing_date DESC", "f.created_at DESC")
	q = withLimit(q, f.Limit)
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q.ToSql()
}

func analyzeCandidatesQuery(b sq.StatementBuilderType, limit int) (string, []any, error) {
	q := selectFilings(b).
		Where(sq.Eq{"f.status": string(model.FilingPending)}).
		Where("NOT EXISTS (SELECT 1 FROM content ct WHERE ct.filing_id = f.id)").
		OrderBy("f.filing_date DESC", "f.created_at DESC")
	return withLimit(q, limit).ToSql()
}

func selectContent(b sq.StatementBuilderType, extra ...string) sq.SelectBuilder {
	return b.Select(append(append([]string{}, contentColumns...), extra...)...).
		From("content ct").
		Join("filings f ON f.id = ct.filing_id")
}

func generateCandidatesQuery(b sq.StatementBuilderType, limit int) (string, []any, error) {
	q := selectContent(b).
		Where("(ct.blog_html IS NULL OR ct.email_html IS NULL)").
		Where(sq.NotEq{"f.status": string(model.FilingFailed)}).
		OrderBy("ct.created_at DESC")
	return withLimit(q, limit).ToSql()
}

func publishCandidatesQuery(b sq.StatementBuilderType, channel model.Channel, limit int) (string, []any, error) {
	q := selectContent(b).
		Where("ct.email_html IS NOT NULL").
		Where(sq.NotEq{"f.status": string(model.FilingFailed)}).
		Where("NOT EXISTS (SELECT 1 FROM deliveries d WHERE d.content_id = ct.id AND d.channel = ? AND d.status = ?)",
			string(channel), string(model.DeliverySent)).
		OrderBy("ct.created_at DESC")
	return withLimit(q, limit).ToSql()
}

func contentViewQuery(b sq.StatementBuilderType, id string) (string, []any, error) {
	return selectContent(b, filingColumns...).
		Join("companies c ON c.id = f.company_id").
		Where(sq.Eq{"ct.id": id}).
		ToSql()
}

// advanceFilingQuery expresses a status transition as a conditional update
// so a concurrent writer can never regress the row.
func advanceFilingQuery(b sq.StatementBuilderType, id string, to model.FilingStatus, errMsg string, now time.Time) (string, []any, error) {
	return b.Update("filings").
		Set("status", string(to)).
		Set("error_message", errMsg).
		Set("updated_at", now).
		Where(sq.Eq{"id": id}).
		Where(sq.Eq{"status": model.StatusStrings(model.Predecessors(to))}).
		ToSql()
}

const analyzeProgressSQL = `SELECT COUNT(*),
	COALESCE(SUM(CASE WHEN EXISTS (SELECT 1 FROM content ct WHERE ct.filing_id = f.id) THEN 1 ELSE 0 END), 0)
FROM filings f`

const generateProgressSQL = `SELECT COUNT(*),
	COALESCE(SUM(CASE WHEN blog_html IS NOT NULL AND email_html IS NOT NULL THEN 1 ELSE 0 END), 0)
FROM content`

const publishProgressSQL = `SELECT COUNT(*),
	COALESCE(SUM(CASE WHEN published_at IS NOT NULL THEN 1 ELSE 0 END), 0)
FROM content WHERE email_html IS NOT NULL`

const countByStatusSQL = `SELECT status, COUNT(*) FROM filings GROUP BY status`

type scannable interface {
	Scan(dest ...any) error
}

func scanFiling(row scannable) (*model.Filing, error) {
	var f model.Filing
	if err := row.Scan(filingDest(&f)...); err != nil {
		return nil, err
	}
	return &f, nil
}

func filingDest(f *model.Filing) []any {
	return []any{
		&f.ID, &f.CompanyID, &f.Ticker, &f.CompanyName, &f.FilingType, &f.FilingDate,
		&f.FiscalYear, &f.FiscalPeriod, &f.AccessionNumber, &f.DocumentURL,
		&f.RawDocumentURL, &f.Status, &f.ErrorMessage, &f.CreatedAt, &f.UpdatedAt,
	}
}

// contentRow carries the nullable and encoded columns of a content scan.
type contentRow struct {
	c         model.Content
	analysis  []byte
	blogHTML  *string
	emailHTML *string
	emailText *string
}

func (r *contentRow) dest() []any {
	return []any{
		&r.c.ID, &r.c.FilingID, &r.c.AnalysisType, &r.analysis, &r.blogHTML,
		&r.emailHTML, &r.emailText, &r.c.WordCount, &r.c.ReadingMinutes,
		&r.c.PublishedAt, &r.c.CreatedAt, &r.c.UpdatedAt,
	}
}

func (r *contentRow) finish() (*model.Content, error) {
	if err := json.Unmarshal(r.analysis, &r.c.Analysis); err != nil {
		return nil, eris.Wrap(err, "unmarshal analysis")
	}
	if r.blogHTML != nil {
		r.c.BlogHTML = *r.blogHTML
	}
	if r.emailHTML != nil {
		r.c.EmailHTML = *r.emailHTML
	}
	if r.emailText != nil {
		r.c.EmailText = *r.emailText
	}
	return &r.c, nil
}

func scanContent(row scannable) (*model.Content, error) {
	var r contentRow
	if err := row.Scan(r.dest()...); err != nil {
		return nil, err
	}
	return r.finish()
}

func scanContentView(row scannable) (*model.ContentView, error) {
	var (
		r contentRow
		v model.ContentView
	)
	if err := row.Scan(append(r.dest(), filingDest(&v.Filing)...)...); err != nil {
		return nil, err
	}
	c, err := r.finish()
	if err != nil {
		return nil, err
	}
	v.Content = *c
	return &v, nil
}

func marshalProviderIDs(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	return b, eris.Wrap(err, "marshal provider ids")
}
