package stages

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/tenkay/filing-pipeline/internal/analyzer"
	"github.com/tenkay/filing-pipeline/internal/blob"
	"github.com/tenkay/filing-pipeline/internal/edgar"
	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/pipeline"
	"github.com/tenkay/filing-pipeline/internal/resilience"
	"github.com/tenkay/filing-pipeline/internal/store"
	"github.com/tenkay/filing-pipeline/pkg/anthropic"
	"github.com/tenkay/filing-pipeline/pkg/resend"
)

type env struct {
	store *store.SQLiteStore
	blobs *blob.FileStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	st, err := store.NewSQLite(filepath.Join(dir, "pipeline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	blobs, err := blob.NewFileStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)
	return &env{store: st, blobs: blobs}
}

func (e *env) company(t *testing.T, ticker, cik string) model.Company {
	t.Helper()
	c := model.Company{Ticker: ticker, CIK: cik, Name: ticker + " Corp", Enabled: true}
	require.NoError(t, e.store.UpsertCompany(context.Background(), &c))
	return c
}

// filing stores a pending filing with a raw document in blob storage.
func (e *env) filing(t *testing.T, c model.Company, accession string, filed time.Time) model.Filing {
	t.Helper()
	ctx := context.Background()
	f := model.Filing{
		CompanyID:       c.ID,
		Ticker:          c.Ticker,
		FilingType:      model.Filing10K,
		FilingDate:      filed,
		FiscalYear:      filed.Year(),
		FiscalPeriod:    model.PeriodFY,
		AccessionNumber: accession,
		DocumentURL:     "https://www.sec.gov/Archives/edgar/data/1/" + accession + ".txt",
	}
	url, err := e.blobs.Put(ctx, blob.FilingKey(&f, "txt"), []byte(filingText), "text/plain")
	require.NoError(t, err)
	f.RawDocumentURL = url
	created, err := e.store.CreateFiling(ctx, &f)
	require.NoError(t, err)
	require.True(t, created)
	return f
}

func (e *env) analyzed(t *testing.T, f model.Filing) model.Content {
	t.Helper()
	c := model.Content{FilingID: f.ID, AnalysisType: model.AnalysisQuick, Analysis: testAnalysis()}
	created, err := e.store.SaveAnalysis(context.Background(), &c)
	require.NoError(t, err)
	require.True(t, created)
	return c
}

func (e *env) subscriber(t *testing.T, email, name string, tier model.Tier) model.Subscriber {
	t.Helper()
	s := model.Subscriber{Email: email, FirstName: name, Tier: tier, Enabled: true}
	require.NoError(t, e.store.UpsertSubscriber(context.Background(), &s))
	return s
}

func (e *env) status(t *testing.T, filingID string) model.FilingStatus {
	t.Helper()
	f, err := e.store.GetFiling(context.Background(), filingID)
	require.NoError(t, err)
	return f.Status
}

func runBatch[U pipeline.Unit, R any](t *testing.T, s pipeline.Stage[U, R], limit, workers int, dry bool) *pipeline.BatchResult {
	t.Helper()
	res, err := pipeline.NewBatchRunner(s, pipeline.BatchOptions{Concurrency: workers, DryRun: dry}).Run(context.Background(), limit)
	require.NoError(t, err)
	return res
}

var filingText = "<SEC-DOCUMENT>Item 1. Business " + strings.Repeat("Acme makes widgets. ", 60) + "</SEC-DOCUMENT>"

func testAnalysis() model.Analysis {
	return model.Analysis{
		Headline:       "Acme widget sales climb",
		Intro:          "Revenue grew.",
		KeyPoints:      []string{"Revenue up"},
		KeyMetrics:     map[string]string{"revenue": "$1B"},
		SentimentScore: 0.4,
	}
}

// fakeEdgar serves canned listings per ticker.
type fakeEdgar struct {
	mu        sync.Mutex
	ciks      map[string]string
	listings  map[string][]edgar.Listing
	listErr   map[string]error
	downloads int
}

func (f *fakeEdgar) LookupCIK(_ context.Context, ticker string) (string, error) {
	if cik, ok := f.ciks[ticker]; ok {
		return cik, nil
	}
	return "", edgar.ErrTickerNotFound
}

func (f *fakeEdgar) ListFilings(_ context.Context, ticker, cik string, form model.FilingType, limit int) ([]edgar.Listing, error) {
	if err := f.listErr[ticker]; err != nil {
		return nil, err
	}
	var out []edgar.Listing
	for _, l := range f.listings[ticker] {
		if l.FilingType == form && len(out) < limit {
			l.CIK = cik
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeEdgar) Download(_ context.Context, l edgar.Listing) (edgar.Document, error) {
	f.mu.Lock()
	f.downloads++
	f.mu.Unlock()
	return edgar.Document{Body: []byte(filingText), URL: "https://sec.test/" + l.AccessionNumber + ".txt", Ext: "txt"}, nil
}

func listing(ticker, accession string, form model.FilingType, filed time.Time) edgar.Listing {
	return edgar.Listing{
		Ticker:          ticker,
		FilingType:      form,
		FilingDate:      filed,
		FiscalYear:      filed.Year(),
		FiscalPeriod:    model.FiscalPeriodFor(form, filed),
		AccessionNumber: accession,
		IndexURL:        "https://sec.test/" + accession + "-index.htm",
	}
}

// fakeAnalyzer returns a fixed analysis or a fixed error.
type fakeAnalyzer struct {
	err   error
	mu    sync.Mutex
	calls int
}

func (f *fakeAnalyzer) Analyze(_ context.Context, in analyzer.Input) (*analyzer.Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(in.Document) == 0 {
		return nil, eris.New("empty document")
	}
	return &analyzer.Result{Analysis: testAnalysis(), Model: "test-model", Usage: anthropic.TokenUsage{InputTokens: 10}}, nil
}

// fakeMailer records sent emails; failFor makes sends to an address fail.
type fakeMailer struct {
	mu      sync.Mutex
	sent    []resend.Email
	failFor map[string]error
}

func (f *fakeMailer) Send(_ context.Context, e resend.Email) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[e.To[0]]; err != nil {
		return "", err
	}
	f.sent = append(f.sent, e)
	return "em_" + e.To[0], nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1}
}
