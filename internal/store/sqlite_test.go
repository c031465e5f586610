package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenkay/filing-pipeline/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedCompany(t *testing.T, st Store, ticker string) *model.Company {
	t.Helper()
	c := &model.Company{Ticker: ticker, Name: ticker + " Inc.", Enabled: true}
	require.NoError(t, st.UpsertCompany(context.Background(), c))
	return c
}

func seedFiling(t *testing.T, st Store, c *model.Company, accession string, filed time.Time) *model.Filing {
	t.Helper()
	f := &model.Filing{
		CompanyID:       c.ID,
		FilingType:      model.Filing10K,
		FilingDate:      filed,
		FiscalYear:      filed.Year(),
		FiscalPeriod:    model.PeriodFY,
		AccessionNumber: accession,
		DocumentURL:     "https://www.sec.gov/Archives/" + accession + ".txt",
	}
	created, err := st.CreateFiling(context.Background(), f)
	require.NoError(t, err)
	require.True(t, created)
	return f
}

func seedAnalysis(t *testing.T, st Store, f *model.Filing) *model.Content {
	t.Helper()
	c := &model.Content{
		FilingID:     f.ID,
		AnalysisType: model.AnalysisQuick,
		Analysis:     model.Analysis{Headline: "Strong year", SentimentScore: 0.4},
	}
	created, err := st.SaveAnalysis(context.Background(), c)
	require.NoError(t, err)
	require.True(t, created)
	return c
}

func day(d int) time.Time { return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC) }

func TestSQLite_UpsertCompany_KeepsCIK(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := &model.Company{Ticker: "AAPL", CIK: "0000320193", Name: "Apple", Enabled: true}
	require.NoError(t, st.UpsertCompany(ctx, c))
	id := c.ID

	again := &model.Company{Ticker: "AAPL", Name: "Apple Inc.", Enabled: false}
	require.NoError(t, st.UpsertCompany(ctx, again))
	assert.Equal(t, id, again.ID)

	all, err := st.ListCompanies(ctx, false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "0000320193", all[0].CIK)
	assert.Equal(t, "Apple Inc.", all[0].Name)
	assert.False(t, all[0].Enabled)

	enabled, err := st.ListCompanies(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, enabled)
}

func TestSQLite_CreateFiling_ConditionalInsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedCompany(t, st, "MSFT")
	seedFiling(t, st, c, "0000789019-24-000001", day(1))

	exists, err := st.FilingExists(ctx, "0000789019-24-000001")
	require.NoError(t, err)
	assert.True(t, exists)

	dup := &model.Filing{
		CompanyID: c.ID, FilingType: model.Filing10K, FilingDate: day(1),
		FiscalYear: 2024, FiscalPeriod: model.PeriodFY, AccessionNumber: "0000789019-24-000001",
	}
	created, err := st.CreateFiling(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created, "second insert of the same accession must lose")

	got, err := st.GetFilingByAccession(ctx, "0000789019-24-000001")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", got.Ticker)
	assert.Equal(t, model.FilingPending, got.Status)
	assert.True(t, got.FilingDate.Equal(day(1)))
}

func TestSQLite_GetFiling_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.GetFiling(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_AnalyzeCandidates_NewestFirstWithoutContent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedCompany(t, st, "NVDA")
	older := seedFiling(t, st, c, "acc-1", day(1))
	newer := seedFiling(t, st, c, "acc-2", day(5))
	done := seedFiling(t, st, c, "acc-3", day(9))
	seedAnalysis(t, st, done)

	got, err := st.ListAnalyzeCandidates(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)

	limited, err := st.ListAnalyzeCandidates(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestSQLite_SaveAnalysis_SecondWriterLoses(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedCompany(t, st, "AMD")
	f := seedFiling(t, st, c, "acc-1", day(1))
	seedAnalysis(t, st, f)

	created, err := st.SaveAnalysis(ctx, &model.Content{FilingID: f.ID, AnalysisType: model.AnalysisDeep})
	require.NoError(t, err)
	assert.False(t, created)

	exists, err := st.ContentExists(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	got, err := st.GetFiling(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FilingAnalyzed, got.Status)
}

func TestSQLite_AdvanceFiling_RejectsRegression(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	c := seedCompany(t, st, "IBM")
	f := seedFiling(t, st, c, "acc-1", day(1))

	require.NoError(t, st.AdvanceFiling(ctx, f.ID, model.FilingAnalyzed, ""))
	require.NoError(t, st.AdvanceFiling(ctx, f.ID, model.FilingAnalyzed, ""), "same state is idempotent")

	err := st.AdvanceFiling(ctx, f.ID, model.FilingPending, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, st.AdvanceFiling(ctx, f.ID, model.FilingFailed, "parse error"))
	err = st.AdvanceFiling(ctx, f.ID, model.FilingGenerated, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := st.GetFiling(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FilingFailed, got.Status)
	assert.Equal(t, "parse error", got.ErrorMessage)

	err = st.AdvanceFiling(ctx, "missing", model.FilingAnalyzed, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLite_GenerateAndPublishFlow(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	co := seedCompany(t, st, "ORCL")
	f := seedFiling(t, st, co, "acc-1", day(1))
	content := seedAnalysis(t, st, f)

	gen, err := st.ListGenerateCandidates(ctx, 10)
	require.NoError(t, err)
	require.Len(t, gen, 1)
	assert.Equal(t, "Strong year", gen[0].Analysis.Headline)

	pub, err := st.ListPublishCandidates(ctx, model.ChannelEmail, 10)
	require.NoError(t, err)
	assert.Empty(t, pub, "unrendered content is not publishable")

	require.NoError(t, st.SaveRendered(ctx, content.ID, model.Rendered{
		BlogHTML: "<h1>blog</h1>", EmailHTML: "<p>email</p>", EmailText: "email", WordCount: 400, ReadingMinutes: 2,
	}))

	view, err := st.GetContent(ctx, content.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ContentRendered, view.State())
	assert.Equal(t, "ORCL", view.Filing.Ticker)
	assert.Equal(t, model.FilingGenerated, view.Filing.Status)

	gen, err = st.ListGenerateCandidates(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, gen)

	pub, err = st.ListPublishCandidates(ctx, model.ChannelEmail, 10)
	require.NoError(t, err)
	require.Len(t, pub, 1)

	d := &model.Delivery{ContentID: content.ID, Channel: model.ChannelEmail}
	claimed, err := st.ClaimDelivery(ctx, d)
	require.NoError(t, err)
	require.True(t, claimed)

	again, err := st.ClaimDelivery(ctx, &model.Delivery{ContentID: content.ID, Channel: model.ChannelEmail})
	require.NoError(t, err)
	assert.False(t, again, "a sending claim blocks other claimants")

	d.Status = model.DeliverySent
	d.Recipients, d.SentCount = 2, 2
	d.ProviderIDs = []string{"e1", "e2"}
	require.NoError(t, st.CompleteDelivery(ctx, d))

	done, err := st.DeliveryExists(ctx, content.ID, model.ChannelEmail)
	require.NoError(t, err)
	assert.True(t, done)

	pub, err = st.ListPublishCandidates(ctx, model.ChannelEmail, 10)
	require.NoError(t, err)
	assert.Empty(t, pub)

	got, err := st.GetFiling(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FilingPublished, got.Status)

	p, err := st.PublishProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Progress{Done: 1, Total: 1}, p)
}

func TestSQLite_ClaimDelivery_ReclaimsFailed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	co := seedCompany(t, st, "INTC")
	f := seedFiling(t, st, co, "acc-1", day(1))
	content := seedAnalysis(t, st, f)

	d := &model.Delivery{ContentID: content.ID, Channel: model.ChannelEmail}
	claimed, err := st.ClaimDelivery(ctx, d)
	require.NoError(t, err)
	require.True(t, claimed)

	d.Status = model.DeliveryFailed
	d.ErrorMessage = "provider down"
	require.NoError(t, st.CompleteDelivery(ctx, d))

	retry := &model.Delivery{ContentID: content.ID, Channel: model.ChannelEmail}
	claimed, err = st.ClaimDelivery(ctx, retry)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, d.ID, retry.ID, "reclaim reuses the existing row")
}

func TestSQLite_Progress(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	co := seedCompany(t, st, "TSLA")
	for i, acc := range []string{"a", "b", "c", "d"} {
		f := seedFiling(t, st, co, acc, day(i+1))
		if i == 0 {
			seedAnalysis(t, st, f)
		}
	}

	p, err := st.AnalyzeProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Progress{Done: 1, Total: 4}, p)

	g, err := st.GenerateProgress(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Progress{Done: 0, Total: 1}, g)

	counts, err := st.CountFilingsByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[model.FilingPending])
	assert.Equal(t, 1, counts[model.FilingAnalyzed])
}

func TestSQLite_ListFilings_Filter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	a := seedCompany(t, st, "AAA")
	b := seedCompany(t, st, "BBB")
	seedFiling(t, st, a, "a1", day(1))
	seedFiling(t, st, a, "a2", day(2))
	fb := seedFiling(t, st, b, "b1", day(3))
	require.NoError(t, st.AdvanceFiling(ctx, fb.ID, model.FilingFailed, "boom"))

	got, err := st.ListFilings(ctx, FilingFilter{Ticker: "AAA"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = st.ListFilings(ctx, FilingFilter{Status: model.FilingFailed})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].AccessionNumber)

	got, err = st.ListFilings(ctx, FilingFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a2", got[0].AccessionNumber)
}

func TestSQLite_DeleteFiling_RemovesDerived(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	co := seedCompany(t, st, "META")
	f := seedFiling(t, st, co, "acc-1", day(1))
	seedAnalysis(t, st, f)

	require.NoError(t, st.DeleteFiling(ctx, f.ID))

	exists, err := st.ContentExists(ctx, f.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = st.FilingExists(ctx, "acc-1")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, st.DeleteFiling(ctx, f.ID), ErrNotFound)
}

func TestSQLite_Subscribers(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertSubscriber(ctx, &model.Subscriber{Email: "a@x.com", Tier: model.TierFree, Enabled: true}))
	require.NoError(t, st.UpsertSubscriber(ctx, &model.Subscriber{Email: "b@x.com", Tier: model.TierPaid, Enabled: true}))
	require.NoError(t, st.UpsertSubscriber(ctx, &model.Subscriber{Email: "c@x.com", Tier: model.TierPaid, Enabled: false}))

	all, err := st.ListSubscribers(ctx, model.TierAll)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	paid, err := st.ListSubscribers(ctx, model.TierPaid)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	assert.Equal(t, "b@x.com", paid[0].Email)
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}
