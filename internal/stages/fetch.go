package stages

import (
	"context"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenkay/filing-pipeline/internal/blob"
	"github.com/tenkay/filing-pipeline/internal/edgar"
	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/pipeline"
	"github.com/tenkay/filing-pipeline/internal/store"
)

// Filings is the EDGAR surface the fetch stage needs. *edgar.Client
// implements it.
type Filings interface {
	LookupCIK(ctx context.Context, ticker string) (string, error)
	ListFilings(ctx context.Context, ticker, cik string, form model.FilingType, limit int) ([]edgar.Listing, error)
	Download(ctx context.Context, l edgar.Listing) (edgar.Document, error)
}

// Listing is a fetch work unit: one filing known to EDGAR, not yet
// necessarily stored.
type Listing struct {
	edgar.Listing
	Company model.Company
}

// Key implements pipeline.Unit.
func (l Listing) Key() string { return l.AccessionNumber }

// Downloaded is the result of processing a Listing.
type Downloaded struct {
	DocumentURL string
	BlobURL     string
}

// FetchOptions selects which filings the fetch stage looks for.
type FetchOptions struct {
	// Tickers restricts the run to these companies. Empty means every
	// enabled company.
	Tickers []string
	Forms   []model.FilingType
	// PerCompany caps the listings requested per company and form.
	PerCompany int
	// Refetch disables the skip for filings already stored. A refetch
	// still never duplicates a filing row.
	Refetch bool
}

// FetchStage discovers new filings and stores their raw documents.
type FetchStage struct {
	store store.Store
	edgar Filings
	blobs blob.Store
	opts  FetchOptions
	done  pipeline.Guard
}

var (
	_ pipeline.Stage[Listing, Downloaded] = (*FetchStage)(nil)
	_ pipeline.Validator[Listing]         = (*FetchStage)(nil)
)

// NewFetchStage creates the fetch stage.
func NewFetchStage(st store.Store, ed Filings, blobs blob.Store, opts FetchOptions) *FetchStage {
	if len(opts.Forms) == 0 {
		opts.Forms = []model.FilingType{model.Filing10K, model.Filing10Q}
	}
	if opts.PerCompany <= 0 {
		opts.PerCompany = 4
	}
	return &FetchStage{
		store: st, edgar: ed, blobs: blobs, opts: opts,
		done: pipeline.GuardFunc(st.FilingExists),
	}
}

// Name implements pipeline.Stage.
func (s *FetchStage) Name() string { return NameFetch }

// FetchCandidates lists recent filings for each selected company, newest
// first. A company whose listing fails is logged and left out; only a
// store failure is fatal.
func (s *FetchStage) FetchCandidates(ctx context.Context, limit int) ([]Listing, error) {
	companies, err := s.store.ListCompanies(ctx, true)
	if err != nil {
		return nil, eris.Wrap(err, "fetch: list companies")
	}
	companies = s.selectCompanies(companies)
	log := zap.L().With(zap.String("stage", NameFetch))

	var out []Listing
	for _, c := range companies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cik, err := s.resolveCIK(ctx, &c)
		if err != nil {
			log.Warn("cik lookup failed", zap.String("ticker", c.Ticker), zap.Error(err))
			continue
		}
		for _, form := range s.opts.Forms {
			listings, err := s.edgar.ListFilings(ctx, c.Ticker, cik, form, s.opts.PerCompany)
			if err != nil {
				log.Warn("listing failed", zap.String("ticker", c.Ticker), zap.String("form", string(form)), zap.Error(err))
				continue
			}
			for _, l := range listings {
				out = append(out, Listing{Listing: l, Company: c})
			}
		}
	}

	slices.SortStableFunc(out, func(a, b Listing) int {
		return b.FilingDate.Compare(a.FilingDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FetchStage) selectCompanies(all []model.Company) []model.Company {
	if len(s.opts.Tickers) == 0 {
		return all
	}
	want := make(map[string]bool, len(s.opts.Tickers))
	for _, t := range s.opts.Tickers {
		want[strings.ToUpper(strings.TrimSpace(t))] = true
	}
	var out []model.Company
	for _, c := range all {
		if want[strings.ToUpper(c.Ticker)] {
			out = append(out, c)
		}
	}
	return out
}

// resolveCIK returns the company's CIK, looking it up and saving it the
// first time.
func (s *FetchStage) resolveCIK(ctx context.Context, c *model.Company) (string, error) {
	if c.CIK != "" {
		return c.CIK, nil
	}
	cik, err := s.edgar.LookupCIK(ctx, c.Ticker)
	if err != nil {
		return "", err
	}
	c.CIK = cik
	if err := s.store.UpsertCompany(ctx, c); err != nil {
		zap.L().Warn("save cik", zap.String("ticker", c.Ticker), zap.Error(err))
	}
	return cik, nil
}

// SkipIfDone reports whether the filing is already stored.
func (s *FetchStage) SkipIfDone(ctx context.Context, l Listing) (bool, error) {
	if s.opts.Refetch {
		return false, nil
	}
	return s.done.AlreadyDone(ctx, l.Key())
}

// Validate checks that a listing carries what Process needs.
func (s *FetchStage) Validate(_ context.Context, l Listing) error {
	switch {
	case l.AccessionNumber == "":
		return eris.New("listing has no accession number")
	case l.CIK == "":
		return eris.New("listing has no cik")
	case l.IndexURL == "":
		return eris.New("listing has no index url")
	}
	return nil
}

// Process downloads the filing and writes it to blob storage.
func (s *FetchStage) Process(ctx context.Context, l Listing) (Downloaded, error) {
	doc, err := s.edgar.Download(ctx, l.Listing)
	if err != nil {
		return Downloaded{}, err
	}
	f := s.filing(l, doc.URL)
	url, err := s.blobs.Put(ctx, blob.FilingKey(f, doc.Ext), doc.Body, doc.ContentType())
	if err != nil {
		return Downloaded{}, eris.Wrap(err, "store raw document")
	}
	return Downloaded{DocumentURL: doc.URL, BlobURL: url}, nil
}

// Persist creates the filing row. The accession number is unique, so a
// concurrent fetch of the same filing reports ErrAlreadyDone.
func (s *FetchStage) Persist(ctx context.Context, l Listing, d Downloaded) error {
	f := s.filing(l, d.DocumentURL)
	f.RawDocumentURL = d.BlobURL
	created, err := s.store.CreateFiling(ctx, f)
	if err != nil {
		return err
	}
	if !created {
		return pipeline.ErrAlreadyDone
	}
	zap.L().Info("filing stored",
		zap.String("ticker", f.Ticker),
		zap.String("type", string(f.FilingType)),
		zap.String("accession", f.AccessionNumber),
	)
	return nil
}

func (s *FetchStage) filing(l Listing, docURL string) *model.Filing {
	return &model.Filing{
		CompanyID:       l.Company.ID,
		Ticker:          l.Company.Ticker,
		CompanyName:     l.Company.Name,
		FilingType:      l.FilingType,
		FilingDate:      l.FilingDate,
		FiscalYear:      l.FiscalYear,
		FiscalPeriod:    l.FiscalPeriod,
		AccessionNumber: l.AccessionNumber,
		DocumentURL:     docURL,
		Status:          model.FilingPending,
	}
}
