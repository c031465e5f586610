package stages

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenkay/filing-pipeline/internal/analyzer"
	"github.com/tenkay/filing-pipeline/internal/blob"
	"github.com/tenkay/filing-pipeline/internal/edgar"
	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/pipeline"
	"github.com/tenkay/filing-pipeline/internal/store"
)

// AnalyzeStage runs pending filings through the analyzer.
type AnalyzeStage struct {
	store    store.Store
	blobs    blob.Store
	source   edgar.Getter
	analyzer analyzer.Analyzer
	typ      model.AnalysisType
	done     pipeline.Guard
}

var (
	_ pipeline.Stage[model.Filing, *analyzer.Result] = (*AnalyzeStage)(nil)
	_ pipeline.Validator[model.Filing]               = (*AnalyzeStage)(nil)
	_ pipeline.FailureRecorder[model.Filing]         = (*AnalyzeStage)(nil)
)

// NewAnalyzeStage creates the analyze stage. source re-downloads a
// document whose stored copy is gone; it may be nil.
func NewAnalyzeStage(st store.Store, blobs blob.Store, source edgar.Getter, a analyzer.Analyzer, typ model.AnalysisType) *AnalyzeStage {
	if typ == "" {
		typ = model.AnalysisQuick
	}
	return &AnalyzeStage{
		store: st, blobs: blobs, source: source, analyzer: a, typ: typ,
		done: pipeline.GuardFunc(st.ContentExists),
	}
}

// Name implements pipeline.Stage.
func (s *AnalyzeStage) Name() string { return NameAnalyze }

// FetchCandidates returns pending filings with no content yet, newest first.
func (s *AnalyzeStage) FetchCandidates(ctx context.Context, limit int) ([]model.Filing, error) {
	return s.store.ListAnalyzeCandidates(ctx, limit)
}

// SkipIfDone reports whether content already exists for the filing.
func (s *AnalyzeStage) SkipIfDone(ctx context.Context, f model.Filing) (bool, error) {
	return s.done.AlreadyDone(ctx, f.ID)
}

// Validate checks that the filing has a document to read.
func (s *AnalyzeStage) Validate(_ context.Context, f model.Filing) error {
	if f.RawDocumentURL == "" && f.DocumentURL == "" {
		return eris.New("missing document url")
	}
	return nil
}

// Process loads the filing document and runs it through the analyzer.
func (s *AnalyzeStage) Process(ctx context.Context, f model.Filing) (*analyzer.Result, error) {
	doc, err := s.document(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Analyze(ctx, analyzer.Input{Filing: f, Document: doc, Type: s.typ})
}

// document reads the stored raw document, falling back to the source URL.
func (s *AnalyzeStage) document(ctx context.Context, f model.Filing) ([]byte, error) {
	if f.RawDocumentURL != "" {
		doc, err := s.blobs.Get(ctx, f.RawDocumentURL)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, blob.ErrNotFound) || s.source == nil || f.DocumentURL == "" {
			return nil, eris.Wrap(err, "read raw document")
		}
		zap.L().Warn("raw document missing, downloading again",
			zap.String("accession", f.AccessionNumber), zap.String("url", f.DocumentURL))
	}
	if s.source == nil || f.DocumentURL == "" {
		return nil, eris.New("no document source")
	}
	doc, err := s.source.Get(ctx, f.DocumentURL)
	if err != nil {
		return nil, eris.Wrap(err, "download document")
	}
	return doc, nil
}

// Persist stores the analysis and advances the filing to analyzed.
func (s *AnalyzeStage) Persist(ctx context.Context, f model.Filing, r *analyzer.Result) error {
	c := &model.Content{
		FilingID:     f.ID,
		AnalysisType: s.typ,
		Analysis:     r.Analysis,
	}
	created, err := s.store.SaveAnalysis(ctx, c)
	if err != nil {
		return err
	}
	if !created {
		return pipeline.ErrAlreadyDone
	}
	return nil
}

// RecordFailure marks the filing failed unless cause is transient.
func (s *AnalyzeStage) RecordFailure(ctx context.Context, f model.Filing, cause error) error {
	return markFailed(ctx, s.store, NameAnalyze, f.ID, cause)
}
