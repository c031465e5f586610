package stages

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/pipeline"
	"github.com/tenkay/filing-pipeline/internal/store"
)

// Renderer builds the generated artifacts. *render.Renderer implements it.
type Renderer interface {
	Render(v model.ContentView) (model.Rendered, error)
}

// GenerateStage renders analyzed content into blog and email bodies.
type GenerateStage struct {
	store    store.Store
	renderer Renderer
}

var (
	_ pipeline.Stage[model.Content, model.Rendered] = (*GenerateStage)(nil)
	_ pipeline.Validator[model.Content]             = (*GenerateStage)(nil)
	_ pipeline.FailureRecorder[model.Content]       = (*GenerateStage)(nil)
)

// NewGenerateStage creates the generate stage.
func NewGenerateStage(st store.Store, r Renderer) *GenerateStage {
	return &GenerateStage{store: st, renderer: r}
}

// Name implements pipeline.Stage.
func (s *GenerateStage) Name() string { return NameGenerate }

// FetchCandidates returns analyzed content that has not been rendered.
func (s *GenerateStage) FetchCandidates(ctx context.Context, limit int) ([]model.Content, error) {
	return s.store.ListGenerateCandidates(ctx, limit)
}

// SkipIfDone re-reads the content so a render finished by another worker
// since enumeration is not repeated.
func (s *GenerateStage) SkipIfDone(ctx context.Context, c model.Content) (bool, error) {
	v, err := s.store.GetContent(ctx, c.ID)
	if err != nil {
		return false, err
	}
	return v.Rendered(), nil
}

// Validate rejects content whose analysis has no headline.
func (s *GenerateStage) Validate(_ context.Context, c model.Content) error {
	if c.Analysis.Headline == "" {
		return eris.New("analysis has no headline")
	}
	return nil
}

// Process renders the blog and email bodies from the stored content view.
func (s *GenerateStage) Process(ctx context.Context, c model.Content) (model.Rendered, error) {
	v, err := s.store.GetContent(ctx, c.ID)
	if err != nil {
		return model.Rendered{}, err
	}
	return s.renderer.Render(*v)
}

// Persist stores the rendered artifacts and advances the filing to generated.
func (s *GenerateStage) Persist(ctx context.Context, c model.Content, r model.Rendered) error {
	return s.store.SaveRendered(ctx, c.ID, r)
}

// RecordFailure marks the filing failed unless cause is transient.
func (s *GenerateStage) RecordFailure(ctx context.Context, c model.Content, cause error) error {
	return markFailed(ctx, s.store, NameGenerate, c.FilingID, cause)
}
