package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/render"
)

func TestGenerate_RendersAndAdvances(t *testing.T) {
	e := newEnv(t)
	f := e.filing(t, e.company(t, "ACME", "1"), "a1", jan)
	ct := e.analyzed(t, f)

	r, err := render.New(render.Options{SiteURL: "https://example.com"})
	require.NoError(t, err)

	res := runBatch(t, NewGenerateStage(e.store, r), 0, 3, false)
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, model.FilingGenerated, e.status(t, f.ID))

	v, err := e.store.GetContent(context.Background(), ct.ID)
	require.NoError(t, err)
	assert.Contains(t, v.BlogHTML, "Acme widget sales climb")
	assert.Contains(t, v.EmailHTML, render.FirstNamePlaceholder)
	assert.NotEmpty(t, v.EmailText)
	assert.Equal(t, model.ContentRendered, v.State())

	again := runBatch(t, NewGenerateStage(e.store, r), 0, 3, false)
	assert.Zero(t, again.Total)
}

type failingRenderer struct{}

func (failingRenderer) Render(model.ContentView) (model.Rendered, error) {
	return model.Rendered{}, assert.AnError
}

func TestGenerate_RenderErrorMarksFilingFailed(t *testing.T) {
	e := newEnv(t)
	f := e.filing(t, e.company(t, "ACME", "1"), "a1", jan)
	e.analyzed(t, f)

	res := runBatch(t, NewGenerateStage(e.store, failingRenderer{}), 0, 1, false)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, model.FilingFailed, e.status(t, f.ID))

	// Failed filings are no longer generate candidates.
	again := runBatch(t, NewGenerateStage(e.store, failingRenderer{}), 0, 1, false)
	assert.Zero(t, again.Total)
}
