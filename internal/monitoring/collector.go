// Package monitoring snapshots pipeline health from the store and raises
// webhook alerts when failures or backlog cross configured thresholds.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tenkay/filing-pipeline/internal/model"
)

// Snapshot holds a point-in-time view of the pipeline.
type Snapshot struct {
	Filings  map[model.FilingStatus]int `json:"filings"`
	Total    int                        `json:"total"`
	Failed   int                        `json:"failed"`
	FailRate float64                    `json:"fail_rate"`
	// Backlog counts filings still waiting on a later stage.
	Backlog int `json:"backlog"`

	Analyze  model.Progress `json:"analyze"`
	Generate model.Progress `json:"generate"`
	Publish  model.Progress `json:"publish"`

	CollectedAt time.Time `json:"collected_at"`
}

// Source is the subset of store.Store the collector reads.
type Source interface {
	CountFilingsByStatus(ctx context.Context) (map[model.FilingStatus]int, error)
	AnalyzeProgress(ctx context.Context) (model.Progress, error)
	GenerateProgress(ctx context.Context) (model.Progress, error)
	PublishProgress(ctx context.Context) (model.Progress, error)
}

// Collector gathers snapshots from the store.
type Collector struct {
	src Source
}

// NewCollector creates a new collector.
func NewCollector(src Source) *Collector {
	return &Collector{src: src}
}

// Collect gathers a snapshot.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	counts, err := c.src.CountFilingsByStatus(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: count filings")
	}

	snap := &Snapshot{Filings: counts, CollectedAt: time.Now().UTC()}
	for status, n := range counts {
		snap.Total += n
		switch status {
		case model.FilingFailed:
			snap.Failed += n
		case model.FilingPending, model.FilingAnalyzed, model.FilingGenerated:
			snap.Backlog += n
		}
	}
	if snap.Total > 0 {
		snap.FailRate = float64(snap.Failed) / float64(snap.Total)
	}

	if snap.Analyze, err = c.src.AnalyzeProgress(ctx); err != nil {
		return nil, eris.Wrap(err, "monitoring: analyze progress")
	}
	if snap.Generate, err = c.src.GenerateProgress(ctx); err != nil {
		return nil, eris.Wrap(err, "monitoring: generate progress")
	}
	if snap.Publish, err = c.src.PublishProgress(ctx); err != nil {
		return nil, eris.Wrap(err, "monitoring: publish progress")
	}
	return snap, nil
}
