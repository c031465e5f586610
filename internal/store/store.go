// Package store persists pipeline work units in a shared relational store.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/tenkay/filing-pipeline/internal/model"
)

var (
	// ErrNotFound is returned when a point lookup matches no row.
	ErrNotFound = eris.New("store: not found")
	// ErrInvalidTransition is returned when a status update would regress a
	// filing or leave the failed state.
	ErrInvalidTransition = eris.New("store: invalid status transition")
)

// FilingFilter specifies criteria for listing filings.
type FilingFilter struct {
	Status     model.FilingStatus `json:"status,omitempty"`
	Ticker     string             `json:"ticker,omitempty"`
	FilingType model.FilingType   `json:"filing_type,omitempty"`
	Limit      int                `json:"limit,omitempty"`
	Offset     int                `json:"offset,omitempty"`
}

// Store defines the persistence interface for the filing pipeline. Every
// list method treats a non-positive limit as unbounded.
type Store interface {
	// Companies
	UpsertCompany(ctx context.Context, c *model.Company) error
	ListCompanies(ctx context.Context, enabledOnly bool) ([]model.Company, error)

	// Filings
	FilingExists(ctx context.Context, accession string) (bool, error)
	// CreateFiling inserts f unless its accession number is already stored.
	// created reports whether this call inserted the row.
	CreateFiling(ctx context.Context, f *model.Filing) (created bool, err error)
	GetFiling(ctx context.Context, id string) (*model.Filing, error)
	GetFilingByAccession(ctx context.Context, accession string) (*model.Filing, error)
	ListFilings(ctx context.Context, filter FilingFilter) ([]model.Filing, error)
	// ListAnalyzeCandidates returns pending filings without content, newest first.
	ListAnalyzeCandidates(ctx context.Context, limit int) ([]model.Filing, error)
	// AdvanceFiling moves a filing to status to. It fails with
	// ErrInvalidTransition when the current status cannot reach to.
	AdvanceFiling(ctx context.Context, id string, to model.FilingStatus, errMsg string) error
	// DeleteFiling removes a filing and everything derived from it.
	DeleteFiling(ctx context.Context, id string) error

	// Content
	ContentExists(ctx context.Context, filingID string) (bool, error)
	// SaveAnalysis inserts c and advances its filing to analyzed in one
	// transaction. created is false when content already existed.
	SaveAnalysis(ctx context.Context, c *model.Content) (created bool, err error)
	GetContent(ctx context.Context, id string) (*model.ContentView, error)
	// ListGenerateCandidates returns content missing a rendered artifact.
	ListGenerateCandidates(ctx context.Context, limit int) ([]model.Content, error)
	// SaveRendered stores the generated artifacts and advances the filing
	// to generated.
	SaveRendered(ctx context.Context, contentID string, r model.Rendered) error
	// ListPublishCandidates returns rendered content with no sent delivery
	// on the channel.
	ListPublishCandidates(ctx context.Context, channel model.Channel, limit int) ([]model.Content, error)

	// Subscribers
	UpsertSubscriber(ctx context.Context, s *model.Subscriber) error
	ListSubscribers(ctx context.Context, tier model.Tier) ([]model.Subscriber, error)

	// Deliveries
	DeliveryExists(ctx context.Context, contentID string, channel model.Channel) (bool, error)
	// ClaimDelivery atomically takes the (content, channel) slot by writing
	// a sending row, or by reclaiming a failed one. claimed is false when
	// another caller holds or completed it.
	ClaimDelivery(ctx context.Context, d *model.Delivery) (claimed bool, err error)
	// CompleteDelivery finalizes a claimed delivery. A sent delivery also
	// marks the content published and the filing published.
	CompleteDelivery(ctx context.Context, d *model.Delivery) error

	// Progress
	AnalyzeProgress(ctx context.Context) (model.Progress, error)
	GenerateProgress(ctx context.Context) (model.Progress, error)
	PublishProgress(ctx context.Context) (model.Progress, error)
	CountFilingsByStatus(ctx context.Context) (map[model.FilingStatus]int, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
