package model

import "time"

// Company is a tracked public company whose filings flow through the pipeline.
type Company struct {
	ID        string    `json:"id" yaml:"-"`
	Ticker    string    `json:"ticker" yaml:"ticker"`
	CIK       string    `json:"cik,omitempty" yaml:"cik,omitempty"`
	Name      string    `json:"name" yaml:"name"`
	Sector    string    `json:"sector,omitempty" yaml:"sector,omitempty"`
	Enabled   bool      `json:"enabled" yaml:"enabled"`
	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// Tier is a subscriber plan level.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
	TierAll  Tier = "all" // filter only; never stored on a subscriber
)

// ParseTier validates a tier name from the CLI or config.
func ParseTier(s string) (Tier, bool) {
	switch t := Tier(s); t {
	case TierFree, TierPaid, TierAll:
		return t, true
	}
	return "", false
}

// Subscriber is an email recipient of published content.
type Subscriber struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	Tier      Tier      `json:"tier"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the name used in personalized greetings.
func (s Subscriber) DisplayName() string {
	if s.FirstName == "" {
		return "there"
	}
	return s.FirstName
}
