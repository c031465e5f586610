package model

import "time"

// FilingType is the SEC form type.
type FilingType string

const (
	Filing10K FilingType = "10-K"
	Filing10Q FilingType = "10-Q"
)

// FiscalPeriod labels the reporting period a filing covers.
type FiscalPeriod string

const (
	PeriodFY FiscalPeriod = "FY"
	PeriodQ1 FiscalPeriod = "Q1"
	PeriodQ2 FiscalPeriod = "Q2"
	PeriodQ3 FiscalPeriod = "Q3"
	PeriodQ4 FiscalPeriod = "Q4"
)

// FiscalPeriodFor infers the fiscal period from the form type and filing
// date. Annual reports are FY; quarterly reports map by the month filed,
// assuming a calendar fiscal year.
func FiscalPeriodFor(ft FilingType, filed time.Time) FiscalPeriod {
	if ft == Filing10K {
		return PeriodFY
	}
	switch filed.Month() {
	case time.April, time.May:
		return PeriodQ1
	case time.July, time.August:
		return PeriodQ2
	case time.October, time.November:
		return PeriodQ3
	default:
		return PeriodQ4
	}
}

// Filing is the first-stage work unit: one SEC filing for one company.
// AccessionNumber is its natural key.
type Filing struct {
	ID              string       `json:"id"`
	CompanyID       string       `json:"company_id"`
	Ticker          string       `json:"ticker"`
	CompanyName     string       `json:"company_name,omitempty"`
	FilingType      FilingType   `json:"filing_type"`
	FilingDate      time.Time    `json:"filing_date"`
	FiscalYear      int          `json:"fiscal_year"`
	FiscalPeriod    FiscalPeriod `json:"fiscal_period"`
	AccessionNumber string       `json:"accession_number"`
	DocumentURL     string       `json:"document_url"`
	RawDocumentURL  string       `json:"raw_document_url,omitempty"`
	Status          FilingStatus `json:"status"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Key returns the accession number.
func (f Filing) Key() string { return f.AccessionNumber }
