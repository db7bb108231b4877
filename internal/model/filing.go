// Package model defines the canonical records shared by both ingestion
// pipelines and the store.
package model

import (
	"encoding/json"
	"time"
)

// Source identifies the regulatory source a filing came from.
type Source string

const (
	SourceDomestic    Source = "DOMESTIC"     // OpenDART per-company disclosures
	SourceForeignBulk Source = "FOREIGN_BULK" // SEC Form 13F data sets
)

// FilingType distinguishes the kinds of filings kept per source.
type FilingType string

const (
	FilingTypeDartShareholding FilingType = "DART_SHAREHOLDING"
	FilingTypeDartPeriodic     FilingType = "DART_PERIODIC"
	FilingTypeSEC13F           FilingType = "SEC_13F"
)

// Filing is one disclosure event. (Source, ExternalID) is unique and is the
// only deduplication key across retries.
type Filing struct {
	ID            int64      `json:"id"`
	Source        Source     `json:"source"`
	FilingType    FilingType `json:"filing_type"`
	FilingDate    time.Time  `json:"filing_date"`
	ReportPeriod  time.Time  `json:"report_period"`
	ExternalID    string     `json:"external_id"`
	RawURL        string     `json:"raw_url,omitempty"`
	InstitutionID *int64     `json:"institution_id,omitempty"`
}

// RawPayload is the audit capture of upstream responses for one filing.
// Written once, never updated.
type RawPayload struct {
	FilingID int64           `json:"filing_id"`
	Payload  json.RawMessage `json:"payload"`
}
