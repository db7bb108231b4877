package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currencies reported by the two sources.
const (
	CurrencyKRW = "KRW"
	CurrencyUSD = "USD"
)

// ReportType records which upstream report a holding row was extracted from.
type ReportType string

const (
	ReportTypeMajorStock ReportType = "MAJOR_STOCK"
	ReportTypeExecStock  ReportType = "EXEC_STOCK"
	ReportTypeSEC13F     ReportType = "SEC_13F"
)

// NormalizedHolding is one reported position after currency, unit and entity
// resolution. It is owned by its filing; replacing a filing's rows is the unit
// of re-processing.
type NormalizedHolding struct {
	FilingID      int64
	InstitutionID *int64
	SecurityID    *int64
	ReportType    ReportType

	// Domestic issuer identity.
	TargetCorpCode string
	TargetCorpName string
	ReporterName   string

	// Foreign issuer identity.
	IssuerName           string
	TitleOfClass         string
	CUSIP                string
	PutCall              string
	InvestmentDiscretion string
	VotingAuthSole       decimal.NullDecimal
	VotingAuthShared     decimal.NullDecimal
	VotingAuthNone       decimal.NullDecimal

	ReportedCurrency string
	Value            decimal.NullDecimal
	Shares           decimal.NullDecimal
	Weight           decimal.NullDecimal // percent
	Rank             *int
	AsOfDate         time.Time
}
