package dart

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/holdings-etl/internal/model"
)

// ReportKind tags which sub-report an Entry came from.
type ReportKind int

const (
	MajorStock ReportKind = iota + 1 // majorstock.json, 5%+ holders
	ExecStock                        // elestock.json, executives and major shareholders
)

// ReportType maps the kind onto the stored report_type. The zero kind maps
// to "".
func (k ReportKind) ReportType() model.ReportType {
	switch k {
	case MajorStock:
		return model.ReportTypeMajorStock
	case ExecStock:
		return model.ReportTypeExecStock
	}
	return ""
}

// Entry is one holder row extracted from a sub-report.
type Entry struct {
	Kind     ReportKind
	Reporter string
	Shares   decimal.NullDecimal
	Weight   decimal.NullDecimal
}

// ExtractEntries pulls holder rows from the sub-reports whose status is
// success. A nil report contributes nothing.
func ExtractEntries(major, exec *StockReport) []Entry {
	var out []Entry
	if major != nil && major.Status == StatusOK {
		for _, item := range major.List {
			out = append(out, Entry{
				Kind:     MajorStock,
				Reporter: strings.TrimSpace(string(item["repror"])),
				Shares:   model.ParseAmount(string(item["stkqy"])),
				Weight:   model.ParseAmount(string(item["stkrt"])),
			})
		}
	}
	if exec != nil && exec.Status == StatusOK {
		for _, item := range exec.List {
			out = append(out, Entry{
				Kind:     ExecStock,
				Reporter: strings.TrimSpace(string(item["repror"])),
				Shares:   model.ParseAmount(string(item["sp_stock_lmp_cnt"])),
				Weight:   model.ParseAmount(string(item["sp_stock_lmp_rate"])),
			})
		}
	}
	return out
}
