package dart

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-etl/internal/model"
	"github.com/sells-group/holdings-etl/internal/resolve"
)

// KST is the calendar OpenDART dates are expressed in.
var KST = time.FixedZone("KST", 9*60*60)

const dateLayout = "20060102"

// Store is the persistence the domestic pipeline needs.
type Store interface {
	resolve.Source
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error
	UpsertFiling(ctx context.Context, f model.Filing) (int64, error)
	InsertRawPayload(ctx context.Context, p model.RawPayload) error
	ReplaceHoldings(ctx context.Context, filingID int64, rows []model.NormalizedHolding) (int64, error)
}

// Options configures a Pipeline.
type Options struct {
	APIKey       string
	ViewerURL    string
	LookbackDays int
}

// Stats summarizes one domestic run.
type Stats struct {
	Begin        string `json:"begin"`
	End          string `json:"end"`
	Filings      int    `json:"filings"`
	Shareholding int    `json:"shareholding"`
	Periodic     int    `json:"periodic"`
	Holdings     int64  `json:"holdings"`
	Unmatched    int    `json:"unmatched"`
	Incomplete   int    `json:"incomplete"` // shareholding filings missing a sub-report
}

// Pipeline runs the domestic ingestion stage.
type Pipeline struct {
	client *Client
	store  Store
	opts   Options
	now    func() time.Time
	log    *zap.Logger
}

// NewPipeline creates a domestic pipeline.
func NewPipeline(client *Client, store Store, opts Options) *Pipeline {
	if opts.LookbackDays < 1 {
		opts.LookbackDays = 3
	}
	if opts.ViewerURL == "" {
		opts.ViewerURL = "https://dart.fss.or.kr/dsaf001/main.do"
	}
	return &Pipeline{
		client: client,
		store:  store,
		opts:   opts,
		now:    time.Now,
		log:    zap.L().With(zap.String("component", "dart")),
	}
}

// Window returns the [begin, end] query dates in KST. Without a previous run
// the window opens lookbackDays before now.
func Window(lastRun *time.Time, now time.Time, lookbackDays int) (string, string) {
	end := now.In(KST)
	var begin time.Time
	if lastRun != nil {
		begin = lastRun.In(KST)
	} else {
		begin = end.AddDate(0, 0, -lookbackDays)
	}
	return begin.Format(dateLayout), end.Format(dateLayout)
}

// ParseDate reads a YYYYMMDD receipt date. Malformed input falls back to
// today's KST date.
func ParseDate(s string, now time.Time) time.Time {
	if len(s) == len(dateLayout) {
		if t, err := time.Parse(dateLayout, s); err == nil {
			return t
		}
	}
	y, m, d := now.In(KST).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Run fetches the filing window, records every filing, normalizes
// shareholding reports, then advances last_domestic_run_at. A filing whose
// stock report could not be fetched keeps the watermark where it was and
// fails the stage once every filing has been visited.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	if p.opts.APIKey == "" {
		return nil, eris.New("dart: api key is not set")
	}

	now := p.now()
	lastRun, err := p.lastRun(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	stats.Begin, stats.End = Window(lastRun, now, p.opts.LookbackDays)
	p.log.Info("fetching filings", zap.String("begin", stats.Begin), zap.String("end", stats.End))

	filings, err := p.client.ListFilings(ctx, stats.Begin, stats.End)
	if err != nil {
		return nil, err
	}
	stats.Filings = len(filings)

	if len(filings) > 0 {
		reg, err := resolve.Load(ctx, p.store)
		if err != nil {
			return nil, eris.Wrap(err, "dart: load registry")
		}
		for _, f := range filings {
			if err := p.processFiling(ctx, reg, f, now, stats); err != nil {
				return nil, err
			}
		}
	}

	if stats.Incomplete > 0 {
		return stats, eris.Errorf("dart: %d shareholding filings are missing a stock report, watermark kept", stats.Incomplete)
	}

	if err := p.store.SetState(ctx, model.StateLastDomesticRunAt, now.UTC().Format(time.RFC3339)); err != nil {
		return nil, eris.Wrap(err, "dart: advance watermark")
	}

	p.log.Info("domestic stage complete",
		zap.Int("filings", stats.Filings),
		zap.Int("shareholding", stats.Shareholding),
		zap.Int64("holdings", stats.Holdings),
		zap.Int("unmatched", stats.Unmatched),
		zap.Int("incomplete", stats.Incomplete),
	)
	return stats, nil
}

func (p *Pipeline) lastRun(ctx context.Context) (*time.Time, error) {
	v, ok, err := p.store.GetState(ctx, model.StateLastDomesticRunAt)
	if err != nil {
		return nil, eris.Wrap(err, "dart: read watermark")
	}
	if !ok {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		p.log.Warn("unparsable watermark, using lookback window", zap.String("value", v))
		return nil, nil
	}
	return &t, nil
}

func (p *Pipeline) processFiling(ctx context.Context, reg *resolve.Registry, f Filing, now time.Time, stats *Stats) error {
	log := p.log.With(zap.String("rcept_no", f.RceptNo))
	date := ParseDate(f.RceptDt, now)

	filingType := model.FilingTypeDartPeriodic
	if f.Kind == KindShareholding {
		filingType = model.FilingTypeDartShareholding
	}

	filingID, err := p.store.UpsertFiling(ctx, model.Filing{
		Source:       model.SourceDomestic,
		FilingType:   filingType,
		FilingDate:   date,
		ReportPeriod: date,
		ExternalID:   f.RceptNo,
		RawURL:       p.opts.ViewerURL + "?rcpNo=" + url.QueryEscape(f.RceptNo),
	})
	if err != nil {
		return eris.Wrap(err, "dart: upsert filing")
	}

	if f.Kind != KindShareholding {
		stats.Periodic++
		raw, err := json.Marshal(map[string]Filing{"filing": f})
		if err != nil {
			return eris.Wrap(err, "dart: encode filing payload")
		}
		return p.store.InsertRawPayload(ctx, model.RawPayload{FilingID: filingID, Payload: raw})
	}
	stats.Shareholding++

	majorRaw, major, majorErr := p.client.MajorStock(ctx, f.CorpCode)
	execRaw, exec, execErr := p.client.ExecStock(ctx, f.CorpCode)
	if ctx.Err() != nil {
		return eris.Wrap(ctx.Err(), "dart: stock reports")
	}
	if majorErr != nil || execErr != nil {
		// The raw capture is written once, so a partial one would stick.
		// The watermark stays behind this filing and the next run retries it.
		stats.Incomplete++
		log.Warn("stock report unavailable", zap.NamedError("major", majorErr), zap.NamedError("exec", execErr))
	} else {
		raw, err := json.Marshal(map[string]json.RawMessage{"major": majorRaw, "exec": execRaw})
		if err != nil {
			return eris.Wrap(err, "dart: encode shareholding payload")
		}
		if err := p.store.InsertRawPayload(ctx, model.RawPayload{FilingID: filingID, Payload: raw}); err != nil {
			return err
		}
	}

	entries := ExtractEntries(major, exec)
	if len(entries) == 0 {
		return nil
	}

	rows := Normalize(reg, filingID, f, date, entries)
	stats.Unmatched += len(entries) - len(rows)

	n, err := p.store.ReplaceHoldings(ctx, filingID, rows)
	if err != nil {
		return err
	}
	stats.Holdings += n
	log.Debug("filing normalized", zap.Int("entries", len(entries)), zap.Int64("rows", n))
	return nil
}

// Normalize resolves each entry's reporter and builds holding rows for the
// matches. Unmatched reporters are dropped.
func Normalize(reg *resolve.Registry, filingID int64, f Filing, asOf time.Time, entries []Entry) []model.NormalizedHolding {
	rows := make([]model.NormalizedHolding, 0, len(entries))
	for _, e := range entries {
		reportType := e.Kind.ReportType()
		if reportType == "" {
			continue
		}
		instID, ok := reg.Lookup(e.Reporter)
		if !ok {
			continue
		}
		rows = append(rows, model.NormalizedHolding{
			FilingID:         filingID,
			InstitutionID:    &instID,
			ReportType:       reportType,
			TargetCorpCode:   f.CorpCode,
			TargetCorpName:   f.CorpName,
			ReporterName:     e.Reporter,
			ReportedCurrency: model.CurrencyKRW,
			Shares:           e.Shares,
			Weight:           e.Weight,
			AsOfDate:         asOf,
		})
	}
	return rows
}
