package sec13f

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-etl/internal/db"
	"github.com/sells-group/holdings-etl/internal/fetcher"
	"github.com/sells-group/holdings-etl/internal/model"
)

// Store is the persistence the foreign pipeline needs.
type Store interface {
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error
	UpsertInstitutions(ctx context.Context, source string, insts []model.Institution) (map[string]int64, error)
	UpsertFilings(ctx context.Context, source model.Source, filings []model.Filing) (map[string]int64, error)
	DeleteHoldings(ctx context.Context, filingIDs []int64) (int64, error)
	AppendHoldings(ctx context.Context, rows []model.NormalizedHolding) (int64, error)
}

// Options configures a Pipeline.
type Options struct {
	ListingURL      string
	BaseURL         string
	Download        bool
	ArchiveDir      string
	ValueCutoffYear int
	BatchSize       int
	MaxArchiveBytes int64
}

// Stats summarizes one foreign run.
type Stats struct {
	Dataset      *Dataset `json:"dataset,omitempty"`
	Skipped      string   `json:"skipped,omitempty"`
	Submissions  int      `json:"submissions"`
	Institutions int      `json:"institutions"`
	Rows         int      `json:"rows"`
	Dropped      int      `json:"dropped"`
	Holdings     int64    `json:"holdings"`
	Batches      int      `json:"batches"`
}

// Reasons a run ended without writing holdings.
const (
	SkipNoDataset  = "no dataset listed"
	SkipUnchanged  = "dataset already processed"
	SkipDownload   = "download disabled"
	SkipIncomplete = "incomplete archive"
)

// Pipeline runs the foreign bulk ingestion stage.
type Pipeline struct {
	fetch fetcher.Fetcher
	store Store
	opts  Options
	now   func() time.Time
	log   *zap.Logger
}

// NewPipeline creates a foreign pipeline.
func NewPipeline(f fetcher.Fetcher, store Store, opts Options) *Pipeline {
	if opts.BatchSize < 1 {
		opts.BatchSize = 500
	}
	if opts.ValueCutoffYear == 0 {
		opts.ValueCutoffYear = 2022
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://www.sec.gov"
	}
	return &Pipeline{
		fetch: f,
		store: store,
		opts:  opts,
		now:   time.Now,
		log:   zap.L().With(zap.String("component", "sec13f")),
	}
}

// Run locates the newest data set and, when it differs from the last one
// processed, loads it. The watermark moves only after every holding row is
// written, or when the archive proves unusable.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	ds, err := Locate(ctx, p.fetch, p.opts.ListingURL, p.opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if ds == nil {
		p.log.Info("no 13F data set listed")
		stats.Skipped = SkipNoDataset
		return stats, nil
	}
	stats.Dataset = ds
	log := p.log.With(zap.String("label", ds.Label))

	last, _, err := p.store.GetState(ctx, model.StateLastSEC13FURL)
	if err != nil {
		return nil, eris.Wrap(err, "sec13f: read watermark")
	}
	if last == ds.URL {
		log.Info("data set already processed")
		stats.Skipped = SkipUnchanged
		return stats, nil
	}

	if !p.opts.Download {
		log.Info("new data set found, download disabled", zap.String("url", ds.URL))
		stats.Skipped = SkipDownload
		return stats, nil
	}

	log.Info("downloading data set")
	data, err := p.fetch.Fetch(ctx, ds.URL, p.opts.MaxArchiveBytes)
	if err != nil {
		return nil, eris.Wrap(err, "sec13f: download archive")
	}
	p.retain(data, log)

	archive, err := OpenArchive(ctx, data)
	if errors.Is(err, ErrIncompleteArchive) {
		log.Warn("archive lacks a required table, marking data set seen")
		stats.Skipped = SkipIncomplete
		return stats, p.markSeen(ctx, ds)
	}
	if err != nil {
		return nil, err
	}

	if err := p.load(ctx, archive, ds, stats); err != nil {
		return nil, err
	}
	if err := p.markSeen(ctx, ds); err != nil {
		return nil, err
	}

	log.Info("foreign stage complete",
		zap.Int("submissions", stats.Submissions),
		zap.Int("institutions", stats.Institutions),
		zap.Int64("holdings", stats.Holdings),
		zap.Int("dropped", stats.Dropped),
		zap.Int("batches", stats.Batches),
	)
	return stats, nil
}

func (p *Pipeline) load(ctx context.Context, a *Archive, ds *Dataset, stats *Stats) error {
	now := p.now()
	stats.Submissions = len(a.Accessions)

	// Institutions exist only for accessions present in both tables.
	var insts []model.Institution
	cikByAccession := make(map[string]string, len(a.Accessions))
	for _, acc := range a.Accessions {
		cover, ok := a.Covers[acc]
		if !ok {
			continue
		}
		cik := a.Submissions[acc].Get("CIK")
		if cik == "" {
			continue
		}
		name := cover.Get("FILINGMANAGER_NAME")
		if name == "" {
			name = "Unknown"
		}
		cikByAccession[acc] = cik
		insts = append(insts, model.Institution{
			Name:            name,
			CountryCode:     "US",
			InstitutionType: "asset_manager",
			ExternalID:      cik,
			Active:          true,
		})
	}

	instIDs, err := p.store.UpsertInstitutions(ctx, string(model.SourceForeignBulk), insts)
	if err != nil {
		return eris.Wrap(err, "sec13f: upsert institutions")
	}
	stats.Institutions = len(instIDs)

	periods := make(map[string]time.Time, len(a.Accessions))
	filings := make([]model.Filing, 0, len(a.Accessions))
	for _, acc := range a.Accessions {
		sub := a.Submissions[acc]
		period := ParseDate(sub.Get("PERIODOFREPORT"), now)
		periods[acc] = period

		f := model.Filing{
			Source:       model.SourceForeignBulk,
			FilingType:   model.FilingTypeSEC13F,
			FilingDate:   ParseDate(sub.Get("FILING_DATE"), now),
			ReportPeriod: period,
			ExternalID:   acc,
			RawURL:       ds.URL,
		}
		if id, ok := instIDs[cikByAccession[acc]]; ok {
			f.InstitutionID = &id
		}
		filings = append(filings, f)
	}

	filingIDs, err := p.store.UpsertFilings(ctx, model.SourceForeignBulk, filings)
	if err != nil {
		return eris.Wrap(err, "sec13f: upsert filings")
	}

	ids := make([]int64, 0, len(filingIDs))
	for _, id := range filingIDs {
		ids = append(ids, id)
	}
	removed, err := p.store.DeleteHoldings(ctx, ids)
	if err != nil {
		return eris.Wrap(err, "sec13f: clear holdings")
	}
	p.log.Debug("cleared previous holdings", zap.Int64("rows", removed))

	multiplier := ValueMultiplier(ds.Label, p.opts.ValueCutoffYear)
	batcher := db.NewBatcher[model.NormalizedHolding](p.opts.BatchSize, p.store.AppendHoldings)

	err = a.EachInfoRow(ctx, func(r fetcher.Record) error {
		stats.Rows++
		acc := r.Get("ACCESSION_NUMBER")
		filingID, ok := filingIDs[acc]
		if !ok {
			stats.Dropped++
			return nil
		}
		instID, ok := instIDs[cikByAccession[acc]]
		if !ok {
			stats.Dropped++
			return nil
		}
		return batcher.Add(ctx, holdingFromRow(r, filingID, instID, periods[acc], multiplier))
	})
	if err != nil {
		return err
	}
	if err := batcher.Flush(ctx); err != nil {
		return err
	}

	stats.Holdings = batcher.Written()
	stats.Batches = batcher.Batches()
	return nil
}

func holdingFromRow(r fetcher.Record, filingID, instID int64, asOf time.Time, multiplier decimal.Decimal) model.NormalizedHolding {
	value := model.ParseAmount(r.Get("VALUE"))
	if value.Valid {
		value.Decimal = value.Decimal.Mul(multiplier)
	}
	return model.NormalizedHolding{
		FilingID:             filingID,
		InstitutionID:        &instID,
		ReportType:           model.ReportTypeSEC13F,
		IssuerName:           r.Get("NAMEOFISSUER"),
		TitleOfClass:         r.Get("TITLEOFCLASS"),
		CUSIP:                r.Get("CUSIP"),
		PutCall:              r.Get("PUTCALL"),
		InvestmentDiscretion: r.Get("INVESTMENTDISCRETION"),
		VotingAuthSole:       model.ParseAmount(r.Get("VOTING_AUTH_SOLE")),
		VotingAuthShared:     model.ParseAmount(r.Get("VOTING_AUTH_SHARED")),
		VotingAuthNone:       model.ParseAmount(r.Get("VOTING_AUTH_NONE")),
		ReportedCurrency:     model.CurrencyUSD,
		Value:                value,
		Shares:               model.ParseAmount(r.Get("SSHPRNAMT")),
		AsOfDate:             asOf,
	}
}

func (p *Pipeline) markSeen(ctx context.Context, ds *Dataset) error {
	if err := p.store.SetState(ctx, model.StateLastSEC13FURL, ds.URL); err != nil {
		return eris.Wrap(err, "sec13f: advance watermark")
	}
	if err := p.store.SetState(ctx, model.StateLastSEC13FLabel, ds.Label); err != nil {
		return eris.Wrap(err, "sec13f: advance watermark label")
	}
	return nil
}

// retain writes a copy of the archive under ArchiveDir. Failures are logged
// and do not stop the run.
func (p *Pipeline) retain(data []byte, log *zap.Logger) {
	if p.opts.ArchiveDir == "" {
		return
	}
	path := ArchivePath(p.opts.ArchiveDir, p.now())
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Warn("archive copy failed", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Warn("archive copy failed", zap.Error(err))
		return
	}
	log.Info("archive copy written", zap.String("path", path))
}

// ArchivePath is where a data set downloaded at t is retained.
func ArchivePath(dir string, t time.Time) string {
	return filepath.Join(dir, "sec", "13f", t.UTC().Format("2006-01-02")+".zip")
}
