// Package store persists filings, holdings, institutions and ETL bookkeeping
// in Postgres.
package store

import (
	"context"
	"time"

	"github.com/sells-group/holdings-etl/internal/model"
)

// Store is the full persistence surface used by the pipelines, the
// orchestrator and the CLI. Consumers depend on narrower interfaces.
type Store interface {
	// Watermarks
	GetState(ctx context.Context, key string) (string, bool, error)
	SetState(ctx context.Context, key, value string) error
	ListState(ctx context.Context) ([]model.EtlState, error)

	// Runs
	StartRun(ctx context.Context) (*model.EtlRun, error)
	FinishRun(ctx context.Context, id string, status model.EtlRunStatus, message string) error
	ListRuns(ctx context.Context, limit int) ([]model.EtlRun, error)

	// Institutions
	LoadInstitutions(ctx context.Context) ([]model.Institution, error)
	LoadAliases(ctx context.Context) ([]model.InstitutionAlias, error)
	UpsertInstitutions(ctx context.Context, source string, insts []model.Institution) (map[string]int64, error)

	// Korean issuer registry
	UpsertKRCompanies(ctx context.Context, companies []model.KRCompany) (int64, error)

	// Filings
	UpsertFiling(ctx context.Context, f model.Filing) (int64, error)
	UpsertFilings(ctx context.Context, source model.Source, filings []model.Filing) (map[string]int64, error)
	InsertRawPayload(ctx context.Context, p model.RawPayload) error

	// Holdings
	ReplaceHoldings(ctx context.Context, filingID int64, rows []model.NormalizedHolding) (int64, error)
	DeleteHoldings(ctx context.Context, filingIDs []int64) (int64, error)
	AppendHoldings(ctx context.Context, rows []model.NormalizedHolding) (int64, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Clock is swapped in tests.
var Clock = time.Now
