package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-etl/internal/config"
	"github.com/sells-group/holdings-etl/internal/etl"
	"github.com/sells-group/holdings-etl/internal/etl/dart"
	"github.com/sells-group/holdings-etl/internal/etl/sec13f"
	"github.com/sells-group/holdings-etl/internal/fetcher"
	"github.com/sells-group/holdings-etl/internal/resilience"
	"github.com/sells-group/holdings-etl/internal/store"
)

// initStore opens the Postgres store and applies migrations. Connecting is
// retried while the database is unreachable. Callers should defer Close.
func initStore(ctx context.Context) (*store.PostgresStore, error) {
	backoff := resilience.BackoffFromConfig(cfg.Store)
	backoff.OnRetry = resilience.LogRetry("store", "connect")
	st, err := resilience.Retry(ctx, backoff, func(ctx context.Context) (*store.PostgresStore, error) {
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// runnerStore is what the two pipelines and the orchestrator write to.
type runnerStore interface {
	etl.Store
	dart.Store
	sec13f.Store
}

// newFetcher builds the shared upstream HTTP client. The SEC requires an
// identifying User-Agent; OpenDART accepts any.
func newFetcher(c *config.Config) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.SEC.UserAgent,
		Timeout:    c.Fetch.Timeout(),
		MaxRetries: c.Fetch.MaxRetries,
		Breakers:   resilience.NewBreakers(resilience.BreakerFromConfig(c.Fetch)),
	})
}

// newRunner wires both pipelines and the orchestrator over st.
func newRunner(c *config.Config, f fetcher.Fetcher, st runnerStore) *etl.Runner {
	client := dart.NewClient(f, c.Dart.APIKey, c.Dart.BaseURL, c.Dart.PageSize)
	domestic := dart.NewPipeline(client, st, dart.Options{
		APIKey:       c.Dart.APIKey,
		ViewerURL:    c.Dart.ViewerURL,
		LookbackDays: c.Dart.LookbackDays,
	})
	foreign := sec13f.NewPipeline(f, st, sec13f.Options{
		ListingURL:      c.SEC.ListingURL,
		BaseURL:         c.SEC.BaseURL,
		Download:        c.SEC.Download,
		ArchiveDir:      c.SEC.ArchiveDir,
		ValueCutoffYear: c.SEC.ValueCutoffYear,
		BatchSize:       c.SEC.BatchSize,
		MaxArchiveBytes: c.SEC.MaxArchiveMB << 20,
	})
	return etl.NewRunner(st, domestic, foreign)
}
