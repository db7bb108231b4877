package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-etl/internal/db"
	"github.com/sells-group/holdings-etl/internal/model"
)

var filingColumns = []string{
	"source", "filing_type", "filing_date", "report_period", "external_id", "raw_url", "institution_id", "updated_at",
}

// UpsertFiling inserts or refreshes one filing keyed by (source, external_id)
// and returns its id.
func (s *PostgresStore) UpsertFiling(ctx context.Context, f model.Filing) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO filings (source, filing_type, filing_date, report_period, external_id, raw_url, institution_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (source, external_id) DO UPDATE SET
		   filing_type = EXCLUDED.filing_type,
		   filing_date = EXCLUDED.filing_date,
		   report_period = EXCLUDED.report_period,
		   raw_url = EXCLUDED.raw_url,
		   institution_id = EXCLUDED.institution_id,
		   updated_at = EXCLUDED.updated_at
		 RETURNING id`,
		string(f.Source), string(f.FilingType), f.FilingDate, f.ReportPeriod,
		f.ExternalID, nullString(f.RawURL), f.InstitutionID, Clock().UTC(),
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "store: upsert filing %s/%s", f.Source, f.ExternalID)
	}
	return id, nil
}

// UpsertFilings bulk-upserts filings of one source and returns
// external_id → id. For duplicate external ids the last record wins.
func (s *PostgresStore) UpsertFilings(ctx context.Context, source model.Source, filings []model.Filing) (map[string]int64, error) {
	now := Clock().UTC()

	pos := make(map[string]int, len(filings))
	var rows [][]any
	var ids []string
	for _, f := range filings {
		if f.ExternalID == "" {
			continue
		}
		row := []any{
			string(source), string(f.FilingType), f.FilingDate, f.ReportPeriod,
			f.ExternalID, nullString(f.RawURL), f.InstitutionID, now,
		}
		if i, ok := pos[f.ExternalID]; ok {
			rows[i] = row
			continue
		}
		pos[f.ExternalID] = len(rows)
		rows = append(rows, row)
		ids = append(ids, f.ExternalID)
	}
	if len(rows) == 0 {
		return map[string]int64{}, nil
	}

	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "filings",
		Columns:      filingColumns,
		ConflictKeys: []string{"source", "external_id"},
	}, rows); err != nil {
		return nil, eris.Wrap(err, "store: upsert filings")
	}

	return s.idsByExternalID(ctx, "filings", string(source), ids)
}

// InsertRawPayload records the upstream capture for a filing. An existing
// payload is never overwritten.
func (s *PostgresStore) InsertRawPayload(ctx context.Context, p model.RawPayload) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO holdings_raw (filing_id, payload) VALUES ($1, $2) ON CONFLICT (filing_id) DO NOTHING`,
		p.FilingID, []byte(p.Payload),
	)
	if err != nil {
		return eris.Wrapf(err, "store: insert raw payload for filing %d", p.FilingID)
	}
	return nil
}
