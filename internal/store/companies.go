package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-etl/internal/db"
	"github.com/sells-group/holdings-etl/internal/model"
)

// UpsertKRCompanies creates or refreshes registry rows keyed by corp_code.
// A code repeated within one call keeps its last row.
func (s *PostgresStore) UpsertKRCompanies(ctx context.Context, companies []model.KRCompany) (int64, error) {
	now := Clock().UTC()
	pos := make(map[string]int, len(companies))
	rows := make([][]any, 0, len(companies))
	for _, c := range companies {
		row := []any{c.CorpCode, c.StockCode, c.Name, nullString(c.ModifyDate), now}
		if i, ok := pos[c.CorpCode]; ok {
			rows[i] = row
			continue
		}
		pos[c.CorpCode] = len(rows)
		rows = append(rows, row)
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "kr_companies",
		Columns:      []string{"corp_code", "stock_code", "name", "modify_date", "updated_at"},
		ConflictKeys: []string{"corp_code"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "store: upsert kr companies")
	}
	return n, nil
}
