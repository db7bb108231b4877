package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/holdings-etl/internal/db"
	"github.com/sells-group/holdings-etl/internal/model"
)

const holdingsTable = "holdings_normalized"

var holdingColumns = []string{
	"filing_id", "institution_id", "security_id",
	"target_corp_code", "target_corp_name", "reporter_name",
	"issuer_name", "title_of_class", "cusip", "put_call", "investment_discretion",
	"voting_auth_sole", "voting_auth_shared", "voting_auth_none",
	"reported_currency", "value", "shares", "weight", "rank",
	"as_of_date", "report_type",
}

// ReplaceHoldings deletes every normalized row of a filing and inserts rows
// in one transaction. An empty rows slice still clears the filing.
func (s *PostgresStore) ReplaceHoldings(ctx context.Context, filingID int64, rows []model.NormalizedHolding) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "store: replace holdings: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM holdings_normalized WHERE filing_id = $1`, filingID); err != nil {
		return 0, eris.Wrapf(err, "store: replace holdings: delete filing %d", filingID)
	}

	n, err := db.CopyRows(ctx, tx, holdingsTable, holdingColumns, holdingRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "store: replace holdings: insert filing %d", filingID)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "store: replace holdings: commit")
	}
	return n, nil
}

// DeleteHoldings removes the normalized rows of the given filings.
func (s *PostgresStore) DeleteHoldings(ctx context.Context, filingIDs []int64) (int64, error) {
	if len(filingIDs) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM holdings_normalized WHERE filing_id = ANY($1)`, filingIDs)
	if err != nil {
		return 0, eris.Wrap(err, "store: delete holdings")
	}
	return tag.RowsAffected(), nil
}

// AppendHoldings bulk-inserts rows without touching existing ones.
func (s *PostgresStore) AppendHoldings(ctx context.Context, rows []model.NormalizedHolding) (int64, error) {
	n, err := db.CopyRows(ctx, s.pool, holdingsTable, holdingColumns, holdingRows(rows))
	if err != nil {
		return 0, eris.Wrap(err, "store: append holdings")
	}
	return n, nil
}

func holdingRows(hs []model.NormalizedHolding) [][]any {
	rows := make([][]any, 0, len(hs))
	for _, h := range hs {
		var rank *int32
		if h.Rank != nil {
			r := int32(*h.Rank)
			rank = &r
		}
		rows = append(rows, []any{
			h.FilingID, h.InstitutionID, h.SecurityID,
			nullString(h.TargetCorpCode), nullString(h.TargetCorpName), nullString(h.ReporterName),
			nullString(h.IssuerName), nullString(h.TitleOfClass), nullString(h.CUSIP),
			nullString(h.PutCall), nullString(h.InvestmentDiscretion),
			numeric(h.VotingAuthSole), numeric(h.VotingAuthShared), numeric(h.VotingAuthNone),
			h.ReportedCurrency, numeric(h.Value), numeric(h.Shares), numeric(h.Weight), rank,
			h.AsOfDate, string(h.ReportType),
		})
	}
	return rows
}

// numeric converts a nullable decimal to the pgx NUMERIC representation.
func numeric(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: d.Decimal.Coefficient(), Exp: d.Decimal.Exponent(), Valid: true}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
