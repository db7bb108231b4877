package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-etl/internal/db"
	"github.com/sells-group/holdings-etl/internal/model"
)

var institutionColumns = []string{
	"name", "country_code", "institution_type", "source", "external_id", "active", "updated_at",
}

// LoadInstitutions returns every active institution.
func (s *PostgresStore) LoadInstitutions(ctx context.Context) ([]model.Institution, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, COALESCE(country_code, ''), COALESCE(institution_type, ''),
		        COALESCE(source, ''), COALESCE(external_id, ''), active
		 FROM institutions WHERE active`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: load institutions")
	}
	defer rows.Close()

	var out []model.Institution
	for rows.Next() {
		var inst model.Institution
		if err := rows.Scan(&inst.ID, &inst.Name, &inst.CountryCode, &inst.InstitutionType,
			&inst.Source, &inst.ExternalID, &inst.Active); err != nil {
			return nil, eris.Wrap(err, "store: scan institution")
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

// LoadAliases returns every institution alias.
func (s *PostgresStore) LoadAliases(ctx context.Context) ([]model.InstitutionAlias, error) {
	rows, err := s.pool.Query(ctx, `SELECT institution_id, alias FROM institutions_aliases`)
	if err != nil {
		return nil, eris.Wrap(err, "store: load aliases")
	}
	defer rows.Close()

	var out []model.InstitutionAlias
	for rows.Next() {
		var a model.InstitutionAlias
		if err := rows.Scan(&a.InstitutionID, &a.Alias); err != nil {
			return nil, eris.Wrap(err, "store: scan alias")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertInstitutions creates or refreshes institutions keyed by
// (source, external_id) and returns external_id → id. Records without an
// external id are skipped; for duplicate ids the last record wins.
func (s *PostgresStore) UpsertInstitutions(ctx context.Context, source string, insts []model.Institution) (map[string]int64, error) {
	now := Clock().UTC()

	pos := make(map[string]int, len(insts))
	var rows [][]any
	var ids []string
	for _, inst := range insts {
		if inst.ExternalID == "" {
			continue
		}
		row := []any{
			inst.Name, nullString(inst.CountryCode), nullString(inst.InstitutionType),
			source, inst.ExternalID, inst.Active, now,
		}
		if i, ok := pos[inst.ExternalID]; ok {
			rows[i] = row
			continue
		}
		pos[inst.ExternalID] = len(rows)
		rows = append(rows, row)
		ids = append(ids, inst.ExternalID)
	}
	if len(rows) == 0 {
		return map[string]int64{}, nil
	}

	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "institutions",
		Columns:      institutionColumns,
		ConflictKeys: []string{"source", "external_id"},
	}, rows); err != nil {
		return nil, eris.Wrap(err, "store: upsert institutions")
	}

	return s.idsByExternalID(ctx, "institutions", source, ids)
}

// idsByExternalID maps external ids to surrogate ids for one source.
func (s *PostgresStore) idsByExternalID(ctx context.Context, table, source string, externalIDs []string) (map[string]int64, error) {
	// table is always a package constant.
	rows, err := s.pool.Query(ctx,
		`SELECT external_id, id FROM `+table+` WHERE source = $1 AND external_id = ANY($2)`,
		source, externalIDs,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "store: resolve %s ids", table)
	}
	defer rows.Close()

	out := make(map[string]int64, len(externalIDs))
	for rows.Next() {
		var ext string
		var id int64
		if err := rows.Scan(&ext, &id); err != nil {
			return nil, eris.Wrapf(err, "store: scan %s id", table)
		}
		out[ext] = id
	}
	return out, rows.Err()
}
