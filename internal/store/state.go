package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-etl/internal/model"
)

// GetState returns a watermark value. The second result is false when the
// key has never been written.
func (s *PostgresStore) GetState(ctx context.Context, key string) (string, bool, error) {
	var value *string
	err := s.pool.QueryRow(ctx, `SELECT value FROM etl_state WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, eris.Wrapf(err, "store: get state %s", key)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

// SetState upserts a watermark.
func (s *PostgresStore) SetState(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO etl_state (key, value, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, value, Clock().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "store: set state %s", key)
	}
	return nil
}

// ListState returns every watermark ordered by key.
func (s *PostgresStore) ListState(ctx context.Context) ([]model.EtlState, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, COALESCE(value, ''), updated_at FROM etl_state ORDER BY key`)
	if err != nil {
		return nil, eris.Wrap(err, "store: list state")
	}
	defer rows.Close()

	var out []model.EtlState
	for rows.Next() {
		var st model.EtlState
		if err := rows.Scan(&st.Key, &st.Value, &st.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan state")
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
