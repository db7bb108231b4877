package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/holdings-etl/internal/model"
)

// StartRun inserts a new EtlRun in the running state.
func (s *PostgresStore) StartRun(ctx context.Context) (*model.EtlRun, error) {
	run := &model.EtlRun{
		ID:        uuid.NewString(),
		Status:    model.EtlRunRunning,
		Message:   "started",
		StartedAt: Clock().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO etl_runs (id, status, message, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, string(run.Status), run.Message, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: start run")
	}
	return run, nil
}

// FinishRun moves a run to a terminal status.
func (s *PostgresStore) FinishRun(ctx context.Context, id string, status model.EtlRunStatus, message string) error {
	if status == model.EtlRunRunning {
		return eris.Errorf("store: finish run %s: status %q is not terminal", id, status)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE etl_runs SET status = $1, message = $2, finished_at = $3 WHERE id = $4`,
		string(status), message, Clock().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "store: finish run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("store: finish run %s: not found", id)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.EtlRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, status, COALESCE(message, ''), started_at, finished_at
		 FROM etl_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	defer rows.Close()

	var out []model.EtlRun
	for rows.Next() {
		var r model.EtlRun
		var status string
		if err := rows.Scan(&r.ID, &status, &r.Message, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "store: scan run")
		}
		r.Status = model.EtlRunStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}
