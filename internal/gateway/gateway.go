package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-etl/internal/db"
)

// Log statuses recorded in sql_editor_logs.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	authModeAdminToken = "admin_token"
)

// Options configures a Gateway.
type Options struct {
	MaxRows      int
	MaxSQLLength int
}

// Request is one query submission.
type Request struct {
	SQL     string `json:"sql"`
	MaxRows *int   `json:"maxRows,omitempty"`
}

// Response carries the result rows of a successful query.
type Response struct {
	Rows       []map[string]any `json:"rows"`
	DurationMS int64            `json:"duration_ms"`
}

// Gateway executes validated queries in read-only transactions.
type Gateway struct {
	pool db.Pool
	opts Options
	now  func() time.Time
	log  *zap.Logger
}

// New creates a Gateway over pool.
func New(pool db.Pool, opts Options) *Gateway {
	if opts.MaxRows < 1 {
		opts.MaxRows = DefaultRows
	}
	return &Gateway{
		pool: pool,
		opts: opts,
		now:  time.Now,
		log:  zap.L().With(zap.String("component", "gateway")),
	}
}

// Query validates and runs req. Rejections return an error matching
// ErrRejected; execution failures return the database error. Both are
// logged, as is every success.
func (g *Gateway) Query(ctx context.Context, req Request) (*Response, error) {
	start := g.now()
	maxRows := ClampRows(req.MaxRows, g.opts.MaxRows)

	sql, err := Prepare(req.SQL, maxRows, g.opts.MaxSQLLength)
	if err != nil {
		g.record(ctx, req.SQL, 0, 0, err)
		return nil, err
	}

	rows, err := g.run(ctx, sql)
	elapsed := g.now().Sub(start).Milliseconds()
	if err != nil {
		g.record(ctx, sql, 0, elapsed, err)
		return nil, err
	}

	g.record(ctx, sql, len(rows), elapsed, nil)
	return &Response{Rows: rows, DurationMS: elapsed}, nil
}

func (g *Gateway) run(ctx context.Context, sql string) ([]map[string]any, error) {
	tx, err := g.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, eris.Wrap(err, "gateway: begin read-only tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	rows, err := tx.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []map[string]any{}
	}
	return out, nil
}

const insertLog = `INSERT INTO sql_editor_logs
	(sql_text, rows_returned, duration_ms, status, error_message, auth_mode)
	VALUES ($1, $2, $3, $4, $5, $6)`

// record writes one sql_editor_logs row. A failed write is logged and does
// not change the caller's result.
func (g *Gateway) record(ctx context.Context, sql string, n int, durationMS int64, queryErr error) {
	status := StatusSuccess
	var msg *string
	if queryErr != nil {
		status = StatusError
		m := queryErr.Error()
		msg = &m
	}

	_, err := g.pool.Exec(context.WithoutCancel(ctx), insertLog, sql, n, durationMS, status, msg, authModeAdminToken)
	if err != nil {
		g.log.Warn("sql editor log write failed", zap.Error(err))
	}

	fields := []zap.Field{zap.String("status", status), zap.Int("rows", n), zap.Int64("duration_ms", durationMS)}
	var rej *RejectedError
	switch {
	case errors.As(queryErr, &rej):
		g.log.Info("query rejected", append(fields, zap.String("reason", rej.Reason))...)
	case queryErr != nil:
		g.log.Info("query failed", append(fields, zap.Error(queryErr))...)
	default:
		g.log.Info("query executed", fields...)
	}
}
