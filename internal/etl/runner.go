// Package etl orchestrates one ingestion run: the domestic filings stage
// followed by the foreign bulk stage, bracketed by an etl_runs record.
package etl

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/holdings-etl/internal/etl/dart"
	"github.com/sells-group/holdings-etl/internal/etl/sec13f"
	"github.com/sells-group/holdings-etl/internal/model"
)

// ErrRunInProgress is returned when a run is requested while another is
// still executing in this process. No run record is created.
var ErrRunInProgress = errors.New("etl: run already in progress")

// MessageCompleted is the terminal message of a successful run.
const MessageCompleted = "completed"

// DomesticStage ingests OpenDART filings.
type DomesticStage interface {
	Run(ctx context.Context) (*dart.Stats, error)
}

// ForeignStage ingests the SEC 13F data sets.
type ForeignStage interface {
	Run(ctx context.Context) (*sec13f.Stats, error)
}

// Store records runs and the overall success watermark.
type Store interface {
	StartRun(ctx context.Context) (*model.EtlRun, error)
	FinishRun(ctx context.Context, id string, status model.EtlRunStatus, message string) error
	SetState(ctx context.Context, key, value string) error
}

// Outcome is the terminal status of a run.
type Outcome struct {
	Status  model.EtlRunStatus `json:"status"`
	Message string             `json:"message"`
}

// Result is returned to the trigger caller.
type Result struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Result     Outcome       `json:"result"`
	Domestic   *dart.Stats   `json:"domestic,omitempty"`
	Foreign    *sec13f.Stats `json:"foreign,omitempty"`
}

// OK reports whether the run finished successfully.
func (r *Result) OK() bool { return r.Result.Status == model.EtlRunOK }

// Runner executes runs one at a time.
type Runner struct {
	store    Store
	domestic DomesticStage
	foreign  ForeignStage

	mu  sync.Mutex
	now func() time.Time
	log *zap.Logger
}

// NewRunner creates a Runner.
func NewRunner(store Store, domestic DomesticStage, foreign ForeignStage) *Runner {
	return &Runner{
		store:    store,
		domestic: domestic,
		foreign:  foreign,
		now:      time.Now,
		log:      zap.L().With(zap.String("component", "etl")),
	}
}

// Run performs one full ingestion. A stage error ends the run and becomes
// its terminal message; the returned error is non-nil only when the run
// could not be recorded at all, or when another run holds the lock.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	run, err := r.store.StartRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "etl: start run")
	}
	log := r.log.With(zap.String("run_id", run.ID))
	log.Info("run started")

	res := &Result{RunID: run.ID, StartedAt: run.StartedAt}

	stageErr := r.stages(ctx, res)

	res.Result = Outcome{Status: model.EtlRunOK, Message: MessageCompleted}
	if stageErr != nil {
		res.Result = Outcome{Status: model.EtlRunError, Message: stageErr.Error()}
		log.Error("run failed", zap.Error(stageErr))
	}

	// The run must be closed even when the caller's context is gone.
	finishCtx := context.WithoutCancel(ctx)
	if err := r.store.FinishRun(finishCtx, run.ID, res.Result.Status, res.Result.Message); err != nil {
		return nil, eris.Wrap(err, "etl: finish run")
	}
	res.FinishedAt = r.now().UTC()

	log.Info("run finished",
		zap.String("status", string(res.Result.Status)),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

func (r *Runner) stages(ctx context.Context, res *Result) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eris.Errorf("etl: panic: %v", p)
		}
	}()

	res.Domestic, err = r.domestic.Run(ctx)
	if err != nil {
		return err
	}
	res.Foreign, err = r.foreign.Run(ctx)
	if err != nil {
		return err
	}

	if err := r.store.SetState(ctx, model.StateLastSuccessfulRunAt, r.now().UTC().Format(time.RFC3339)); err != nil {
		return eris.Wrap(err, "etl: record success")
	}
	return nil
}
