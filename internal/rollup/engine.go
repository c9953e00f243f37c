// Package rollup keeps the per-dimension financial rollups and the grand totals of
// one scope. Every slot loads, fails and retries on its own.
package rollup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"survey-bknd/internal/apperr"
	"survey-bknd/internal/debounce"
	"survey-bknd/internal/finance"
	"survey-bknd/internal/latest"
	"survey-bknd/internal/metrics"
	"survey-bknd/internal/models"
)

const (
	OpFetchRollup      = "fetchRollup"
	OpFetchGrandTotals = "fetchGrandTotals"
)

// Source is the rollup side of the aggregation service.
type Source interface {
	FetchRollup(ctx context.Context, scope models.FinanceScope, dim models.Dimension) ([]models.RollupRow, error)
	FetchGrandTotals(ctx context.Context, scope models.FinanceScope) (models.GrandTotals, error)
}

type Config struct {
	Window  time.Duration
	Clock   debounce.Clock
	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

// Row is a rollup row with its reconciliation badge.
type Row struct {
	models.RollupRow
	PendingReconciliation bool `json:"pending_reconciliation"`
}

type DimensionState struct {
	Status models.QueryStatus `json:"status"`
	Rows   []Row              `json:"rows"`
	// Total sums the rows of the dimension.
	Total Row           `json:"total"`
	Err   *apperr.Error `json:"error,omitempty"`
}

type TotalsState struct {
	Status models.QueryStatus  `json:"status"`
	Totals *models.GrandTotals `json:"totals"`
	Err    *apperr.Error       `json:"error,omitempty"`
}

type Snapshot struct {
	Scope      models.FinanceScope                 `json:"scope"`
	Dimensions map[models.Dimension]DimensionState `json:"dimensions"`
	Totals     TotalsState                         `json:"totals"`
}

type dimSlot struct {
	gate   latest.Gate
	status models.QueryStatus
	rows   []models.RollupRow
	err    *apperr.Error
}

type totalsSlot struct {
	gate   latest.Gate
	status models.QueryStatus
	totals *models.GrandTotals
	err    *apperr.Error
}

type Engine struct {
	src      Source
	debounce *debounce.Scheduler
	log      *zap.Logger
	rec      *metrics.Recorder

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	closed bool
	scope  models.FinanceScope
	dims   map[models.Dimension]*dimSlot
	totals totalsSlot
}

func NewEngine(src Source, cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		src:      src,
		debounce: debounce.New(cfg.Window, cfg.Clock),
		log:      cfg.Logger.Named("rollup"),
		rec:      cfg.Metrics,
		ctx:      ctx,
		cancel:   cancel,
		dims:     make(map[models.Dimension]*dimSlot, len(models.Dimensions)),
		totals:   totalsSlot{status: models.QueryIdle},
	}
	for _, d := range models.Dimensions {
		e.dims[d] = &dimSlot{status: models.QueryIdle}
	}
	return e
}

type dispatch struct {
	ctx    context.Context
	ticket latest.Ticket
}

// SetScope moves every slot to the new scope. The slots load once the debounce
// window passes; responses for an earlier scope never apply.
func (e *Engine) SetScope(scope models.FinanceScope) {
	scope = scope.Normalize()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.scope = scope

	dims := make(map[models.Dimension]dispatch, len(e.dims))
	for d, slot := range e.dims {
		slot.status = models.QueryPending
		ctx, t := slot.gate.Issue(e.ctx)
		dims[d] = dispatch{ctx, t}
	}
	e.totals.status = models.QueryPending
	tctx, tt := e.totals.gate.Issue(e.ctx)

	e.debounce.Schedule(func() {
		for d, req := range dims {
			go e.fetchDimension(req, scope, d)
		}
		e.fetchTotals(dispatch{tctx, tt}, scope)
	})
}

// RetryDimension reloads one dimension for the current scope, leaving the other
// slots untouched.
func (e *Engine) RetryDimension(d models.Dimension) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	slot, ok := e.dims[d]
	if !ok {
		return fmt.Errorf("unknown dimension %q", d)
	}
	if e.closed {
		return nil
	}
	slot.status = models.QueryPending
	ctx, t := slot.gate.Issue(e.ctx)
	go e.fetchDimension(dispatch{ctx, t}, e.scope, d)
	return nil
}

// RetryTotals reloads the grand totals for the current scope.
func (e *Engine) RetryTotals() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.totals.status = models.QueryPending
	ctx, t := e.totals.gate.Issue(e.ctx)
	go e.fetchTotals(dispatch{ctx, t}, e.scope)
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Scope:      e.scope,
		Dimensions: make(map[models.Dimension]DimensionState, len(e.dims)),
		Totals: TotalsState{
			Status: e.totals.status,
			Err:    e.totals.err,
		},
	}
	if e.totals.totals != nil {
		t := *e.totals.totals
		snap.Totals.Totals = &t
	}
	for d, slot := range e.dims {
		rows := make([]Row, 0, len(slot.rows))
		for _, r := range slot.rows {
			rows = append(rows, badge(r))
		}
		snap.Dimensions[d] = DimensionState{
			Status: slot.status,
			Rows:   rows,
			Total:  badge(finance.Total(string(d), slot.rows)),
			Err:    slot.err,
		}
	}
	return snap
}

// Close cancels pending and in-flight loads. The state is frozen afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.debounce.Cancel()
	for _, slot := range e.dims {
		slot.gate.Invalidate()
	}
	e.totals.gate.Invalidate()
	e.cancel()
}

func (e *Engine) fetchDimension(req dispatch, scope models.FinanceScope, d models.Dimension) {
	if !e.live(func() bool { return e.dims[d].gate.Current(req.ticket) }) {
		return
	}

	start := time.Now()
	rows, err := e.src.FetchRollup(req.ctx, scope, d)
	elapsed := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()
	slot := e.dims[d]
	if e.closed || !slot.gate.Current(req.ticket) {
		e.rec.StreamResponse(metrics.StreamRollup, metrics.OutcomeStale, elapsed)
		return
	}
	slot.gate.Done(req.ticket)

	if err != nil {
		slot.status = models.QueryFailure
		slot.err = apperr.Classify(OpFetchRollup, err)
		e.rec.StreamResponse(metrics.StreamRollup, metrics.OutcomeFailure, elapsed)
		e.log.Warn("failed to load rollup",
			zap.String("dimension", string(d)),
			zap.String("scope", scope.Key()),
			zap.Error(err),
		)
		return
	}
	if rows == nil {
		rows = []models.RollupRow{}
	}
	slot.status = models.QuerySuccess
	slot.rows = rows
	slot.err = nil
	e.rec.StreamResponse(metrics.StreamRollup, metrics.OutcomeSuccess, elapsed)
}

func (e *Engine) fetchTotals(req dispatch, scope models.FinanceScope) {
	if !e.live(func() bool { return e.totals.gate.Current(req.ticket) }) {
		return
	}

	start := time.Now()
	totals, err := e.src.FetchGrandTotals(req.ctx, scope)
	elapsed := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || !e.totals.gate.Current(req.ticket) {
		e.rec.StreamResponse(metrics.StreamRollup, metrics.OutcomeStale, elapsed)
		return
	}
	e.totals.gate.Done(req.ticket)

	if err != nil {
		e.totals.status = models.QueryFailure
		e.totals.err = apperr.Classify(OpFetchGrandTotals, err)
		e.rec.StreamResponse(metrics.StreamRollup, metrics.OutcomeFailure, elapsed)
		e.log.Warn("failed to load grand totals", zap.String("scope", scope.Key()), zap.Error(err))
		return
	}
	e.totals.status = models.QuerySuccess
	e.totals.totals = &totals
	e.totals.err = nil
	e.rec.StreamResponse(metrics.StreamRollup, metrics.OutcomeSuccess, elapsed)
}

func (e *Engine) live(current func() bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed && current()
}

func badge(r models.RollupRow) Row {
	return Row{RollupRow: r, PendingReconciliation: r.PendingReconciliation()}
}
