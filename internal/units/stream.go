// Package units runs the debounced, paginated record query behind the unit list
// and hydrates each page with its financial figures.
package units

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"survey-bknd/internal/apperr"
	"survey-bknd/internal/debounce"
	"survey-bknd/internal/filters"
	"survey-bknd/internal/finance"
	"survey-bknd/internal/latest"
	"survey-bknd/internal/metrics"
	"survey-bknd/internal/models"
)

// OpFetchUnits names the remote call in classified errors and metrics.
const OpFetchUnits = "fetchHydratedUnits"

// DefaultWindow is the debounce applied to filter changes.
const DefaultWindow = 400 * time.Millisecond

// Fetcher is the units contract of the aggregation service.
type Fetcher interface {
	FetchHydratedUnits(ctx context.Context, f filters.State) (models.UnitPage, error)
}

type Config struct {
	Window time.Duration
	Clock  debounce.Clock
	// Reference returns the month the 12 month timelines end at.
	Reference func() models.Month
	Logger    *zap.Logger
	Metrics   *metrics.Recorder
}

// Snapshot is a consistent copy of the stream state.
type Snapshot struct {
	Status     models.QueryStatus    `json:"status"`
	Seq        uint64                `json:"seq"`
	Filters    filters.State         `json:"filters"`
	TotalCount int                   `json:"total_count"`
	Records    []models.HydratedUnit `json:"records"`
	Err        *apperr.Error         `json:"error,omitempty"`
}

type Stream struct {
	fetcher  Fetcher
	debounce *debounce.Scheduler
	ref      func() models.Month
	log      *zap.Logger
	rec      *metrics.Recorder

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	gate    latest.Gate
	closed  bool
	dropped int

	status  models.QueryStatus
	filters filters.State
	total   int
	records []models.HydratedUnit
	err     *apperr.Error
}

func NewStream(fetcher Fetcher, cfg Config) *Stream {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Reference == nil {
		cfg.Reference = func() models.Month { return models.MonthOf(time.Now()) }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		fetcher:  fetcher,
		debounce: debounce.New(cfg.Window, cfg.Clock),
		ref:      cfg.Reference,
		log:      cfg.Logger.Named("units"),
		rec:      cfg.Metrics,
		ctx:      ctx,
		cancel:   cancel,
		status:   models.QueryIdle,
		records:  []models.HydratedUnit{},
	}
}

// Trigger records new filters and schedules a fetch once the debounce window
// passes. Whatever was in flight is canceled and can no longer apply.
func (s *Stream) Trigger(f filters.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.filters = f
	s.status = models.QueryPending
	ctx, ticket := s.gate.Issue(s.ctx)
	s.debounce.Schedule(func() { s.dispatch(ctx, ticket, f) })
}

// Retry fetches the current filters again without waiting for the window.
func (s *Stream) Retry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.debounce.Cancel()
	s.status = models.QueryPending
	f := s.filters
	ctx, ticket := s.gate.Issue(s.ctx)
	go s.dispatch(ctx, ticket, f)
}

func (s *Stream) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := make([]models.HydratedUnit, len(s.records))
	copy(records, s.records)
	return Snapshot{
		Status:     s.status,
		Seq:        s.gate.Seq(),
		Filters:    s.filters,
		TotalCount: s.total,
		Records:    records,
		Err:        s.err,
	}
}

// Dropped returns how many responses arrived after being superseded.
func (s *Stream) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close cancels the pending and in-flight fetches. The state is frozen afterwards.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.debounce.Cancel()
	s.gate.Invalidate()
	s.cancel()
}

func (s *Stream) dispatch(ctx context.Context, ticket latest.Ticket, f filters.State) {
	s.mu.Lock()
	live := !s.closed && s.gate.Current(ticket)
	s.mu.Unlock()
	if !live {
		return
	}

	start := time.Now()
	page, err := s.fetcher.FetchHydratedUnits(ctx, f)
	elapsed := time.Since(start)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.gate.Current(ticket) {
		s.dropped++
		s.rec.StreamResponse(metrics.StreamUnits, metrics.OutcomeStale, elapsed)
		s.log.Debug("dropped stale units response", zap.Uint64("ticket", uint64(ticket)))
		return
	}
	s.gate.Done(ticket)

	if err != nil {
		s.status = models.QueryFailure
		s.err = apperr.Classify(OpFetchUnits, err)
		s.rec.StreamResponse(metrics.StreamUnits, metrics.OutcomeFailure, elapsed)
		s.log.Warn("failed to fetch units",
			zap.String("district", f.District),
			zap.String("tehsil", f.Tehsil),
			zap.Int("page", f.PageIndex),
			zap.Error(err),
		)
		return
	}

	s.status = models.QuerySuccess
	s.err = nil
	s.total = page.TotalCount
	s.records = finance.HydrateAll(page.Records, s.ref())
	s.rec.StreamResponse(metrics.StreamUnits, metrics.OutcomeSuccess, elapsed)
}
