// Package views holds the server side state of dashboard sessions: a list view
// (filters, location options and the record stream) and a rollup view (scope and
// rollup slots). Sessions live until deleted or idle for too long.
package views

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"survey-bknd/internal/debounce"
	"survey-bknd/internal/filters"
	"survey-bknd/internal/hierarchy"
	"survey-bknd/internal/metrics"
	"survey-bknd/internal/models"
	"survey-bknd/internal/rollup"
	"survey-bknd/internal/units"
)

type Config struct {
	Units     units.Fetcher
	Locations hierarchy.Source
	Rollups   rollup.Source

	Window          time.Duration
	Clock           debounce.Clock
	Reference       func() models.Month
	DefaultPageSize int
	MaxPageSize     int
	IdleTTL         time.Duration
	// Now is used for idle tracking; defaults to time.Now
	Now func() time.Time

	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

type Manager struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	lists   map[string]*ListView
	rollups map[string]*RollupView
}

func NewManager(cfg Config) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = filters.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = filters.MaxPageSize
	}
	return &Manager{
		cfg:     cfg,
		log:     cfg.Logger.Named("views"),
		lists:   map[string]*ListView{},
		rollups: map[string]*RollupView{},
	}
}

// CreateList starts a list view with p applied to the default filters and
// triggers the first load.
func (m *Manager) CreateList(p filters.Patch) *ListView {
	v := &ListView{
		ID:          uuid.NewString(),
		defaultSize: m.cfg.DefaultPageSize,
		maxSize:     m.cfg.MaxPageSize,
		resolver:    hierarchy.NewResolver(m.cfg.Locations, m.cfg.Logger, m.cfg.Metrics),
		stream: units.NewStream(m.cfg.Units, units.Config{
			Window:    m.cfg.Window,
			Clock:     m.cfg.Clock,
			Reference: m.cfg.Reference,
			Logger:    m.cfg.Logger,
			Metrics:   m.cfg.Metrics,
		}),
		lastSeen: m.cfg.Now(),
	}
	v.start(p.Apply(filters.New(m.cfg.DefaultPageSize)))

	m.mu.Lock()
	m.lists[v.ID] = v
	m.mu.Unlock()
	m.log.Debug("list view created", zap.String("view_id", v.ID))
	return v
}

// List returns the view and marks it as used.
func (m *Manager) List(id string) (*ListView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.lists[id]
	if ok {
		v.touch(m.cfg.Now())
	}
	return v, ok
}

func (m *Manager) DeleteList(id string) bool {
	m.mu.Lock()
	v, ok := m.lists[id]
	delete(m.lists, id)
	m.mu.Unlock()
	if ok {
		v.Close()
	}
	return ok
}

// CreateRollup starts a rollup view for scope and triggers the first load.
func (m *Manager) CreateRollup(scope models.FinanceScope) *RollupView {
	v := &RollupView{
		ID: uuid.NewString(),
		engine: rollup.NewEngine(m.cfg.Rollups, rollup.Config{
			Window:  m.cfg.Window,
			Clock:   m.cfg.Clock,
			Logger:  m.cfg.Logger,
			Metrics: m.cfg.Metrics,
		}),
		reference: m.cfg.Reference,
		lastSeen:  m.cfg.Now(),
	}
	v.SetScope(scope)

	m.mu.Lock()
	m.rollups[v.ID] = v
	m.mu.Unlock()
	m.log.Debug("rollup view created", zap.String("view_id", v.ID))
	return v
}

func (m *Manager) Rollup(id string) (*RollupView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.rollups[id]
	if ok {
		v.touch(m.cfg.Now())
	}
	return v, ok
}

func (m *Manager) DeleteRollup(id string) bool {
	m.mu.Lock()
	v, ok := m.rollups[id]
	delete(m.rollups, id)
	m.mu.Unlock()
	if ok {
		v.Close()
	}
	return ok
}

// Sweep closes every view unused since before now minus the idle TTL and
// returns how many were evicted.
func (m *Manager) Sweep(now time.Time) int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	cutoff := now.Add(-m.cfg.IdleTTL)

	var closers []interface{ Close() }
	m.mu.Lock()
	for id, v := range m.lists {
		if v.idleSince(cutoff) {
			delete(m.lists, id)
			closers = append(closers, v)
		}
	}
	for id, v := range m.rollups {
		if v.idleSince(cutoff) {
			delete(m.rollups, id)
			closers = append(closers, v)
		}
	}
	m.mu.Unlock()

	for _, c := range closers {
		c.Close()
	}
	if len(closers) > 0 {
		m.log.Info("evicted idle views", zap.Int("count", len(closers)))
	}
	return len(closers)
}

// Run sweeps idle views until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.cfg.IdleTTL <= 0 {
		return
	}
	interval := m.cfg.IdleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.cfg.Now())
		}
	}
}

// Close tears down every view.
func (m *Manager) Close() {
	m.mu.Lock()
	lists, rollups := m.lists, m.rollups
	m.lists = map[string]*ListView{}
	m.rollups = map[string]*RollupView{}
	m.mu.Unlock()

	for _, v := range lists {
		v.Close()
	}
	for _, v := range rollups {
		v.Close()
	}
}

// Counts returns the number of open list and rollup views.
func (m *Manager) Counts() (lists, rollups int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lists), len(m.rollups)
}
