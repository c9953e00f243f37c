// Package hierarchy resolves the dependent district → tehsil → area option lists
// (plus the surveyors scoped by them) as the geographic selection changes.
package hierarchy

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"survey-bknd/internal/filters"
	"survey-bknd/internal/latest"
	"survey-bknd/internal/metrics"
)

// Source is the remote side of the location lookups.
type Source interface {
	Districts(ctx context.Context) ([]string, error)
	Tehsils(ctx context.Context, district string) ([]string, error)
	Areas(ctx context.Context, district, tehsil string) ([]string, error)
	Surveyors(ctx context.Context, district, tehsil, area string) ([]string, error)
}

// Options is a copy of the currently visible option lists.
type Options struct {
	Districts []string `json:"districts"`
	Tehsils   []string `json:"tehsils"`
	Areas     []string `json:"areas"`
	Surveyors []string `json:"surveyors"`
}

// level is one node of the dependency graph. It re-resolves only when its key
// changes and owns the cancellation of its own in-flight fetch.
type level struct {
	name      string
	key       func(filters.Selection) string
	enabled   func(filters.Selection) bool
	fetch     func(context.Context, filters.Selection) ([]string, error)
	normalize func([]string) []string

	keyed  bool
	cur    string
	values []string
	gate   latest.Gate
}

type Resolver struct {
	mu     sync.Mutex
	log    *zap.Logger
	rec    *metrics.Recorder
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool

	districts        []string
	districtsLoaded  bool
	districtsLoading bool
	districtFetch    func(context.Context) ([]string, error)

	tehsils   *level
	areas     *level
	surveyors *level
}

func NewResolver(src Source, log *zap.Logger, rec *metrics.Recorder) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Resolver{
		log:           log.Named("hierarchy"),
		rec:           rec,
		ctx:           ctx,
		cancel:        cancel,
		districtFetch: src.Districts,
	}

	r.tehsils = &level{
		name:    "tehsils",
		key:     func(s filters.Selection) string { return s.District },
		enabled: func(s filters.Selection) bool { return s.District != "" },
		fetch: func(ctx context.Context, s filters.Selection) ([]string, error) {
			return src.Tehsils(ctx, s.District)
		},
		normalize: NormalizeNames,
	}
	r.areas = &level{
		name:    "areas",
		key:     func(s filters.Selection) string { return s.District + "|" + s.Tehsil },
		enabled: func(s filters.Selection) bool { return s.Tehsil != "" },
		fetch: func(ctx context.Context, s filters.Selection) ([]string, error) {
			return src.Areas(ctx, s.District, s.Tehsil)
		},
		normalize: NormalizeNames,
	}
	r.surveyors = &level{
		name:    "surveyors",
		key:     func(s filters.Selection) string { return s.District + "|" + s.Tehsil + "|" + s.Area },
		enabled: func(filters.Selection) bool { return true },
		fetch: func(ctx context.Context, s filters.Selection) ([]string, error) {
			return src.Surveyors(ctx, s.District, s.Tehsil, s.Area)
		},
		normalize: normalizeIDs,
	}
	return r
}

// Select updates the geographic selection. Levels whose key changed are emptied
// before this call returns; levels whose key is unchanged are left alone.
func (r *Resolver) Select(sel filters.Selection) {
	sel = filters.Selection{
		District: strings.ToUpper(strings.TrimSpace(sel.District)),
		Tehsil:   strings.ToUpper(strings.TrimSpace(sel.Tehsil)),
		Area:     strings.ToUpper(strings.TrimSpace(sel.Area)),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	r.loadDistrictsLocked()
	for _, l := range []*level{r.tehsils, r.areas, r.surveyors} {
		r.resolveLocked(l, sel)
	}
}

// Options returns copies of the visible lists.
func (r *Resolver) Options() Options {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Options{
		Districts: clone(r.districts),
		Tehsils:   clone(r.tehsils.values),
		Areas:     clone(r.areas.values),
		Surveyors: clone(r.surveyors.values),
	}
}

// Wait blocks until every fetch started so far has settled.
func (r *Resolver) Wait() {
	r.wg.Wait()
}

// Close cancels in-flight fetches; nothing changes afterwards.
func (r *Resolver) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.cancel()
	for _, l := range []*level{r.tehsils, r.areas, r.surveyors} {
		l.gate.Invalidate()
	}
}

func (r *Resolver) loadDistrictsLocked() {
	if r.districtsLoaded || r.districtsLoading {
		return
	}
	r.districtsLoading = true
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		start := time.Now()
		values, err := r.districtFetch(r.ctx)

		r.mu.Lock()
		defer r.mu.Unlock()
		r.districtsLoading = false
		if r.closed {
			return
		}
		// a failed load leaves the list empty and is retried on the next Select
		if err != nil {
			r.log.Warn("failed to load districts", zap.Error(err))
			r.rec.StreamResponse(metrics.StreamHierarchy, metrics.OutcomeFailure, time.Since(start))
			r.districts = nil
			return
		}
		r.districts = NormalizeNames(values)
		r.districtsLoaded = true
		r.rec.StreamResponse(metrics.StreamHierarchy, metrics.OutcomeSuccess, time.Since(start))
	}()
}

func (r *Resolver) resolveLocked(l *level, sel filters.Selection) {
	key := l.key(sel)
	if l.keyed && key == l.cur {
		return
	}
	l.keyed = true
	l.cur = key
	l.gate.Invalidate()
	l.values = nil

	if !l.enabled(sel) {
		return
	}

	ctx, ticket := l.gate.Issue(r.ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		start := time.Now()
		values, err := l.fetch(ctx, sel)

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed || !l.gate.Current(ticket) {
			r.rec.StreamResponse(metrics.StreamHierarchy, metrics.OutcomeStale, time.Since(start))
			return
		}
		l.gate.Done(ticket)
		if err != nil {
			r.log.Warn("failed to resolve locations",
				zap.String("level", l.name),
				zap.String("key", key),
				zap.Error(err),
			)
			r.rec.StreamResponse(metrics.StreamHierarchy, metrics.OutcomeFailure, time.Since(start))
			l.values = nil
			return
		}
		l.values = l.normalize(values)
		r.rec.StreamResponse(metrics.StreamHierarchy, metrics.OutcomeSuccess, time.Since(start))
	}()
}

// NormalizeNames trims, upper-cases, de-duplicates and sorts location names.
func NormalizeNames(values []string) []string {
	return uniqueSorted(values, func(s string) string { return strings.ToUpper(strings.TrimSpace(s)) })
}

func normalizeIDs(values []string) []string {
	return uniqueSorted(values, strings.TrimSpace)
}

func uniqueSorted(values []string, norm func(string) string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = norm(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func clone(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}
