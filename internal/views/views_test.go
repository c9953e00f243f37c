package views

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"survey-bknd/internal/filters"
	"survey-bknd/internal/models"
)

// backend answers every call immediately and records what it was asked.
type backend struct {
	mu      sync.Mutex
	queries []filters.State
	scopes  []models.FinanceScope
	tehsils int
}

func (b *backend) FetchHydratedUnits(_ context.Context, f filters.State) (models.UnitPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queries = append(b.queries, f)
	return models.UnitPage{TotalCount: 1, Records: []models.SurveyUnit{{SurveyID: "S-1", District: f.District}}}, nil
}

func (b *backend) Districts(context.Context) ([]string, error) {
	return []string{"JHANG", "SARGODHA"}, nil
}

func (b *backend) Tehsils(_ context.Context, district string) ([]string, error) {
	b.mu.Lock()
	b.tehsils++
	b.mu.Unlock()
	if district == "SARGODHA" {
		return []string{"BHALWAL", "SILLANWALI"}, nil
	}
	return []string{}, nil
}

func (b *backend) Areas(context.Context, string, string) ([]string, error) {
	return []string{"UC-1"}, nil
}

func (b *backend) Surveyors(context.Context, string, string, string) ([]string, error) {
	return []string{"sv-1"}, nil
}

func (b *backend) FetchRollup(_ context.Context, scope models.FinanceScope, dim models.Dimension) ([]models.RollupRow, error) {
	b.mu.Lock()
	b.scopes = append(b.scopes, scope)
	b.mu.Unlock()
	return []models.RollupRow{{Name: string(dim), UnitCount: 1}}, nil
}

func (b *backend) FetchGrandTotals(context.Context, models.FinanceScope) (models.GrandTotals, error) {
	return models.GrandTotals{UnitCount: 1}, nil
}

func (b *backend) queryCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queries)
}

var dec2025 = models.NewMonth(2025, time.December)

func newManager(b *backend, now func() time.Time) *Manager {
	return NewManager(Config{
		Units:     b,
		Locations: b,
		Rollups:   b,
		Reference: func() models.Month { return dec2025 },
		IdleTTL:   time.Minute,
		Now:       now,
	})
}

func strPtr(s string) *string { return &s }

func TestListViewLoadsAndCascades(t *testing.T) {
	b := &backend{}
	m := newManager(b, nil)
	defer m.Close()

	v := m.CreateList(filters.Patch{District: strPtr("sargodha"), Tehsil: strPtr("bhalwal")})
	require.Eventually(t, func() bool {
		snap := v.Snapshot()
		return snap.Query.Status == models.QuerySuccess && len(snap.Options.Areas) == 1
	}, time.Second, time.Millisecond)

	snap := v.Snapshot()
	assert.Equal(t, "SARGODHA", snap.Filters.District)
	assert.Equal(t, []string{"BHALWAL", "SILLANWALI"}, snap.Options.Tehsils)
	assert.Equal(t, []string{"JHANG", "SARGODHA"}, snap.Options.Districts)
	require.Len(t, snap.Query.Records, 1)
	assert.Len(t, snap.Query.Records[0].Timeline, models.TimelineLength)

	next := v.Apply(filters.Patch{District: strPtr("jhang")})
	assert.Equal(t, "JHANG", next.District)
	assert.Empty(t, next.Tehsil)

	// the tehsil and area lists are emptied by the time Apply returns
	opts := v.Snapshot().Options
	assert.Empty(t, opts.Areas)

	require.Eventually(t, func() bool { return b.queryCount() == 2 }, time.Second, time.Millisecond)
}

func TestUnchangedPatchDoesNotRefetch(t *testing.T) {
	b := &backend{}
	m := newManager(b, nil)
	defer m.Close()

	v := m.CreateList(filters.Patch{District: strPtr("SARGODHA")})
	require.Eventually(t, func() bool { return v.Snapshot().Query.Status == models.QuerySuccess }, time.Second, time.Millisecond)

	v.Apply(filters.Patch{District: strPtr(" sargodha ")})
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, b.queryCount())
	b.mu.Lock()
	assert.Equal(t, 1, b.tehsils)
	b.mu.Unlock()
}

func TestSearchKeepsLocationOptions(t *testing.T) {
	b := &backend{}
	m := newManager(b, nil)
	defer m.Close()

	v := m.CreateList(filters.Patch{District: strPtr("SARGODHA")})
	require.Eventually(t, func() bool { return len(v.Snapshot().Options.Tehsils) == 2 }, time.Second, time.Millisecond)

	v.Apply(filters.Patch{SearchText: strPtr("S-00")})
	assert.Len(t, v.Snapshot().Options.Tehsils, 2)
	require.Eventually(t, func() bool { return b.queryCount() == 2 }, time.Second, time.Millisecond)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, 1, b.tehsils)
	assert.Equal(t, "S-00", b.queries[1].SearchText)
}

func TestSweepEvictsIdleViews(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	b := &backend{}
	m := newManager(b, clock)
	defer m.Close()

	idle := m.CreateList(filters.Patch{})
	busy := m.CreateRollup(models.FinanceScope{})

	advance(50 * time.Second)
	_, ok := m.Rollup(busy.ID)
	require.True(t, ok)

	advance(20 * time.Second)
	assert.Equal(t, 1, m.Sweep(clock()))

	_, ok = m.List(idle.ID)
	assert.False(t, ok)
	_, ok = m.Rollup(busy.ID)
	assert.True(t, ok)
}

func TestRollupViewDefaultsPeriodAndRetries(t *testing.T) {
	b := &backend{}
	m := newManager(b, nil)
	defer m.Close()

	v := m.CreateRollup(models.FinanceScope{District: "sargodha"})
	require.Eventually(t, func() bool { return v.Snapshot().Totals.Status == models.QuerySuccess }, time.Second, time.Millisecond)

	snap := v.Snapshot()
	assert.Equal(t, dec2025, snap.Scope.Period)
	assert.Equal(t, "SARGODHA", snap.Scope.District)

	assert.NoError(t, v.Retry("uc"))
	assert.NoError(t, v.Retry(RetryTotals))
	assert.Error(t, v.Retry("province"))
}

func TestDeleteClosesView(t *testing.T) {
	b := &backend{}
	m := newManager(b, nil)
	defer m.Close()

	v := m.CreateList(filters.Patch{})
	assert.True(t, m.DeleteList(v.ID))
	assert.False(t, m.DeleteList(v.ID))

	before := v.Snapshot().Filters
	v.Apply(filters.Patch{District: strPtr("JHANG")})
	assert.Equal(t, before, v.Snapshot().Filters)

	lists, rollups := m.Counts()
	assert.Zero(t, lists)
	assert.Zero(t, rollups)
}
