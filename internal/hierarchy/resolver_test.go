package hierarchy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"survey-bknd/internal/filters"
)

type fakeSource struct {
	mu        sync.Mutex
	calls     map[string]int
	gates     map[string]chan struct{}
	districts []string
	tehsils   map[string][]string
	areas     map[string][]string
	fail      map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calls:     map[string]int{},
		gates:     map[string]chan struct{}{},
		districts: []string{" sargodha", "Jhang ", "SARGODHA", "faisalabad"},
		tehsils: map[string][]string{
			"SARGODHA": {"bhalwal", "Sillanwali", "BHALWAL"},
			"JHANG":    {"shorkot"},
		},
		areas: map[string][]string{
			"SARGODHA|BHALWAL": {"uc-2", "UC-1"},
		},
		fail: map[string]error{},
	}
}

// block makes calls with the given key wait until the returned func is called.
func (f *fakeSource) block(key string) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[key] = ch
	return func() { close(ch) }
}

func (f *fakeSource) enter(key string) error {
	f.mu.Lock()
	f.calls[key]++
	ch := f.gates[key]
	err := f.fail[key]
	f.mu.Unlock()
	if ch != nil {
		<-ch
	}
	return err
}

func (f *fakeSource) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *fakeSource) Districts(ctx context.Context) ([]string, error) {
	if err := f.enter("districts"); err != nil {
		return nil, err
	}
	return f.districts, nil
}

func (f *fakeSource) Tehsils(ctx context.Context, district string) ([]string, error) {
	if err := f.enter("tehsils:" + district); err != nil {
		return nil, err
	}
	return f.tehsils[district], nil
}

func (f *fakeSource) Areas(ctx context.Context, district, tehsil string) ([]string, error) {
	if err := f.enter("areas:" + district + "|" + tehsil); err != nil {
		return nil, err
	}
	return f.areas[district+"|"+tehsil], nil
}

func (f *fakeSource) Surveyors(ctx context.Context, district, tehsil, area string) ([]string, error) {
	if err := f.enter("surveyors"); err != nil {
		return nil, err
	}
	return []string{"sv-2 ", "sv-1", "sv-2"}, nil
}

func TestResolverNormalizesAndCascades(t *testing.T) {
	src := newFakeSource()
	r := NewResolver(src, zap.NewNop(), nil)
	defer r.Close()

	r.Select(filters.Selection{District: "Sargodha", Tehsil: "bhalwal"})
	r.Wait()

	opts := r.Options()
	assert.Equal(t, []string{"FAISALABAD", "JHANG", "SARGODHA"}, opts.Districts)
	assert.Equal(t, []string{"BHALWAL", "SILLANWALI"}, opts.Tehsils)
	assert.Equal(t, []string{"UC-1", "UC-2"}, opts.Areas)
	assert.Equal(t, []string{"sv-1", "sv-2"}, opts.Surveyors)
}

func TestDistrictsFetchedOnce(t *testing.T) {
	src := newFakeSource()
	r := NewResolver(src, zap.NewNop(), nil)
	defer r.Close()

	r.Select(filters.Selection{})
	r.Wait()
	r.Select(filters.Selection{District: "JHANG"})
	r.Wait()
	r.Select(filters.Selection{District: "SARGODHA"})
	r.Wait()

	assert.Equal(t, 1, src.count("districts"))
}

func TestUnchangedSelectionDoesNotRefetch(t *testing.T) {
	src := newFakeSource()
	r := NewResolver(src, zap.NewNop(), nil)
	defer r.Close()

	sel := filters.Selection{District: "SARGODHA", Tehsil: "BHALWAL"}
	r.Select(sel)
	r.Wait()
	// a search or sort change re-selects the same geography
	r.Select(sel)
	r.Select(filters.Selection{District: " sargodha ", Tehsil: "Bhalwal"})
	r.Wait()

	assert.Equal(t, 1, src.count("tehsils:SARGODHA"))
	assert.Equal(t, 1, src.count("areas:SARGODHA|BHALWAL"))
	assert.Equal(t, 1, src.count("surveyors"))
}

func TestClearingDistrictDiscardsPendingTehsils(t *testing.T) {
	src := newFakeSource()
	release := src.block("tehsils:SARGODHA")
	r := NewResolver(src, zap.NewNop(), nil)
	defer r.Close()

	r.Select(filters.Selection{District: "SARGODHA"})
	require.Eventually(t, func() bool { return src.count("tehsils:SARGODHA") == 1 }, time.Second, time.Millisecond)

	r.Select(filters.Selection{})
	opts := r.Options()
	assert.Empty(t, opts.Tehsils)
	assert.Empty(t, opts.Areas)

	release()
	r.Wait()

	opts = r.Options()
	assert.NotNil(t, opts.Tehsils)
	assert.Empty(t, opts.Tehsils)
	assert.Empty(t, opts.Areas)
}

func TestChangingDistrictEmptiesChildrenSynchronously(t *testing.T) {
	src := newFakeSource()
	r := NewResolver(src, zap.NewNop(), nil)
	defer r.Close()

	r.Select(filters.Selection{District: "SARGODHA", Tehsil: "BHALWAL"})
	r.Wait()
	require.NotEmpty(t, r.Options().Areas)

	release := src.block("tehsils:JHANG")
	r.Select(filters.Selection{District: "JHANG"})

	opts := r.Options()
	assert.Empty(t, opts.Tehsils)
	assert.Empty(t, opts.Areas)

	release()
	r.Wait()
	assert.Equal(t, []string{"SHORKOT"}, r.Options().Tehsils)
}

func TestFailedLevelDegradesToEmpty(t *testing.T) {
	src := newFakeSource()
	src.fail["tehsils:SARGODHA"] = errors.New("rpc unavailable")
	r := NewResolver(src, zap.NewNop(), nil)
	defer r.Close()

	r.Select(filters.Selection{District: "SARGODHA"})
	r.Wait()

	opts := r.Options()
	assert.Empty(t, opts.Tehsils)
	assert.NotEmpty(t, opts.Districts)
}

func TestFailedDistrictsRetriedOnNextSelect(t *testing.T) {
	src := newFakeSource()
	src.fail["districts"] = errors.New("timeout")
	r := NewResolver(src, zap.NewNop(), nil)
	defer r.Close()

	r.Select(filters.Selection{})
	r.Wait()
	assert.Empty(t, r.Options().Districts)

	src.mu.Lock()
	delete(src.fail, "districts")
	src.mu.Unlock()

	r.Select(filters.Selection{})
	r.Wait()
	assert.Len(t, r.Options().Districts, 3)
	assert.Equal(t, 2, src.count("districts"))
}

func TestCloseDropsLateResponses(t *testing.T) {
	src := newFakeSource()
	release := src.block("tehsils:SARGODHA")
	r := NewResolver(src, zap.NewNop(), nil)

	r.Select(filters.Selection{District: "SARGODHA"})
	require.Eventually(t, func() bool { return src.count("tehsils:SARGODHA") == 1 }, time.Second, time.Millisecond)
	r.Close()
	release()
	r.Wait()

	assert.Empty(t, r.Options().Tehsils)
}
