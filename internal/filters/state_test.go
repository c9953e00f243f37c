package filters

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistrictChangeClearsChildren(t *testing.T) {
	s := New(0).WithDistrict("Sargodha").WithTehsil("bhalwal").WithArea(" uc-12 ").WithPage(4)

	require.Equal(t, Selection{District: "SARGODHA", Tehsil: "BHALWAL", Area: "UC-12"}, s.Selection())
	assert.Equal(t, 4, s.PageIndex)

	next := s.WithDistrict("JHANG")
	assert.Equal(t, Selection{District: "JHANG"}, next.Selection())
	assert.Zero(t, next.PageIndex)

	cleared := s.WithDistrict("")
	assert.Equal(t, Selection{}, cleared.Selection())

	// original snapshot is untouched
	assert.Equal(t, "BHALWAL", s.Tehsil)
}

func TestTehsilChangeClearsArea(t *testing.T) {
	s := New(0).WithDistrict("SARGODHA").WithTehsil("BHALWAL").WithArea("UC-12")

	next := s.WithTehsil("SILLANWALI")

	assert.Equal(t, "SARGODHA", next.District)
	assert.Equal(t, "SILLANWALI", next.Tehsil)
	assert.Empty(t, next.Area)
}

func TestSameDistrictKeepsChildren(t *testing.T) {
	s := New(0).WithDistrict("SARGODHA").WithTehsil("BHALWAL")

	assert.Equal(t, s, s.WithDistrict(" sargodha "))
}

func TestSortWhitelist(t *testing.T) {
	s := New(0).WithSort("areaName", "ASC")
	assert.Equal(t, "areaName", s.SortColumn)
	assert.Equal(t, SortAsc, s.SortDirection)
	assert.Equal(t, "su.area_name", s.OrderColumn())

	s = s.WithSort("owner_name; DROP TABLE", "sideways")
	assert.Equal(t, DefaultSortColumn, s.SortColumn)
	assert.Equal(t, SortDesc, s.SortDirection)
	assert.Equal(t, "su.id_numeric", s.OrderColumn())
}

func TestNormalizeClampsPaging(t *testing.T) {
	s := State{PageSize: 5000, PageIndex: -3}.Normalize(DefaultPageSize, MaxPageSize)
	assert.Equal(t, MaxPageSize, s.PageSize)
	assert.Zero(t, s.PageIndex)

	s = State{}.Normalize(DefaultPageSize, MaxPageSize)
	assert.Equal(t, DefaultPageSize, s.PageSize)
	assert.Equal(t, DefaultSortColumn, s.SortColumn)
	assert.Equal(t, SortDesc, s.SortDirection)

	assert.Equal(t, 100, State{PageIndex: 2, PageSize: 50}.Offset())
}

func TestUnitTypeNormalization(t *testing.T) {
	assert.Equal(t, "Domestic", New(0).WithUnitType("DOMESTIC").UnitType)
	assert.Equal(t, "Commercial", New(0).WithUnitType("commercial").UnitType)
	assert.Equal(t, "unknown", New(0).WithUnitType("Unknown").UnitType)
}

func TestPatchAppliesTopDown(t *testing.T) {
	base := New(0).WithDistrict("JHANG").WithTehsil("SHORKOT").WithSearch("abc")

	var p Patch
	require.NoError(t, json.Unmarshal([]byte(`{"district":"sargodha","tehsil":"bhalwal","page_index":3}`), &p))

	next := p.Apply(base)

	assert.Equal(t, "SARGODHA", next.District)
	assert.Equal(t, "BHALWAL", next.Tehsil)
	assert.Equal(t, "abc", next.SearchText)
	assert.Equal(t, 3, next.PageIndex)
}

func TestPatchSearchResetsPage(t *testing.T) {
	base := New(0).WithPage(7)
	text := "S-00"

	next := Patch{SearchText: &text}.Apply(base)

	assert.Zero(t, next.PageIndex)
	assert.Equal(t, base.Selection(), next.Selection())
}

func TestEqual(t *testing.T) {
	a := New(50).WithDistrict("sargodha")
	assert.True(t, a.Equal(New(50).WithDistrict(" SARGODHA ")))
	assert.False(t, a.Equal(a.WithPage(1)))
}
