// Package filters holds the immutable filter/sort/page snapshot that drives the
// record list. Geographic setters cascade: a new district clears tehsil and area,
// a new tehsil clears area.
package filters

import (
	"strings"

	"survey-bknd/internal/models"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"

	DefaultSortColumn = "idNumeric"
	DefaultPageSize   = 50
	MaxPageSize       = 200
)

// sortColumns maps the public sort keys to unit table columns.
var sortColumns = map[string]string{
	"idNumeric":  "su.id_numeric",
	"surveyId":   "su.survey_id",
	"district":   "su.district",
	"tehsil":     "su.tehsil",
	"areaName":   "su.area_name",
	"unitType":   "su.unit_type",
	"status":     "su.status",
	"surveyorId": "su.surveyor_id",
	"createdAt":  "su.created_at",
}

// State is passed by value; setters return a modified copy.
type State struct {
	District      string `json:"district"`
	Tehsil        string `json:"tehsil"`
	Area          string `json:"area"`
	SurveyorID    string `json:"surveyor_id"`
	UnitType      string `json:"unit_type"`
	Status        string `json:"status"`
	SearchText    string `json:"search_text"`
	SortColumn    string `json:"sort_column"`
	SortDirection string `json:"sort_direction"`
	PageIndex     int    `json:"page_index"`
	PageSize      int    `json:"page_size"`
}

// Selection is the geographic part of a State.
type Selection struct {
	District string
	Tehsil   string
	Area     string
}

func New(pageSize int) State {
	return State{
		SortColumn:    DefaultSortColumn,
		SortDirection: SortDesc,
		PageSize:      pageSize,
	}.Normalize(DefaultPageSize, MaxPageSize)
}

func (s State) WithDistrict(district string) State {
	district = normalizeGeo(district)
	if district == s.District {
		return s
	}
	s.District = district
	s.Tehsil = ""
	s.Area = ""
	s.PageIndex = 0
	return s
}

func (s State) WithTehsil(tehsil string) State {
	tehsil = normalizeGeo(tehsil)
	if tehsil == s.Tehsil {
		return s
	}
	s.Tehsil = tehsil
	s.Area = ""
	s.PageIndex = 0
	return s
}

func (s State) WithArea(area string) State {
	area = normalizeGeo(area)
	if area == s.Area {
		return s
	}
	s.Area = area
	s.PageIndex = 0
	return s
}

func (s State) WithSurveyor(id string) State {
	id = strings.TrimSpace(id)
	if id == s.SurveyorID {
		return s
	}
	s.SurveyorID = id
	s.PageIndex = 0
	return s
}

func (s State) WithUnitType(unitType string) State {
	unitType = NormalizeUnitType(unitType)
	if unitType == s.UnitType {
		return s
	}
	s.UnitType = unitType
	s.PageIndex = 0
	return s
}

func (s State) WithStatus(status string) State {
	status = strings.ToUpper(strings.TrimSpace(status))
	if status == s.Status {
		return s
	}
	s.Status = status
	s.PageIndex = 0
	return s
}

func (s State) WithSearch(text string) State {
	text = strings.TrimSpace(text)
	if text == s.SearchText {
		return s
	}
	s.SearchText = text
	s.PageIndex = 0
	return s
}

// WithSort falls back to the default column and descending order for unknown input.
func (s State) WithSort(column, direction string) State {
	if _, ok := sortColumns[column]; !ok {
		column = DefaultSortColumn
	}
	direction = strings.ToLower(strings.TrimSpace(direction))
	if direction != SortAsc {
		direction = SortDesc
	}
	if column == s.SortColumn && direction == s.SortDirection {
		return s
	}
	s.SortColumn = column
	s.SortDirection = direction
	s.PageIndex = 0
	return s
}

func (s State) WithPage(index int) State {
	if index < 0 {
		index = 0
	}
	s.PageIndex = index
	return s
}

func (s State) WithPageSize(size int) State {
	if size == s.PageSize {
		return s
	}
	s.PageSize = size
	s.PageIndex = 0
	return s
}

// Normalize clamps paging and repairs sort fields.
func (s State) Normalize(defaultSize, maxSize int) State {
	if s.PageSize <= 0 {
		s.PageSize = defaultSize
	}
	if maxSize > 0 && s.PageSize > maxSize {
		s.PageSize = maxSize
	}
	if s.PageIndex < 0 {
		s.PageIndex = 0
	}
	if _, ok := sortColumns[s.SortColumn]; !ok {
		s.SortColumn = DefaultSortColumn
	}
	if s.SortDirection != SortAsc {
		s.SortDirection = SortDesc
	}
	return s
}

// Equal reports whether two snapshots would produce the same query.
func (s State) Equal(other State) bool {
	return s == other
}

func (s State) Selection() Selection {
	return Selection{District: s.District, Tehsil: s.Tehsil, Area: s.Area}
}

// OrderColumn returns the table column for the sort key.
func (s State) OrderColumn() string {
	if col, ok := sortColumns[s.SortColumn]; ok {
		return col
	}
	return sortColumns[DefaultSortColumn]
}

func (s State) Offset() int {
	return s.PageIndex * s.PageSize
}

// NormalizeUnitType maps user input onto the stored classification values.
func NormalizeUnitType(v string) string {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return ""
	case strings.EqualFold(v, models.UnitTypeDomestic):
		return models.UnitTypeDomestic
	case strings.EqualFold(v, models.UnitTypeCommercial):
		return models.UnitTypeCommercial
	case strings.EqualFold(v, models.UnitTypeUnknown):
		return models.UnitTypeUnknown
	}
	return v
}

func normalizeGeo(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}
