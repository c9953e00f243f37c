package filters

// Patch is a partial update of a State. Nil fields are left untouched; an empty
// string clears the field.
type Patch struct {
	District      *string `json:"district"`
	Tehsil        *string `json:"tehsil"`
	Area          *string `json:"area"`
	SurveyorID    *string `json:"surveyor_id"`
	UnitType      *string `json:"unit_type"`
	Status        *string `json:"status"`
	SearchText    *string `json:"search_text"`
	SortColumn    *string `json:"sort_column"`
	SortDirection *string `json:"sort_direction"`
	PageIndex     *int    `json:"page_index"`
	PageSize      *int    `json:"page_size"`
}

// Apply updates the geography top-down so a patch carrying both a district and a
// tehsil keeps the tehsil. The page index is applied last so an explicit page
// survives the reset caused by other changes.
func (p Patch) Apply(s State) State {
	if p.District != nil {
		s = s.WithDistrict(*p.District)
	}
	if p.Tehsil != nil {
		s = s.WithTehsil(*p.Tehsil)
	}
	if p.Area != nil {
		s = s.WithArea(*p.Area)
	}
	if p.SurveyorID != nil {
		s = s.WithSurveyor(*p.SurveyorID)
	}
	if p.UnitType != nil {
		s = s.WithUnitType(*p.UnitType)
	}
	if p.Status != nil {
		s = s.WithStatus(*p.Status)
	}
	if p.SearchText != nil {
		s = s.WithSearch(*p.SearchText)
	}
	if p.SortColumn != nil || p.SortDirection != nil {
		column, direction := s.SortColumn, s.SortDirection
		if p.SortColumn != nil {
			column = *p.SortColumn
		}
		if p.SortDirection != nil {
			direction = *p.SortDirection
		}
		s = s.WithSort(column, direction)
	}
	if p.PageSize != nil {
		s = s.WithPageSize(*p.PageSize)
	}
	if p.PageIndex != nil {
		s = s.WithPage(*p.PageIndex)
	}
	return s
}
