package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"survey-bknd/internal/apperr"
	"survey-bknd/internal/cache"
	"survey-bknd/internal/filters"
	"survey-bknd/internal/finance"
	"survey-bknd/internal/hierarchy"
	"survey-bknd/internal/metrics"
	"survey-bknd/internal/models"
)

const (
	OpFetchHydratedUnits     = "fetchHydratedUnits"
	OpFetchUnitHistory       = "fetchUnitHistory"
	OpFetchDistinctSurveyors = "fetchDistinctSurveyors"
	OpFetchLocations         = "fetchLocations"
)

// isBillerExpr marks units that have at least one bill.
const isBillerExpr = "EXISTS (SELECT 1 FROM app.bills AS bb WHERE bb.survey_id = su.survey_id) AS is_biller"

// SurveyService serves unit pages, unit histories and the location lookups.
type SurveyService struct {
	db    *bun.DB
	cache cache.Cache
	log   *zap.Logger
	rec   *metrics.Recorder

	defaultSize int
	maxSize     int
}

func NewSurveyService(db *bun.DB, c cache.Cache, log *zap.Logger, rec *metrics.Recorder) *SurveyService {
	if c == nil {
		c = cache.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &SurveyService{
		db:          db,
		cache:       c,
		log:         log.Named("survey"),
		rec:         rec,
		defaultSize: filters.DefaultPageSize,
		maxSize:     filters.MaxPageSize,
	}
}

// WithPageLimits sets the page size used when none is requested and the upper
// bound applied to requested sizes. Non-positive values keep the defaults.
func (s *SurveyService) WithPageLimits(defaultSize, maxSize int) *SurveyService {
	if defaultSize > 0 {
		s.defaultSize = defaultSize
	}
	if maxSize > 0 {
		s.maxSize = maxSize
	}
	return s
}

// unitsQuery applies the filter part of f; sorting and paging are left to the caller.
func (s *SurveyService) unitsQuery(f filters.State) *bun.SelectQuery {
	q := s.db.NewSelect().Model((*models.SurveyUnit)(nil))

	if f.District != "" {
		q = q.Where("UPPER(TRIM(su.district)) = ?", f.District)
	}
	if f.Tehsil != "" {
		q = q.Where("UPPER(TRIM(su.tehsil)) = ?", f.Tehsil)
	}
	if f.Area != "" {
		q = q.Where("UPPER(TRIM(su.area_name)) = ?", f.Area)
	}
	if f.SurveyorID != "" {
		q = q.Where("su.surveyor_id = ?", f.SurveyorID)
	}
	switch f.UnitType {
	case "":
	case models.UnitTypeUnknown:
		q = q.Where("COALESCE(TRIM(su.unit_type), '') = ''")
	default:
		q = q.Where("su.unit_type = ?", f.UnitType)
	}
	if f.Status != "" {
		q = q.Where("su.status = ?", f.Status)
	}
	if f.SearchText != "" {
		search := "%" + escapeLike(f.SearchText) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("su.survey_id ILIKE ?", search).
				WhereOr("su.owner_name ILIKE ?", search).
				WhereOr("CAST(su.id_numeric AS TEXT) ILIKE ?", search)
		})
	}
	return q
}

// pageQuery adds the columns, the whitelisted order and the page window.
func (s *SurveyService) pageQuery(f filters.State) *bun.SelectQuery {
	dir := "DESC"
	if f.SortDirection == filters.SortAsc {
		dir = "ASC"
	}
	col := f.OrderColumn()

	q := s.unitsQuery(f).
		ColumnExpr("su.*").
		ColumnExpr(isBillerExpr).
		OrderExpr(col + " " + dir)
	// id_numeric keeps pages stable when the sort column has ties
	if col != "su.id_numeric" {
		q = q.OrderExpr("su.id_numeric DESC")
	}
	return q.Limit(f.PageSize).Offset(f.Offset())
}

// FetchHydratedUnits returns one page of units with their bills attached.
func (s *SurveyService) FetchHydratedUnits(ctx context.Context, f filters.State) (page models.UnitPage, err error) {
	defer s.observe(OpFetchHydratedUnits, time.Now(), &err)

	return s.fetchUnits(ctx, s.pageFilters(f))
}

// pageFilters clamps paging to the configured limits.
func (s *SurveyService) pageFilters(f filters.State) filters.State {
	return f.Normalize(s.defaultSize, s.maxSize)
}

func (s *SurveyService) fetchUnits(ctx context.Context, f filters.State) (models.UnitPage, error) {
	total, err := s.unitsQuery(f).Count(ctx)
	if err != nil {
		return models.UnitPage{}, fmt.Errorf("count units: %w", err)
	}

	units := make([]models.SurveyUnit, 0, f.PageSize)
	if total > 0 {
		if err := s.pageQuery(f).Scan(ctx, &units); err != nil {
			return models.UnitPage{}, fmt.Errorf("select units: %w", err)
		}
	}
	if err := attachBills(ctx, newBillLoader(s.db), units); err != nil {
		return models.UnitPage{}, err
	}
	return models.UnitPage{TotalCount: total, Records: units}, nil
}

// FetchUnitHistory returns a unit with all of its bills, oldest first.
func (s *SurveyService) FetchUnitHistory(ctx context.Context, surveyID string, ref models.Month) (history models.UnitHistory, err error) {
	defer s.observe(OpFetchUnitHistory, time.Now(), &err)

	surveyID = strings.TrimSpace(surveyID)
	var unit models.SurveyUnit
	err = s.db.NewSelect().
		Model(&unit).
		ColumnExpr("su.*").
		ColumnExpr(isBillerExpr).
		Where("su.survey_id = ?", surveyID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UnitHistory{}, fmt.Errorf("unit %s: %w", surveyID, apperr.ErrNotFound)
	}
	if err != nil {
		return models.UnitHistory{}, fmt.Errorf("select unit: %w", err)
	}

	units := []models.SurveyUnit{unit}
	if err := attachBills(ctx, newBillLoader(s.db), units); err != nil {
		return models.UnitHistory{}, err
	}
	unit = units[0]

	return models.UnitHistory{
		Unit:     unit,
		Stats:    finance.Summarize(unit.Bills),
		Bills:    unit.Bills,
		Timeline: finance.BuildTimeline(unit.Bills, ref),
	}, nil
}

// FetchDistinctSurveyors lists surveyor ids in scope. Empty arguments broaden it.
func (s *SurveyService) FetchDistinctSurveyors(ctx context.Context, district, tehsil, area string) (ids []string, err error) {
	defer s.observe(OpFetchDistinctSurveyors, time.Now(), &err)

	district, tehsil, area = normalize(district), normalize(tehsil), normalize(area)
	key := "surveyors:" + district + "|" + tehsil + "|" + area
	return cache.Fetch(ctx, s.cache, s.log, key, func(ctx context.Context) ([]string, error) {
		q := s.db.NewSelect().
			ColumnExpr("DISTINCT TRIM(su.surveyor_id)").
			TableExpr("app.survey_units AS su").
			Where("su.surveyor_id IS NOT NULL").
			Where("TRIM(su.surveyor_id) <> ''")
		q = whereScope(q, district, tehsil, area)

		ids := []string{}
		if err := q.OrderExpr("1 ASC").Scan(ctx, &ids); err != nil {
			return nil, fmt.Errorf("select surveyors: %w", err)
		}
		return ids, nil
	})
}

// Districts lists every district with at least one unit.
func (s *SurveyService) Districts(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "districts", "su.district", "", "", "")
}

func (s *SurveyService) Tehsils(ctx context.Context, district string) ([]string, error) {
	district = normalize(district)
	if district == "" {
		return []string{}, nil
	}
	return s.distinct(ctx, "tehsils:"+district, "su.tehsil", district, "", "")
}

func (s *SurveyService) Areas(ctx context.Context, district, tehsil string) ([]string, error) {
	district, tehsil = normalize(district), normalize(tehsil)
	if tehsil == "" {
		return []string{}, nil
	}
	return s.distinct(ctx, "areas:"+district+"|"+tehsil, "su.area_name", district, tehsil, "")
}

// Surveyors adapts FetchDistinctSurveyors to the location resolver.
func (s *SurveyService) Surveyors(ctx context.Context, district, tehsil, area string) ([]string, error) {
	return s.FetchDistinctSurveyors(ctx, district, tehsil, area)
}

func (s *SurveyService) distinct(ctx context.Context, key, column, district, tehsil, area string) (names []string, err error) {
	defer s.observe(OpFetchLocations, time.Now(), &err)

	return cache.Fetch(ctx, s.cache, s.log, key, func(ctx context.Context) ([]string, error) {
		q := s.db.NewSelect().
			ColumnExpr("DISTINCT UPPER(TRIM(" + column + "))").
			TableExpr("app.survey_units AS su").
			Where(column + " IS NOT NULL").
			Where("TRIM(" + column + ") <> ''")
		q = whereScope(q, district, tehsil, area)

		var names []string
		if err := q.OrderExpr("1 ASC").Scan(ctx, &names); err != nil {
			return nil, fmt.Errorf("select %s: %w", key, err)
		}
		return hierarchy.NormalizeNames(names), nil
	})
}

func (s *SurveyService) observe(op string, start time.Time, err *error) {
	s.rec.RemoteCall(op, *err, time.Since(start))
	if *err != nil && !apperr.IsCanceled(*err) {
		s.log.Error("remote call failed", zap.String("op", op), zap.Error(*err))
	}
}

func whereScope(q *bun.SelectQuery, district, tehsil, area string) *bun.SelectQuery {
	if district != "" {
		q = q.Where("UPPER(TRIM(su.district)) = ?", district)
	}
	if tehsil != "" {
		q = q.Where("UPPER(TRIM(su.tehsil)) = ?", tehsil)
	}
	if area != "" {
		q = q.Where("UPPER(TRIM(su.area_name)) = ?", area)
	}
	return q
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes user text match literally inside a LIKE pattern; backslash
// is the default escape character in Postgres.
func escapeLike(v string) string {
	return likeEscaper.Replace(v)
}

func normalize(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}
