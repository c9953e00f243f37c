package services

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"survey-bknd/internal/apperr"
	"survey-bknd/internal/cache"
	"survey-bknd/internal/metrics"
	"survey-bknd/internal/models"
)

const (
	OpFetchFinanceSummary = "fetchFinanceSummary"
	OpFetchRollup         = "fetchRollup"
	OpFetchGrandTotals    = "fetchGrandTotals"
)

const paidExpr = "UPPER(TRIM(b.payment_status)) = 'PAID'"

// dimensionColumns groups units for each rollup dimension.
var dimensionColumns = map[models.Dimension]string{
	models.DimensionTehsil:   "UPPER(TRIM(su.tehsil))",
	models.DimensionArea:     "UPPER(TRIM(su.area_name))",
	models.DimensionCategory: "COALESCE(NULLIF(TRIM(su.unit_type), ''), 'Unknown')",
}

// FinanceService computes rollups and grand totals for a scope.
type FinanceService struct {
	db    *bun.DB
	cache cache.Cache
	log   *zap.Logger
	rec   *metrics.Recorder
	ref   func() models.Month
}

// NewFinanceService uses ref as the period of scopes that do not name one.
func NewFinanceService(db *bun.DB, c cache.Cache, log *zap.Logger, rec *metrics.Recorder, ref func() models.Month) *FinanceService {
	if c == nil {
		c = cache.Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if ref == nil {
		ref = func() models.Month { return models.MonthOf(time.Now()) }
	}
	return &FinanceService{db: db, cache: c, log: log.Named("finance"), rec: rec, ref: ref}
}

func (s *FinanceService) scope(scope models.FinanceScope) models.FinanceScope {
	scope = scope.Normalize()
	if scope.Period.IsZero() {
		scope.Period = s.ref()
	}
	return scope
}

// FetchFinanceSummary returns the grand totals and every dimension of scope.
func (s *FinanceService) FetchFinanceSummary(ctx context.Context, scope models.FinanceScope) (summary models.FinanceSummary, err error) {
	defer s.observe(OpFetchFinanceSummary, time.Now(), &err)

	scope = s.scope(scope)
	summary.Scope = scope
	if summary.GrandTotals, err = s.grandTotals(ctx, scope); err != nil {
		return models.FinanceSummary{}, err
	}
	if summary.TehsilStats, err = s.rollup(ctx, scope, models.DimensionTehsil); err != nil {
		return models.FinanceSummary{}, err
	}
	if summary.UCStats, err = s.rollup(ctx, scope, models.DimensionArea); err != nil {
		return models.FinanceSummary{}, err
	}
	if summary.CategoryStats, err = s.rollup(ctx, scope, models.DimensionCategory); err != nil {
		return models.FinanceSummary{}, err
	}
	return summary, nil
}

// FetchRollup returns the rows of a single dimension.
func (s *FinanceService) FetchRollup(ctx context.Context, scope models.FinanceScope, dim models.Dimension) (rows []models.RollupRow, err error) {
	defer s.observe(OpFetchRollup, time.Now(), &err)
	return s.rollup(ctx, s.scope(scope), dim)
}

// FetchGrandTotals returns the scope totals. PotentialDemand covers every bill ever
// issued in scope; the other money figures cover the period only.
func (s *FinanceService) FetchGrandTotals(ctx context.Context, scope models.FinanceScope) (totals models.GrandTotals, err error) {
	defer s.observe(OpFetchGrandTotals, time.Now(), &err)
	return s.grandTotals(ctx, s.scope(scope))
}

func (s *FinanceService) rollup(ctx context.Context, scope models.FinanceScope, dim models.Dimension) ([]models.RollupRow, error) {
	key := "rollup:" + string(dim) + ":" + scope.Key()
	return cache.Fetch(ctx, s.cache, s.log, key, func(ctx context.Context) ([]models.RollupRow, error) {
		q, err := s.rollupQuery(scope, dim)
		if err != nil {
			return nil, err
		}
		rows := []models.RollupRow{}
		if err := q.Scan(ctx, &rows); err != nil {
			return nil, fmt.Errorf("rollup by %s: %w", dim, err)
		}
		return rows, nil
	})
}

func (s *FinanceService) rollupQuery(scope models.FinanceScope, dim models.Dimension) (*bun.SelectQuery, error) {
	group, ok := dimensionColumns[dim]
	if !ok {
		return nil, &apperr.Error{Kind: apperr.RemoteRejection, Op: OpFetchRollup, Err: fmt.Errorf("unknown dimension %q", dim)}
	}

	q := s.db.NewSelect().
		TableExpr("app.survey_units AS su").
		ColumnExpr(group+" AS name").
		ColumnExpr("COUNT(*) AS unit_count").
		ColumnExpr("COUNT(b.survey_id) FILTER (WHERE "+paidExpr+") AS paid_count").
		ColumnExpr("COALESCE(SUM(pt.tx_count), 0) AS transaction_count").
		ColumnExpr("COALESCE(SUM(b.amount_paid) FILTER (WHERE "+paidExpr+"), 0) AS amount").
		Join("LEFT JOIN app.bills AS b ON b.survey_id = su.survey_id AND b.bill_month = ?", scope.Period).
		Join("LEFT JOIN (?) AS pt ON pt.survey_id = su.survey_id", s.transactionsQuery(scope.Period))
	q = whereScope(q, scope.District, scope.Tehsil, "")
	return q.GroupExpr("1").OrderExpr("1 ASC"), nil
}

// transactionsQuery counts the payment transactions of each unit in period.
func (s *FinanceService) transactionsQuery(period models.Month) *bun.SelectQuery {
	return s.db.NewSelect().
		TableExpr("app.payment_transactions AS t").
		ColumnExpr("t.survey_id").
		ColumnExpr("COUNT(*) AS tx_count").
		Where("t.bill_month = ?", period).
		GroupExpr("t.survey_id")
}

func (s *FinanceService) grandTotals(ctx context.Context, scope models.FinanceScope) (models.GrandTotals, error) {
	key := "totals:" + scope.Key()
	return cache.Fetch(ctx, s.cache, s.log, key, func(ctx context.Context) (models.GrandTotals, error) {
		var totals models.GrandTotals
		if err := s.totalsQuery(scope).Scan(ctx, &totals); err != nil {
			return models.GrandTotals{}, fmt.Errorf("grand totals: %w", err)
		}
		return totals, nil
	})
}

func (s *FinanceService) totalsQuery(scope models.FinanceScope) *bun.SelectQuery {
	units := whereScope(s.db.NewSelect().
		TableExpr("app.survey_units AS su").
		ColumnExpr("COUNT(*)"), scope.District, scope.Tehsil, "")

	billers := whereScope(s.db.NewSelect().
		TableExpr("app.survey_units AS su").
		ColumnExpr("COUNT(*)").
		Where("EXISTS (SELECT 1 FROM app.bills AS bb WHERE bb.survey_id = su.survey_id)"),
		scope.District, scope.Tehsil, "")

	potential := whereScope(s.db.NewSelect().
		TableExpr("app.bills AS b").
		Join("JOIN app.survey_units AS su ON su.survey_id = b.survey_id").
		ColumnExpr("COALESCE(SUM(b.amount_due), 0)"), scope.District, scope.Tehsil, "")

	period := func(expr string) *bun.SelectQuery {
		return whereScope(s.db.NewSelect().
			TableExpr("app.bills AS b").
			Join("JOIN app.survey_units AS su ON su.survey_id = b.survey_id").
			ColumnExpr(expr).
			Where("b.bill_month = ?", scope.Period), scope.District, scope.Tehsil, "")
	}

	transactions := whereScope(s.db.NewSelect().
		TableExpr("app.payment_transactions AS t").
		Join("JOIN app.survey_units AS su ON su.survey_id = t.survey_id").
		ColumnExpr("COUNT(*)").
		Where("t.bill_month = ?", scope.Period), scope.District, scope.Tehsil, "")

	return s.db.NewSelect().
		ColumnExpr("(?) AS potential_demand", potential).
		ColumnExpr("(?) AS period_demand", period("COALESCE(SUM(b.amount_due), 0)")).
		ColumnExpr("(?) AS collected", period("COALESCE(SUM(b.amount_paid) FILTER (WHERE "+paidExpr+"), 0)")).
		ColumnExpr("(?) AS unit_count", units).
		ColumnExpr("(?) AS biller_count", billers).
		ColumnExpr("(?) AS paid_count", period("COUNT(*) FILTER (WHERE "+paidExpr+")")).
		ColumnExpr("(?) AS transaction_count", transactions)
}

func (s *FinanceService) observe(op string, start time.Time, err *error) {
	s.rec.RemoteCall(op, *err, time.Since(start))
	if *err != nil && !apperr.IsCanceled(*err) {
		s.log.Error("remote call failed", zap.String("op", op), zap.Error(*err))
	}
}
