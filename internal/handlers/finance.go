package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"survey-bknd/internal/finance"
	"survey-bknd/internal/models"
	"survey-bknd/internal/services"
)

// FinanceService serves the finance summary and its parts.
type FinanceService interface {
	FetchFinanceSummary(ctx context.Context, scope models.FinanceScope) (models.FinanceSummary, error)
	FetchRollup(ctx context.Context, scope models.FinanceScope, dim models.Dimension) ([]models.RollupRow, error)
	FetchGrandTotals(ctx context.Context, scope models.FinanceScope) (models.GrandTotals, error)
}

type FinanceHandler struct {
	service FinanceService
	logr    *zap.Logger
}

func NewFinanceHandler(svc FinanceService, logr *zap.Logger) *FinanceHandler {
	return &FinanceHandler{service: svc, logr: logr}
}

// rollupRow adds the reconciliation badge to a row.
type rollupRow struct {
	models.RollupRow
	PendingReconciliation bool `json:"pending_reconciliation"`
}

func withBadges(rows []models.RollupRow) []rollupRow {
	out := make([]rollupRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, rollupRow{RollupRow: row, PendingReconciliation: row.PendingReconciliation()})
	}
	return out
}

// GetSummary returns grand totals with tehsil, area and category stats
func (h *FinanceHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r.URL.Query())
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	summary, err := h.service.FetchFinanceSummary(r.Context(), scope)
	if err != nil {
		writeRemoteError(w, h.logr, services.OpFetchFinanceSummary, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scope":          summary.Scope,
		"grand_totals":   summary.GrandTotals,
		"tehsil_stats":   withBadges(summary.TehsilStats),
		"uc_stats":       withBadges(summary.UCStats),
		"category_stats": withBadges(summary.CategoryStats),
	})
}

// GetRollup returns the rows of one dimension and their total
func (h *FinanceHandler) GetRollup(w http.ResponseWriter, r *http.Request) {
	dim, err := models.ParseDimension(chi.URLParam(r, "dimension"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	scope, err := parseScope(r.URL.Query())
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	rows, err := h.service.FetchRollup(r.Context(), scope, dim)
	if err != nil {
		writeRemoteError(w, h.logr, services.OpFetchRollup, err)
		return
	}
	total := finance.Total("Total", rows)
	writeJSON(w, http.StatusOK, map[string]any{
		"dimension": dim,
		"rows":      withBadges(rows),
		"total":     rollupRow{RollupRow: total, PendingReconciliation: total.PendingReconciliation()},
	})
}

// GetTotals returns the grand totals only
func (h *FinanceHandler) GetTotals(w http.ResponseWriter, r *http.Request) {
	scope, err := parseScope(r.URL.Query())
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	totals, err := h.service.FetchGrandTotals(r.Context(), scope)
	if err != nil {
		writeRemoteError(w, h.logr, services.OpFetchGrandTotals, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}
