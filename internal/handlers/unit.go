package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"survey-bknd/internal/filters"
	"survey-bknd/internal/finance"
	"survey-bknd/internal/models"
	"survey-bknd/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UnitService serves unit pages, histories and exports.
type UnitService interface {
	FetchHydratedUnits(ctx context.Context, f filters.State) (models.UnitPage, error)
	FetchUnitHistory(ctx context.Context, surveyID string, ref models.Month) (models.UnitHistory, error)
	ExportUnits(ctx context.Context, f filters.State, ref models.Month) (*excelize.File, error)
}

type UnitHandler struct {
	service     UnitService
	reference   func() models.Month
	defaultSize int
	maxSize     int
	logr        *zap.Logger
}

func NewUnitHandler(svc UnitService, reference func() models.Month, defaultSize, maxSize int, logr *zap.Logger) *UnitHandler {
	return &UnitHandler{
		service:     svc,
		reference:   reference,
		defaultSize: defaultSize,
		maxSize:     maxSize,
		logr:        logr,
	}
}

type unitMeta struct {
	PageIndex int           `json:"page_index"`
	PageSize  int           `json:"page_size"`
	Total     int           `json:"total"`
	Pages     int           `json:"pages"`
	Filters   filters.State `json:"filters"`
	Reference models.Month  `json:"reference_month"`
}

// ListUnits returns one hydrated page of units matching the query params
func (h *UnitHandler) ListUnits(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r.URL.Query(), h.defaultSize, h.maxSize)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	page, err := h.service.FetchHydratedUnits(r.Context(), f)
	if err != nil {
		writeRemoteError(w, h.logr, services.OpFetchHydratedUnits, err)
		return
	}

	ref := h.reference()
	pages := 0
	if f.PageSize > 0 {
		pages = (page.TotalCount + f.PageSize - 1) / f.PageSize
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": finance.HydrateAll(page.Records, ref),
		"meta": unitMeta{
			PageIndex: f.PageIndex,
			PageSize:  f.PageSize,
			Total:     page.TotalCount,
			Pages:     pages,
			Filters:   f,
			Reference: ref,
		},
	})
}

// ExportUnits streams an xlsx workbook of every unit matching the query params
func (h *UnitHandler) ExportUnits(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilters(r.URL.Query(), h.defaultSize, h.maxSize)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	file, err := h.service.ExportUnits(r.Context(), f, h.reference())
	if err != nil {
		writeRemoteError(w, h.logr, services.OpExportUnits, err)
		return
	}
	defer file.Close()

	name := exportFileName(f, time.Now())
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.WriteHeader(http.StatusOK)
	if err := file.Write(w); err != nil {
		h.logr.Warn("failed to write export", zap.String("file", name), zap.Error(err))
	}
}

// GetUnitHistory returns the unit with its sorted bills, stats and timeline
func (h *UnitHandler) GetUnitHistory(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "surveyId"))
	if id == "" {
		badRequest(w, "invalid survey id")
		return
	}

	ref := h.reference()
	if v := r.URL.Query().Get("month"); v != "" {
		m, err := models.ParseMonth(v)
		if err != nil {
			badRequest(w, "invalid month parameter, expected e.g. Dec-2025")
			return
		}
		ref = m
	}

	history, err := h.service.FetchUnitHistory(r.Context(), id, ref)
	if err != nil {
		writeRemoteError(w, h.logr, services.OpFetchUnitHistory, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func exportFileName(f filters.State, now time.Time) string {
	parts := []string{"units"}
	for _, p := range []string{f.District, f.Tehsil, f.Area} {
		if p != "" {
			parts = append(parts, strings.ReplaceAll(strings.ToLower(p), " ", "-"))
		}
	}
	parts = append(parts, now.Format("20060102"))
	return strings.Join(parts, "_") + ".xlsx"
}
