package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"survey-bknd/internal/services"
)

// LocationService serves the cascading location lookups.
type LocationService interface {
	Districts(ctx context.Context) ([]string, error)
	Tehsils(ctx context.Context, district string) ([]string, error)
	Areas(ctx context.Context, district, tehsil string) ([]string, error)
	FetchDistinctSurveyors(ctx context.Context, district, tehsil, area string) ([]string, error)
}

type LocationHandler struct {
	service LocationService
	logr    *zap.Logger
}

func NewLocationHandler(svc LocationService, logr *zap.Logger) *LocationHandler {
	return &LocationHandler{service: svc, logr: logr}
}

// GetDistricts returns every district with at least one unit
func (h *LocationHandler) GetDistricts(w http.ResponseWriter, r *http.Request) {
	districts, err := h.service.Districts(r.Context())
	if err != nil {
		writeRemoteError(w, h.logr, services.OpFetchLocations, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"districts": districts})
}

// GetTehsils returns the tehsils of ?district=
func (h *LocationHandler) GetTehsils(w http.ResponseWriter, r *http.Request) {
	district := r.URL.Query().Get("district")
	if district == "" {
		badRequest(w, "district parameter is required")
		return
	}

	tehsils, err := h.service.Tehsils(r.Context(), district)
	if err != nil {
		writeRemoteError(w, h.logr, services.OpFetchLocations, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tehsils": tehsils})
}

// GetAreas returns the areas (union councils) of ?district=&tehsil=
func (h *LocationHandler) GetAreas(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	district, tehsil := q.Get("district"), q.Get("tehsil")
	if district == "" || tehsil == "" {
		badRequest(w, "district and tehsil parameters are required")
		return
	}

	areas, err := h.service.Areas(r.Context(), district, tehsil)
	if err != nil {
		writeRemoteError(w, h.logr, services.OpFetchLocations, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"areas": areas})
}

// GetSurveyors returns surveyor ids; every location param is optional
func (h *LocationHandler) GetSurveyors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids, err := h.service.FetchDistinctSurveyors(r.Context(), q.Get("district"), q.Get("tehsil"), q.Get("area"))
	if err != nil {
		writeRemoteError(w, h.logr, services.OpFetchDistinctSurveyors, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"surveyors": ids})
}
