package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"survey-bknd/internal/apperr"
	"survey-bknd/internal/filters"
	"survey-bknd/internal/models"
	"survey-bknd/internal/utils"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(data)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeRemoteError maps a service failure to a response. Unknown records are
// 404; everything else is a classified 502 the client may retry.
func writeRemoteError(w http.ResponseWriter, logr *zap.Logger, op string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if apperr.IsCanceled(err) {
		// the client went away; nobody reads the body
		return
	}
	classified := apperr.Classify(op, err)
	logr.Error("remote call failed", zap.String("op", op), zap.String("kind", string(classified.Kind)), zap.Error(err))
	writeJSON(w, http.StatusBadGateway, map[string]any{
		"error":     op + " failed",
		"kind":      classified.Kind,
		"retryable": classified.Retryable(),
	})
}

// decodeBody reads an optional JSON body into dst. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// parseFilters builds a filter snapshot from query params. Both pageIndex
// (0-based) and page (1-based) are accepted.
func parseFilters(q url.Values, defaultSize, maxSize int) (filters.State, error) {
	s := filters.New(defaultSize)
	if v, ok := utils.FirstParam(q, "district"); ok {
		s = s.WithDistrict(v)
	}
	if v, ok := utils.FirstParam(q, "tehsil"); ok {
		s = s.WithTehsil(v)
	}
	if v, ok := utils.FirstParam(q, "area", "areaName", "uc"); ok {
		s = s.WithArea(v)
	}
	if v, ok := utils.FirstParam(q, "surveyorId", "surveyor"); ok {
		s = s.WithSurveyor(v)
	}
	if v, ok := utils.FirstParam(q, "unitType", "type"); ok {
		s = s.WithUnitType(v)
	}
	if v, ok := utils.FirstParam(q, "status"); ok {
		s = s.WithStatus(v)
	}
	if v, ok := utils.FirstParam(q, "search", "q"); ok {
		s = s.WithSearch(v)
	}
	column, _ := utils.FirstParam(q, "sortBy", "sort")
	direction, _ := utils.FirstParam(q, "sortDir", "order")
	if column != "" || direction != "" {
		s = s.WithSort(column, strings.ToLower(direction))
	}

	size, ok, err := utils.IntParam(q, "pageSize", "limit")
	if err != nil {
		return s, errors.New("invalid pageSize parameter")
	}
	if ok {
		s = s.WithPageSize(size)
	}
	if idx, ok, err := utils.IntParam(q, "pageIndex"); err != nil {
		return s, errors.New("invalid pageIndex parameter")
	} else if ok {
		s = s.WithPage(idx)
	} else if page, ok, err := utils.IntParam(q, "page"); err != nil {
		return s, errors.New("invalid page parameter")
	} else if ok {
		s = s.WithPage(page - 1)
	}
	return s.Normalize(defaultSize, maxSize), nil
}

// parseScope reads district, tehsil and month. A missing month is left zero so
// the service applies the reference month.
func parseScope(q url.Values) (models.FinanceScope, error) {
	scope := models.FinanceScope{District: q.Get("district"), Tehsil: q.Get("tehsil")}
	if v, ok := utils.FirstParam(q, "month", "period"); ok {
		m, err := models.ParseMonth(v)
		if err != nil {
			return scope, errors.New("invalid month parameter, expected e.g. Dec-2025")
		}
		scope.Period = m
	}
	return scope.Normalize(), nil
}
