package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"survey-bknd/internal/filters"
	"survey-bknd/internal/models"
	"survey-bknd/internal/views"
)

// ViewHandler drives server held dashboard sessions.
type ViewHandler struct {
	views *views.Manager
	logr  *zap.Logger
}

func NewViewHandler(m *views.Manager, logr *zap.Logger) *ViewHandler {
	return &ViewHandler{views: m, logr: logr}
}

var errViewNotFound = map[string]string{"error": "view not found"}

// CreateList opens a list view; the optional body is a filter patch
func (h *ViewHandler) CreateList(w http.ResponseWriter, r *http.Request) {
	var p filters.Patch
	if err := decodeBody(w, r, &p); err != nil {
		badRequest(w, "invalid filter patch")
		return
	}
	v := h.views.CreateList(p)
	h.logr.Debug("list view opened", zap.String("view_id", v.ID))
	writeJSON(w, http.StatusCreated, v.Snapshot())
}

// GetList returns filters, location options and the record stream state
func (h *ViewHandler) GetList(w http.ResponseWriter, r *http.Request) {
	v, ok := h.views.List(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errViewNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// PatchFilters applies a filter patch; children of a changed location are cleared
func (h *ViewHandler) PatchFilters(w http.ResponseWriter, r *http.Request) {
	v, ok := h.views.List(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errViewNotFound)
		return
	}
	var p filters.Patch
	if err := decodeBody(w, r, &p); err != nil {
		badRequest(w, "invalid filter patch")
		return
	}
	v.Apply(p)
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// RetryList reloads the current page without debounce
func (h *ViewHandler) RetryList(w http.ResponseWriter, r *http.Request) {
	v, ok := h.views.List(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errViewNotFound)
		return
	}
	v.Retry()
	writeJSON(w, http.StatusAccepted, v.Snapshot())
}

func (h *ViewHandler) DeleteList(w http.ResponseWriter, r *http.Request) {
	if !h.views.DeleteList(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errViewNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateRollup opens a rollup view; the optional body is a scope
func (h *ViewHandler) CreateRollup(w http.ResponseWriter, r *http.Request) {
	var scope models.FinanceScope
	if err := decodeBody(w, r, &scope); err != nil {
		badRequest(w, "invalid scope")
		return
	}
	v := h.views.CreateRollup(scope)
	h.logr.Debug("rollup view opened", zap.String("view_id", v.ID))
	writeJSON(w, http.StatusCreated, v.Snapshot())
}

func (h *ViewHandler) GetRollup(w http.ResponseWriter, r *http.Request) {
	v, ok := h.views.Rollup(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errViewNotFound)
		return
	}
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// SetScope replaces the scope and reloads every slot after the debounce window
func (h *ViewHandler) SetScope(w http.ResponseWriter, r *http.Request) {
	v, ok := h.views.Rollup(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errViewNotFound)
		return
	}
	var scope models.FinanceScope
	if err := decodeBody(w, r, &scope); err != nil {
		badRequest(w, "invalid scope")
		return
	}
	v.SetScope(scope)
	writeJSON(w, http.StatusOK, v.Snapshot())
}

// RetryRollup re-dispatches one dimension, or the grand totals
func (h *ViewHandler) RetryRollup(w http.ResponseWriter, r *http.Request) {
	v, ok := h.views.Rollup(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errViewNotFound)
		return
	}
	if err := v.Retry(chi.URLParam(r, "dimension")); err != nil {
		badRequest(w, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, v.Snapshot())
}

func (h *ViewHandler) DeleteRollup(w http.ResponseWriter, r *http.Request) {
	if !h.views.DeleteRollup(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, errViewNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
