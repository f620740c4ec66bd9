package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reybrally/fulfillment-service/internal/adapters/http/handlers/normalization"
)

func (h *Handlers) AnalyticsReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := normalization.ParseDateFilter(q.Get("start"), q.Get("end"), q.Get("preset"))
	if err != nil {
		writeServiceError(w, r, "AnalyticsReport", err)
		return
	}
	report, err := h.analytics.Report(r.Context(), chi.URLParam(r, "tab"), f)
	if err != nil {
		writeServiceError(w, r, "AnalyticsReport", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ClearAnalyticsCache drops one tab's cached ranges, or everything without ?tab=.
func (h *Handlers) ClearAnalyticsCache(w http.ResponseWriter, r *http.Request) {
	tab := r.URL.Query().Get("tab")
	if err := h.analytics.ClearCache(r.Context(), tab); err != nil {
		writeServiceError(w, r, "ClearAnalyticsCache", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
