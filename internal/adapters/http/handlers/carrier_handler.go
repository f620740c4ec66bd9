package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/reybrally/fulfillment-service/internal/adapters/dhl"
	"github.com/reybrally/fulfillment-service/internal/app/orders"
)

func (h *Handlers) DHLRates(w http.ResponseWriter, r *http.Request) {
	var req dhl.RateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.fulfillment.Rates(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "DHLRates", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) DHLTrack(w http.ResponseWriter, r *http.Request) {
	resp, err := h.fulfillment.Track(r.Context(), chi.URLParam(r, "tracking"))
	if err != nil {
		writeServiceError(w, r, "DHLTrack", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) DHLValidateAddress(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.fulfillment.ValidateAddress(r.Context(), dhl.AddressQuery{
		Type:        q.Get("type"),
		CountryCode: q.Get("countryCode"),
		PostalCode:  q.Get("postalCode"),
		CityName:    q.Get("cityName"),
	})
	if err != nil {
		writeServiceError(w, r, "DHLValidateAddress", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) DHLPickup(w http.ResponseWriter, r *http.Request) {
	var req dhl.PickupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.fulfillment.RequestPickup(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "DHLPickup", err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handlers) DHLLandedCost(w http.ResponseWriter, r *http.Request) {
	var req dhl.LandedCostRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	resp, err := h.fulfillment.LandedCost(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, "DHLLandedCost", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) NCMBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.fulfillment.NCMBranches(r.Context())
	if err != nil {
		writeServiceError(w, r, "NCMBranches", err)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

func (h *Handlers) NCMCreateOrder(w http.ResponseWriter, r *http.Request) {
	var form orders.NCMOrderForm
	if !decodeJSON(w, r, &form) {
		return
	}
	order, err := h.fulfillment.CreateNCMOrder(r.Context(), form)
	if err != nil {
		if order.NCMOrderID != "" {
			writeJSON(w, statusFor(err), map[string]any{"error": err.Error(), "order": order})
			return
		}
		writeServiceError(w, r, "NCMCreateOrder", err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}
