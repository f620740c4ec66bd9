package handlers

import (
	"net/http"

	"github.com/reybrally/fulfillment-service/internal/app/notify"
)

type otpRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

func (h *Handlers) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.notify.SendOTP(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, "SendOTP", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}

func (h *Handlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ok, err := h.notify.VerifyOTP(r.Context(), req.Email, req.Code)
	if err != nil {
		writeServiceError(w, r, "VerifyOTP", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"verified": false, "error": "invalid or expired code"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"verified": true})
}

func (h *Handlers) SendInvoice(w http.ResponseWriter, r *http.Request) {
	var req notify.InvoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.notify.SendInvoice(r.Context(), req); err != nil {
		writeServiceError(w, r, "SendInvoice", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"sent": true})
}
