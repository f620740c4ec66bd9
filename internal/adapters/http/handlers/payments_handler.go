package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/adapters/http/handlers/normalization"
	"github.com/reybrally/fulfillment-service/internal/app/orders"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
	"github.com/reybrally/fulfillment-service/internal/logging"
)

type groupedPaymentsResponse struct {
	Groups map[domain.Status][]domain.PaymentView `json:"groups"`
	Counts map[domain.Status]int                  `json:"counts"`
}

type paymentListResponse struct {
	Status   string               `json:"status"`
	Payments []domain.PaymentView `json:"payments"`
}

// ListPayments serves the admin order view: every payment grouped by derived
// status, or a flat list when ?status= is set.
func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var f orders.ListFilter
	if s := q.Get("from"); s != "" {
		t, err := normalization.ParseTime(s, false)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from (RFC3339 or YYYY-MM-DD expected)")
			return
		}
		f.CreatedFrom = &t
	}
	if s := q.Get("to"); s != "" {
		t, err := normalization.ParseTime(s, true)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to (RFC3339 or YYYY-MM-DD expected)")
			return
		}
		f.CreatedTo = &t
	}
	f.UserID = q.Get("user_id")
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = n
	}
	normalization.NormalizeListFilter(&f, time.Now())

	ctx := r.Context()
	if status := q.Get("status"); status != "" {
		list, err := h.fulfillment.ListPayments(ctx, f, status)
		if err != nil {
			writeServiceError(w, r, "ListPayments", err)
			return
		}
		writeJSON(w, http.StatusOK, paymentListResponse{Status: status, Payments: list})
		return
	}

	groups, err := h.fulfillment.PaymentsByStatus(ctx, f)
	if err != nil {
		writeServiceError(w, r, "ListPayments", err)
		return
	}
	counts := make(map[domain.Status]int, len(groups))
	for st, list := range groups {
		counts[st] = len(list)
	}
	logging.LogDebug("payments grouped", logrus.Fields{"method": "ListPayments", "counts": counts})
	writeJSON(w, http.StatusOK, groupedPaymentsResponse{Groups: groups, Counts: counts})
}

func (h *Handlers) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, txn := chi.URLParam(r, "id"), chi.URLParam(r, "txn")
	st, err := h.fulfillment.PaymentStatus(r.Context(), id, txn)
	if err != nil {
		writeServiceError(w, r, "PaymentStatus", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"userBagId":     id,
		"merchantTxnId": txn,
		"status":        st,
	})
}

type shipmentFailure struct {
	Error    string              `json:"error"`
	Shipment *domain.DHLShipment `json:"shipment,omitempty"`
}

// CreateShipment books the DHL shipment. When DHL accepted it but the bag
// could not be updated the shipment is still returned next to the error, so
// the operator sees the tracking number.
func (h *Handlers) CreateShipment(w http.ResponseWriter, r *http.Request) {
	id, txn := chi.URLParam(r, "id"), chi.URLParam(r, "txn")
	shipment, err := h.fulfillment.CreateShipment(r.Context(), id, txn)
	if err != nil {
		if shipment.TrackingNumber == "" {
			writeServiceError(w, r, "CreateShipment", err)
			return
		}
		logging.LogError("shipment created but not recorded", err, logrus.Fields{
			"user_bag_id": id, "merchant_txn_id": txn, "tracking_number": shipment.TrackingNumber,
		})
		writeJSON(w, statusFor(err), shipmentFailure{Error: err.Error(), Shipment: &shipment})
		return
	}
	writeJSON(w, http.StatusCreated, shipment)
}

func (h *Handlers) PaymentRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.fulfillment.PaymentRates(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "txn"))
	if err != nil {
		writeServiceError(w, r, "PaymentRates", err)
		return
	}
	writeJSON(w, http.StatusOK, rates)
}

func (h *Handlers) Document(w http.ResponseWriter, r *http.Request) {
	doc, err := h.fulfillment.Document(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "txn"), chi.URLParam(r, "type"))
	if err != nil {
		writeServiceError(w, r, "Document", err)
		return
	}
	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Data)
}

// NotifyShipment mails the receiver the tracking number of the payment's shipment.
func (h *Handlers) NotifyShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, shipment, err := h.fulfillment.Shipment(ctx, chi.URLParam(r, "id"), chi.URLParam(r, "txn"))
	if err != nil {
		writeServiceError(w, r, "NotifyShipment", err)
		return
	}
	if err := h.notify.SendShipmentNotice(ctx, p, shipment); err != nil {
		writeServiceError(w, r, "NotifyShipment", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sent": true, "trackingNumber": shipment.TrackingNumber})
}
