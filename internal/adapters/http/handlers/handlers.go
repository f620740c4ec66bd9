package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/adapters/dhl"
	"github.com/reybrally/fulfillment-service/internal/adapters/http/handlers/normalization"
	"github.com/reybrally/fulfillment-service/internal/adapters/ncm"
	"github.com/reybrally/fulfillment-service/internal/app/analytics"
	"github.com/reybrally/fulfillment-service/internal/app/notify"
	"github.com/reybrally/fulfillment-service/internal/app/orders"
	domainAnalytics "github.com/reybrally/fulfillment-service/internal/domain/analytics"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
	"github.com/reybrally/fulfillment-service/internal/logging"
	"github.com/reybrally/fulfillment-service/internal/validation"
)

const maxBodyBytes = 4 << 20

type FulfillmentService interface {
	ListPayments(ctx context.Context, f orders.ListFilter, status string) ([]domain.PaymentView, error)
	PaymentsByStatus(ctx context.Context, f orders.ListFilter) (map[domain.Status][]domain.PaymentView, error)
	PaymentStatus(ctx context.Context, bagID, merchantTxnID string) (domain.Status, error)
	CreateShipment(ctx context.Context, bagID, merchantTxnID string) (domain.DHLShipment, error)
	Shipment(ctx context.Context, bagID, merchantTxnID string) (domain.Payment, domain.DHLShipment, error)
	Document(ctx context.Context, bagID, merchantTxnID, typeCode string) (orders.DocumentFile, error)
	PaymentRates(ctx context.Context, bagID, merchantTxnID string) (dhl.RateResponse, error)
	Rates(ctx context.Context, req dhl.RateRequest) (dhl.RateResponse, error)
	Track(ctx context.Context, trackingNumber string) (dhl.TrackResponse, error)
	ValidateAddress(ctx context.Context, q dhl.AddressQuery) (dhl.AddressValidateResponse, error)
	RequestPickup(ctx context.Context, req dhl.PickupRequest) (dhl.PickupResponse, error)
	LandedCost(ctx context.Context, req dhl.LandedCostRequest) (dhl.LandedCostResponse, error)
	NCMBranches(ctx context.Context) ([]ncm.Branch, error)
	CreateNCMOrder(ctx context.Context, form orders.NCMOrderForm) (domain.NCMOrder, error)
}

type AnalyticsService interface {
	Report(ctx context.Context, tab string, f *domainAnalytics.DateFilter) (domainAnalytics.Report, error)
	ClearCache(ctx context.Context, tab string) error
}

type NotifyService interface {
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, code string) (bool, error)
	SendInvoice(ctx context.Context, req notify.InvoiceRequest) error
	SendShipmentNotice(ctx context.Context, p domain.Payment, shipment domain.DHLShipment) error
}

type Handlers struct {
	fulfillment FulfillmentService
	analytics   AnalyticsService
	notify      NotifyService
}

func New(f FulfillmentService, a AnalyticsService, n NotifyService) *Handlers {
	return &Handlers{fulfillment: f, analytics: a, notify: n}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrNotFound),
		errors.Is(err, orders.ErrPaymentNotFound),
		errors.Is(err, orders.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrInvalidData),
		errors.Is(err, orders.ErrInvalidReference),
		errors.Is(err, analytics.ErrTabRequired),
		errors.Is(err, analytics.ErrInvalidTab),
		errors.Is(err, normalization.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, orders.ErrConflict),
		errors.Is(err, orders.ErrVersionConflict),
		errors.Is(err, orders.ErrAlreadyShipped):
		return http.StatusConflict
	case errors.Is(err, orders.ErrBranchRequired):
		return http.StatusUnprocessableEntity
	case errors.Is(err, notify.ErrAttachmentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, orders.ErrTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, orders.ErrVendor):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	code := statusFor(err)
	fields := logrus.Fields{"method": op, "path": r.URL.Path, "status": code}
	if code >= http.StatusInternalServerError {
		logging.LogError("request failed", err, fields)
	} else {
		fields["error"] = err.Error()
		logging.LogInfo("request rejected", fields)
	}

	resp := errorResponse{Error: err.Error()}
	var verr *validation.Error
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	writeJSON(w, code, resp)
}

// decodeJSON reads a single JSON object from the body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			writeError(w, http.StatusBadRequest, "request body is required")
		default:
			writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		}
		return false
	}
	return true
}
