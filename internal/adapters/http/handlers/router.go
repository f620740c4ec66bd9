package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	Ready          map[string]Check
}

func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 45 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.StripSlashes, Metrics)

	r.Get("/health", HealthHandler)
	r.Get("/ready", ReadyHandler(cfg.Ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.RequestTimeout))

		r.Get("/admin/payments", h.ListPayments)

		r.Route("/user-bags/{id}/payments/{txn}", func(r chi.Router) {
			r.Get("/status", h.PaymentStatus)
			r.Get("/rates", h.PaymentRates)
			r.Post("/shipment", h.CreateShipment)
			r.Get("/documents/{type}", h.Document)
			r.Post("/notify", h.NotifyShipment)
		})

		r.Route("/dhl", func(r chi.Router) {
			r.Post("/rates", h.DHLRates)
			r.Get("/track/{tracking}", h.DHLTrack)
			r.Get("/address-validate", h.DHLValidateAddress)
			r.Post("/pickup", h.DHLPickup)
			r.Post("/landed-cost", h.DHLLandedCost)
		})

		r.Route("/api/ncm", func(r chi.Router) {
			r.Get("/branches", h.NCMBranches)
			r.Post("/create-order", h.NCMCreateOrder)
		})

		r.Post("/otp/send", h.SendOTP)
		r.Post("/otp/verify", h.VerifyOTP)
		r.Post("/emails/invoice", h.SendInvoice)

		r.Delete("/analytics/cache", h.ClearAnalyticsCache)
		r.Get("/analytics/{tab}", h.AnalyticsReport)
	})
	return r
}
