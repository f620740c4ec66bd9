package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/adapters/dhl"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
	"github.com/reybrally/fulfillment-service/internal/logging"
	"github.com/reybrally/fulfillment-service/internal/metrics"
)

// CreateShipment books a DHL shipment for one payment of a bag and records it
// in the bag's tracking history.
//
// A failed vendor call leaves the bag untouched and is never retried here.
// When DHL accepted the shipment but the bag could not be updated, the error
// names the tracking number so the operator can reconcile by hand.
func (s *Service) CreateShipment(ctx context.Context, bagID, merchantTxnID string) (domain.DHLShipment, error) {
	bag, p, err := s.payment(ctx, bagID, merchantTxnID)
	if err != nil {
		return domain.DHLShipment{}, err
	}
	if err := checkReceiver(p.OrderData.ReceiverDetails); err != nil {
		return domain.DHLShipment{}, err
	}
	if domain.DeriveStatus(p, bag) == domain.StatusShipped {
		return domain.DHLShipment{}, ErrAlreadyShipped
	}

	fields := logrus.Fields{"user_bag_id": bag.ID, "merchant_txn_id": p.MerchantTxnID}
	now := s.opts.Now()

	productCode := s.productCode(ctx, p, fields)
	req := dhl.NewShipmentRequest(s.opts.Shipper, p, productCode, s.opts.DefaultCurrency, s.opts.CustomsDeclarable, now)
	resp, err := s.carrier.CreateShipment(ctx, req)
	if err != nil {
		logging.LogError("dhl shipment creation failed", err, fields)
		return domain.DHLShipment{}, vendorError(ctx, err)
	}

	shipment := dhl.ToShipment(p.MerchantTxnID, productCode, resp, now)
	fields["tracking_number"] = shipment.TrackingNumber

	if _, err := s.appendTracking(ctx, bag, domain.NewDHLRecord(shipment)); err != nil {
		logging.LogError("shipment created but user bag not updated", err, fields)
		return shipment, fmt.Errorf("shipment %s created but not recorded: %w", shipment.TrackingNumber, err)
	}

	metrics.ShipmentsCreatedTotal.WithLabelValues("dhl").Inc()
	logging.LogInfo("dhl shipment recorded", fields)

	s.publish(ctx, Event{
		Type:       EventShipmentCreated,
		UserBagID:  bag.ID,
		Carrier:    "dhl",
		PaymentRef: p.MerchantTxnID,
		Tracking:   shipment.TrackingNumber,
		OccurredAt: now.UTC(),
	})
	return shipment, nil
}

// productCode picks the cheapest quoted product, falling back to the
// configured default when the quote fails or offers nothing.
func (s *Service) productCode(ctx context.Context, p domain.Payment, fields logrus.Fields) string {
	rates, err := s.carrier.Rates(ctx, dhl.NewRateRequest(s.opts.Shipper, p, s.opts.CustomsDeclarable, s.opts.Now()))
	if err != nil {
		logging.LogWarn("dhl rate lookup failed, using default product", logrus.Fields{
			"user_bag_id": fields["user_bag_id"], "error": err.Error(), "product_code": s.opts.DefaultProductCode,
		})
		return s.opts.DefaultProductCode
	}
	best, ok := rates.Cheapest()
	if !ok {
		return s.opts.DefaultProductCode
	}
	return best.ProductCode
}

func checkReceiver(r domain.ReceiverDetails) error {
	if r.IsZero() {
		return fmt.Errorf("%w: receiver details are missing", ErrInvalidData)
	}
	var missing []string
	if strings.TrimSpace(r.FullName) == "" {
		missing = append(missing, "fullName")
	}
	if strings.TrimSpace(r.Address) == "" {
		missing = append(missing, "address")
	}
	if strings.TrimSpace(r.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(r.CountryCode) == "" {
		missing = append(missing, "countryCode")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: receiver %s required", ErrInvalidData, strings.Join(missing, ", "))
	}
	return nil
}
