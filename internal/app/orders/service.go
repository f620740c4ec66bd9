package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/adapters/dhl"
	"github.com/reybrally/fulfillment-service/internal/adapters/ncm"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
	"github.com/reybrally/fulfillment-service/internal/logging"
	"github.com/reybrally/fulfillment-service/internal/metrics"
	"github.com/reybrally/fulfillment-service/internal/validation"
)

const maxAppendAttempts = 3

type Options struct {
	Shipper            dhl.Shipper
	DefaultProductCode string
	DefaultCurrency    string
	CustomsDeclarable  bool
	NCMFromBranch      string
	Now                func() time.Time
}

type Service struct {
	store   UserBagStore
	carrier Carrier
	courier CourierNCM
	events  EventPublisher
	opts    Options
}

// NewService wires the fulfillment use cases. events may be nil.
func NewService(store UserBagStore, carrier Carrier, courier CourierNCM, events EventPublisher, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.DefaultProductCode == "" {
		opts.DefaultProductCode = "P"
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}
	return &Service{store: store, carrier: carrier, courier: courier, events: events, opts: opts}
}

// ListPayments returns every payment of the bags matching f with its derived
// status. A non-empty status keeps only payments in that status.
func (s *Service) ListPayments(ctx context.Context, f ListFilter, status string) ([]domain.PaymentView, error) {
	var want domain.Status
	if status != "" {
		st, ok := domain.ParseStatus(status)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidData, status)
		}
		want = st
	}

	bags, err := s.store.ListUserBags(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PaymentView, 0, len(bags))
	for _, bag := range bags {
		for _, v := range bag.Views() {
			if want == "" || v.Status == want {
				out = append(out, v)
			}
		}
	}
	return out, nil
}

// PaymentsByStatus groups the admin payment list by derived status.
func (s *Service) PaymentsByStatus(ctx context.Context, f ListFilter) (map[domain.Status][]domain.PaymentView, error) {
	views, err := s.ListPayments(ctx, f, "")
	if err != nil {
		return nil, err
	}
	return domain.GroupByStatus(views), nil
}

func (s *Service) PaymentStatus(ctx context.Context, bagID, merchantTxnID string) (domain.Status, error) {
	bag, p, err := s.payment(ctx, bagID, merchantTxnID)
	if err != nil {
		return "", err
	}
	return domain.DeriveStatus(p, bag), nil
}

func (s *Service) payment(ctx context.Context, bagID, merchantTxnID string) (domain.UserBag, domain.Payment, error) {
	if bagID == "" {
		return domain.UserBag{}, domain.Payment{}, fmt.Errorf("%w: user bag id is required", ErrInvalidData)
	}
	if merchantTxnID == "" {
		return domain.UserBag{}, domain.Payment{}, fmt.Errorf("%w: merchantTxnId is required", ErrInvalidData)
	}
	bag, err := s.store.GetUserBag(ctx, bagID)
	if err != nil {
		return domain.UserBag{}, domain.Payment{}, err
	}
	p, ok := bag.Payment(merchantTxnID)
	if !ok {
		return domain.UserBag{}, domain.Payment{}, ErrPaymentNotFound
	}
	return bag, p, nil
}

// appendTracking appends rec to bag, re-reading the bag and retrying when a
// concurrent writer bumped the version first. The vendor side effect that
// produced rec has already happened and is never repeated here.
func (s *Service) appendTracking(ctx context.Context, bag domain.UserBag, rec domain.TrackingRecord) (domain.UserBag, error) {
	for attempt := 1; ; attempt++ {
		updated, err := s.store.AppendTracking(ctx, bag.ID, bag.Version, rec)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt >= maxAppendAttempts {
			return domain.UserBag{}, err
		}

		metrics.VersionConflictsTotal.Inc()
		logging.LogWarn("user bag changed concurrently, re-reading", logrus.Fields{
			"user_bag_id": bag.ID, "version": bag.Version, "attempt": attempt,
		})
		if bag, err = s.store.GetUserBag(ctx, bag.ID); err != nil {
			return domain.UserBag{}, err
		}
	}
}

func (s *Service) publish(ctx context.Context, e Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		logging.LogError("publish fulfillment event failed", err, logrus.Fields{
			"event_type": e.Type, "user_bag_id": e.UserBagID,
		})
	}
}

// vendorError classifies a courier failure. The original error stays in the chain.
func vendorError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrVendor, err)
}

func validateStruct(v any) error {
	if err := validation.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidData, err)
	}
	return nil
}

func (s *Service) Rates(ctx context.Context, req dhl.RateRequest) (dhl.RateResponse, error) {
	if len(req.Accounts) == 0 {
		req.Accounts = []dhl.Account{{TypeCode: "shipper", Number: s.opts.Shipper.AccountNumber}}
	}
	if req.PlannedShippingDateAndTime == "" {
		req.PlannedShippingDateAndTime = dhl.PlannedDate(s.opts.Now())
	}
	if req.UnitOfMeasurement == "" {
		req.UnitOfMeasurement = "metric"
	}
	resp, err := s.carrier.Rates(ctx, req)
	if err != nil {
		return dhl.RateResponse{}, vendorError(ctx, err)
	}
	return resp, nil
}

// PaymentRates quotes DHL products for shipping the first product of a payment.
func (s *Service) PaymentRates(ctx context.Context, bagID, merchantTxnID string) (dhl.RateResponse, error) {
	_, p, err := s.payment(ctx, bagID, merchantTxnID)
	if err != nil {
		return dhl.RateResponse{}, err
	}
	return s.Rates(ctx, dhl.NewRateRequest(s.opts.Shipper, p, s.opts.CustomsDeclarable, s.opts.Now()))
}

func (s *Service) Track(ctx context.Context, trackingNumber string) (dhl.TrackResponse, error) {
	if trackingNumber == "" {
		return dhl.TrackResponse{}, fmt.Errorf("%w: tracking number is required", ErrInvalidData)
	}
	resp, err := s.carrier.Track(ctx, trackingNumber)
	if err != nil {
		return dhl.TrackResponse{}, vendorError(ctx, err)
	}
	return resp, nil
}

func (s *Service) ValidateAddress(ctx context.Context, q dhl.AddressQuery) (dhl.AddressValidateResponse, error) {
	if err := validateStruct(q); err != nil {
		return dhl.AddressValidateResponse{}, err
	}
	resp, err := s.carrier.ValidateAddress(ctx, q)
	if err != nil {
		return dhl.AddressValidateResponse{}, vendorError(ctx, err)
	}
	return resp, nil
}

func (s *Service) RequestPickup(ctx context.Context, req dhl.PickupRequest) (dhl.PickupResponse, error) {
	if err := validateStruct(req); err != nil {
		return dhl.PickupResponse{}, err
	}
	if req.CustomerDetails.ShipperDetails.PostalAddress.CountryCode == "" {
		req.CustomerDetails.ShipperDetails = s.opts.Shipper.Party()
	}
	resp, err := s.carrier.RequestPickup(ctx, req)
	if err != nil {
		return dhl.PickupResponse{}, vendorError(ctx, err)
	}
	return resp, nil
}

func (s *Service) LandedCost(ctx context.Context, req dhl.LandedCostRequest) (dhl.LandedCostResponse, error) {
	if err := validateStruct(req); err != nil {
		return dhl.LandedCostResponse{}, err
	}
	if req.CustomerDetails.ShipperDetails.CountryCode == "" {
		sh := s.opts.Shipper
		req.CustomerDetails.ShipperDetails = dhl.RateAddress{PostalCode: sh.PostalCode, CityName: sh.CityName, CountryCode: sh.CountryCode}
	}
	resp, err := s.carrier.LandedCost(ctx, req)
	if err != nil {
		return dhl.LandedCostResponse{}, vendorError(ctx, err)
	}
	return resp, nil
}

func (s *Service) NCMBranches(ctx context.Context) ([]ncm.Branch, error) {
	branches, err := s.courier.Branches(ctx)
	if err != nil {
		return nil, vendorError(ctx, err)
	}
	return branches, nil
}
