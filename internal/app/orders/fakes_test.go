package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/reybrally/fulfillment-service/internal/adapters/dhl"
	"github.com/reybrally/fulfillment-service/internal/adapters/ncm"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
)

type memStore struct {
	mu      sync.Mutex
	bags    map[string]domain.UserBag
	appends int
	// beforeAppend runs inside AppendTracking before the version check.
	beforeAppend func(s *memStore, id string)
	appendErr    error
}

func newMemStore(bags ...domain.UserBag) *memStore {
	s := &memStore{bags: map[string]domain.UserBag{}}
	for _, b := range bags {
		s.bags[b.ID] = b
	}
	return s
}

// bump simulates a concurrent writer.
func (s *memStore) bump(id string) {
	b := s.bags[id]
	b.Version++
	s.bags[id] = b
}

func (s *memStore) GetUserBag(_ context.Context, id string) (domain.UserBag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bags[id]
	if !ok {
		return domain.UserBag{}, ErrNotFound
	}
	return b, nil
}

func (s *memStore) ListUserBags(_ context.Context, f ListFilter) ([]domain.UserBag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserBag, 0, len(s.bags))
	for _, b := range s.bags {
		if f.UserID != "" && b.UserID != f.UserID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *memStore) AppendTracking(_ context.Context, id string, expected int64, rec domain.TrackingRecord) (domain.UserBag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.appendErr != nil {
		return domain.UserBag{}, s.appendErr
	}
	if s.beforeAppend != nil {
		s.beforeAppend(s, id)
	}
	b, ok := s.bags[id]
	if !ok {
		return domain.UserBag{}, ErrNotFound
	}
	if b.Version != expected {
		return domain.UserBag{}, ErrVersionConflict
	}
	b.TrackingInfo = b.TrackingInfo.Append(rec)
	b.Version++
	s.bags[id] = b
	return b, nil
}

type fakeCarrier struct {
	rates       dhl.RateResponse
	ratesErr    error
	shipment    dhl.ShipmentResponse
	shipErr     error
	shipCalls   int
	lastRequest dhl.ShipmentRequest
}

func (c *fakeCarrier) Rates(context.Context, dhl.RateRequest) (dhl.RateResponse, error) {
	return c.rates, c.ratesErr
}

func (c *fakeCarrier) CreateShipment(_ context.Context, req dhl.ShipmentRequest) (dhl.ShipmentResponse, error) {
	c.shipCalls++
	c.lastRequest = req
	return c.shipment, c.shipErr
}

func (c *fakeCarrier) Track(_ context.Context, n ...string) (dhl.TrackResponse, error) {
	return dhl.TrackResponse{Shipments: []dhl.TrackedShipment{{ShipmentTrackingNumber: n[0], Status: "transit"}}}, nil
}

func (c *fakeCarrier) ValidateAddress(context.Context, dhl.AddressQuery) (dhl.AddressValidateResponse, error) {
	return dhl.AddressValidateResponse{}, nil
}

func (c *fakeCarrier) RequestPickup(context.Context, dhl.PickupRequest) (dhl.PickupResponse, error) {
	return dhl.PickupResponse{}, nil
}

func (c *fakeCarrier) LandedCost(context.Context, dhl.LandedCostRequest) (dhl.LandedCostResponse, error) {
	return dhl.LandedCostResponse{}, nil
}

type fakeCourier struct {
	branches    []ncm.Branch
	branchesErr error
	orderID     string
	orderErr    error
	orders      []ncm.OrderRequest
}

func (c *fakeCourier) Branches(context.Context) ([]ncm.Branch, error) {
	return c.branches, c.branchesErr
}

func (c *fakeCourier) CreateOrder(_ context.Context, req ncm.OrderRequest) (ncm.OrderResponse, error) {
	c.orders = append(c.orders, req)
	if c.orderErr != nil {
		return ncm.OrderResponse{}, c.orderErr
	}
	return ncm.OrderResponse{Message: "created", OrderID: json.Number(c.orderID)}, nil
}

type recordingPublisher struct {
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.events = append(p.events, e)
	return p.err
}

var errBoom = errors.New("boom")
