package orders

import (
	"context"
	"time"

	"github.com/reybrally/fulfillment-service/internal/adapters/dhl"
	"github.com/reybrally/fulfillment-service/internal/adapters/ncm"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
)

type UserBagGetter interface {
	GetUserBag(ctx context.Context, id string) (domain.UserBag, error)
}

type UserBagLister interface {
	ListUserBags(ctx context.Context, filter ListFilter) ([]domain.UserBag, error)
}

// TrackingAppender appends rec to the bag's tracking history only if the
// stored version still equals expectedVersion, returning ErrVersionConflict
// otherwise. The returned bag carries the bumped version.
type TrackingAppender interface {
	AppendTracking(ctx context.Context, id string, expectedVersion int64, rec domain.TrackingRecord) (domain.UserBag, error)
}

type UserBagStore interface {
	UserBagGetter
	UserBagLister
	TrackingAppender
}

type ListFilter struct {
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	UserID      string
	Limit       int
}

type Carrier interface {
	Rates(ctx context.Context, req dhl.RateRequest) (dhl.RateResponse, error)
	CreateShipment(ctx context.Context, req dhl.ShipmentRequest) (dhl.ShipmentResponse, error)
	Track(ctx context.Context, trackingNumbers ...string) (dhl.TrackResponse, error)
	ValidateAddress(ctx context.Context, q dhl.AddressQuery) (dhl.AddressValidateResponse, error)
	RequestPickup(ctx context.Context, req dhl.PickupRequest) (dhl.PickupResponse, error)
	LandedCost(ctx context.Context, req dhl.LandedCostRequest) (dhl.LandedCostResponse, error)
}

type CourierNCM interface {
	Branches(ctx context.Context) ([]ncm.Branch, error)
	CreateOrder(ctx context.Context, req ncm.OrderRequest) (ncm.OrderResponse, error)
}

const (
	EventShipmentCreated = "shipment.created"
	EventNCMOrderCreated = "ncm_order.created"
)

// Event announces a tracking record appended to a user bag.
type Event struct {
	Type       string    `json:"type"`
	UserBagID  string    `json:"user_bag_id"`
	Carrier    string    `json:"carrier"`
	PaymentRef string    `json:"payment_ref"`
	Tracking   string    `json:"tracking"`
	OccurredAt time.Time `json:"occurred_at"`
}

type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}
