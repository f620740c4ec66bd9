package kafka

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/app/orders"
	"github.com/reybrally/fulfillment-service/internal/logging"
)

// CacheClearer drops cached analytics; "" clears every tab.
type CacheClearer interface {
	ClearCache(ctx context.Context, tab string) error
}

// InvalidateAnalytics returns a handler that clears every analytics tab when a
// shipment or courier order changes payment statuses. Other events are ignored.
func InvalidateAnalytics(c CacheClearer) Handler {
	return func(ctx context.Context, msg Message) error {
		switch msg.Envelope.EventType {
		case orders.EventShipmentCreated, orders.EventNCMOrderCreated:
		default:
			return nil
		}
		if err := c.ClearCache(ctx, ""); err != nil {
			return err
		}
		logging.LogDebug("analytics cache invalidated", logrus.Fields{
			"event_type":  msg.Envelope.EventType,
			"user_bag_id": msg.Envelope.EntityID,
		})
		return nil
	}
}
