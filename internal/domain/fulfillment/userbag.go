package fulfillment

import "time"

// UserBag is the order container owning payments and shipment history.
// Version is the optimistic-concurrency token checked on every update.
type UserBag struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	Payments     []Payment    `json:"payments"`
	TrackingInfo TrackingInfo `json:"trackingInfo"`
	Version      int64        `json:"version"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func (b UserBag) Payment(merchantTxnID string) (Payment, bool) {
	if merchantTxnID == "" {
		return Payment{}, false
	}
	for _, p := range b.Payments {
		if p.MerchantTxnID == merchantTxnID {
			return p, true
		}
	}
	return Payment{}, false
}

func (b UserBag) PaymentByGatewayRef(ref string) (Payment, bool) {
	if ref == "" {
		return Payment{}, false
	}
	for _, p := range b.Payments {
		if p.GatewayReferenceNo == ref {
			return p, true
		}
	}
	return Payment{}, false
}

// ShipmentFor returns the latest successful DHL shipment recorded for p.
func (b UserBag) ShipmentFor(p Payment) (DHLShipment, bool) {
	if p.MerchantTxnID == "" {
		return DHLShipment{}, false
	}
	for i := len(b.TrackingInfo) - 1; i >= 0; i-- {
		s := b.TrackingInfo[i].DHL
		if s != nil && s.MerchantTxnID == p.MerchantTxnID && s.Succeeded() {
			return *s, true
		}
	}
	return DHLShipment{}, false
}

// Views derives the status of every payment in the bag.
func (b UserBag) Views() []PaymentView {
	out := make([]PaymentView, 0, len(b.Payments))
	for _, p := range b.Payments {
		out = append(out, PaymentView{UserBagID: b.ID, Payment: p, Status: DeriveStatus(p, b)})
	}
	return out
}
