package fulfillment

import "strings"

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusShipped Status = "shipped"
)

var Statuses = []Status{StatusPending, StatusSuccess, StatusFailed, StatusShipped}

func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusSuccess, StatusFailed, StatusShipped:
		return st, true
	}
	return "", false
}

// DeriveStatus computes the fulfillment status of p from the tracking history
// of its owning bag. A successful matching shipment always wins over the raw
// gateway status, including "Fail": shipments may be created by hand after a
// payment is reconciled outside the gateway.
func DeriveStatus(p Payment, bag UserBag) Status {
	for _, rec := range bag.TrackingInfo {
		switch {
		case rec.NCM != nil:
			if p.GatewayReferenceNo != "" && rec.NCM.GatewayReferenceNo == p.GatewayReferenceNo && rec.NCM.Succeeded() {
				return StatusShipped
			}
		case rec.DHL != nil:
			if p.MerchantTxnID != "" && rec.DHL.MerchantTxnID == p.MerchantTxnID && rec.DHL.Succeeded() {
				return StatusShipped
			}
		}
	}
	return NormalizePaymentStatus(p.Status)
}

// NormalizePaymentStatus maps a raw gateway status onto success/failed/pending.
func NormalizePaymentStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success":
		return StatusSuccess
	case "fail", "failed":
		return StatusFailed
	}
	return StatusPending
}

func GroupByStatus(views []PaymentView) map[Status][]PaymentView {
	out := make(map[Status][]PaymentView, len(Statuses))
	for _, s := range Statuses {
		out[s] = []PaymentView{}
	}
	for _, v := range views {
		out[v.Status] = append(out[v.Status], v)
	}
	return out
}
