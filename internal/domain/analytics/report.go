package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
)

type ProductCount struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type Report struct {
	Tab         string                     `json:"tab"`
	Filter      *DateFilter                `json:"filter,omitempty"`
	Payments    int                        `json:"payments"`
	Revenue     decimal.Decimal            `json:"revenue"`
	ByStatus    map[fulfillment.Status]int `json:"byStatus"`
	TopProducts []ProductCount             `json:"topProducts"`
	GeneratedAt time.Time                  `json:"generatedAt"`
}

const topProductsLimit = 10

// BuildReport aggregates the payments of bags created inside f. Revenue counts
// payments whose derived status is success or shipped.
func BuildReport(tab string, f *DateFilter, bags []fulfillment.UserBag, now time.Time) Report {
	r := Report{
		Tab:         tab,
		Filter:      f,
		Revenue:     decimal.Zero,
		ByStatus:    make(map[fulfillment.Status]int, len(fulfillment.Statuses)),
		TopProducts: []ProductCount{},
		GeneratedAt: now,
	}
	for _, s := range fulfillment.Statuses {
		r.ByStatus[s] = 0
	}

	qty := map[string]int{}
	for _, bag := range bags {
		for _, p := range bag.Payments {
			if !p.CreatedAt.IsZero() && !f.Contains(p.CreatedAt) {
				continue
			}
			st := fulfillment.DeriveStatus(p, bag)
			r.Payments++
			r.ByStatus[st]++
			if st != fulfillment.StatusSuccess && st != fulfillment.StatusShipped {
				continue
			}
			r.Revenue = r.Revenue.Add(p.Amount)
			for _, item := range p.OrderData.Products {
				q := item.Quantity
				if q <= 0 {
					q = 1
				}
				qty[item.Name] += q
			}
		}
	}

	for name, q := range qty {
		r.TopProducts = append(r.TopProducts, ProductCount{Name: name, Quantity: q})
	}
	sort.Slice(r.TopProducts, func(i, j int) bool {
		if r.TopProducts[i].Quantity != r.TopProducts[j].Quantity {
			return r.TopProducts[i].Quantity > r.TopProducts[j].Quantity
		}
		return r.TopProducts[i].Name < r.TopProducts[j].Name
	})
	if len(r.TopProducts) > topProductsLimit {
		r.TopProducts = r.TopProducts[:topProductsLimit]
	}
	return r
}
