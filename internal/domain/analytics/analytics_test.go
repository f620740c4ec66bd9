package analytics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
)

func TestCacheKey_Format(t *testing.T) {
	f := &DateFilter{
		Start:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 1, 31, 23, 59, 59, 999_000_000, time.UTC),
		Preset: "thisMonth",
	}

	assert.Equal(t, "sales-2024-01-01T00:00:00.000Z-2024-01-31T23:59:59.999Z-thisMonth", CacheKey("sales", f))
	assert.Equal(t, "sales-all", CacheKey("sales", nil))

	f.Preset = ""
	assert.Equal(t, "sales-2024-01-01T00:00:00.000Z-2024-01-31T23:59:59.999Z-custom", CacheKey("sales", f))
}

func TestCacheKey_NormalizesToUTC(t *testing.T) {
	kathmandu := time.FixedZone("NPT", 5*3600+45*60)
	local := &DateFilter{Start: time.Date(2024, 1, 1, 5, 45, 0, 0, kathmandu), End: time.Date(2024, 1, 2, 5, 45, 0, 0, kathmandu)}
	utc := &DateFilter{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}

	assert.Equal(t, CacheKey("orders", utc), CacheKey("orders", local))
}

func TestCacheKey_DistinctAndIdempotent(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	inputs := []struct {
		tab string
		f   *DateFilter
	}{
		{"sales", nil},
		{"orders", nil},
		{"sales", &DateFilter{Start: base, End: base.AddDate(0, 0, 7)}},
		{"sales", &DateFilter{Start: base, End: base.AddDate(0, 0, 7), Preset: "last7"}},
		{"sales", &DateFilter{Start: base, End: base.AddDate(0, 0, 8)}},
		{"sales", &DateFilter{Start: base.Add(time.Millisecond), End: base.AddDate(0, 0, 7)}},
		{"orders", &DateFilter{Start: base, End: base.AddDate(0, 0, 7)}},
	}

	seen := map[string]int{}
	for i, in := range inputs {
		k := CacheKey(in.tab, in.f)
		assert.Equal(t, k, CacheKey(in.tab, in.f), "key must be stable")
		if j, dup := seen[k]; dup {
			t.Fatalf("inputs %d and %d collide on %q", j, i, k)
		}
		seen[k] = i
	}
}

func TestBuildReport(t *testing.T) {
	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	bags := []fulfillment.UserBag{
		{
			ID: "bag-1",
			Payments: []fulfillment.Payment{
				{
					MerchantTxnID: "A", Status: "Fail", Amount: decimal.NewFromInt(100), CreatedAt: jan,
					OrderData: fulfillment.OrderData{Products: []fulfillment.OrderedProduct{{Name: "shawl", Quantity: 2}}},
				},
				{
					MerchantTxnID: "B", Status: "Success", Amount: decimal.RequireFromString("49.50"), CreatedAt: jan,
					OrderData: fulfillment.OrderData{Products: []fulfillment.OrderedProduct{{Name: "kurta"}, {Name: "shawl", Quantity: 1}}},
				},
				{MerchantTxnID: "C", Status: "Fail", Amount: decimal.NewFromInt(7), CreatedAt: jan},
				{MerchantTxnID: "D", Status: "Success", Amount: decimal.NewFromInt(1000), CreatedAt: feb},
			},
			TrackingInfo: fulfillment.TrackingInfo{
				fulfillment.NewDHLRecord(fulfillment.DHLShipment{MerchantTxnID: "A", Success: true}),
			},
		},
	}
	f := &DateFilter{Start: jan.AddDate(0, 0, -9), End: jan.AddDate(0, 0, 20)}
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	r := BuildReport("sales", f, bags, now)

	assert.Equal(t, 3, r.Payments)
	assert.True(t, decimal.RequireFromString("149.50").Equal(r.Revenue), "revenue %s", r.Revenue)
	assert.Equal(t, 1, r.ByStatus[fulfillment.StatusShipped])
	assert.Equal(t, 1, r.ByStatus[fulfillment.StatusSuccess])
	assert.Equal(t, 1, r.ByStatus[fulfillment.StatusFailed])
	assert.Equal(t, 0, r.ByStatus[fulfillment.StatusPending])
	require.Len(t, r.TopProducts, 2)
	assert.Equal(t, ProductCount{Name: "shawl", Quantity: 3}, r.TopProducts[0])
	assert.Equal(t, ProductCount{Name: "kurta", Quantity: 1}, r.TopProducts[1])
	assert.Equal(t, now, r.GeneratedAt)

	all := BuildReport("sales", nil, bags, now)
	assert.Equal(t, 4, all.Payments)
}
