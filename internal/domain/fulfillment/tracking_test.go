package fulfillment

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackingInfo_DecodesArray(t *testing.T) {
	raw := `[
		{"merchantTxnId":"TXN1","trackingNumber":"1234567890","status":"Created","success":true,
		 "documents":[{"typeCode":"label","imageFormat":"PDF","content":"JVBERi0="}]},
		{"type":"ncm_order","ncmOrderId":55,"gatewayReferenceNo":"G1","timestamp":"2024-05-01T10:00:00Z"},
		null
	]`

	var info TrackingInfo
	require.NoError(t, json.Unmarshal([]byte(raw), &info))
	require.Len(t, info, 2)

	require.NotNil(t, info[0].DHL)
	assert.Equal(t, "TXN1", info[0].DHL.MerchantTxnID)
	doc, ok := info[0].DHL.Document("LABEL")
	assert.True(t, ok)
	assert.Equal(t, "PDF", doc.ImageFormat)

	require.NotNil(t, info[1].NCM)
	assert.Equal(t, "55", info[1].NCM.NCMOrderID)
	assert.Equal(t, "G1", info[1].NCM.GatewayReferenceNo)
	assert.True(t, info[1].IsNCM())
}

func TestTrackingInfo_DecodesLegacySingleObject(t *testing.T) {
	var info TrackingInfo
	require.NoError(t, json.Unmarshal([]byte(`{"merchantTxnId":"TXN1","success":true}`), &info))

	require.Len(t, info, 1)
	assert.True(t, info[0].Succeeded())
}

func TestTrackingInfo_DecodesNull(t *testing.T) {
	var bag UserBag
	require.NoError(t, json.Unmarshal([]byte(`{"id":"b","trackingInfo":null}`), &bag))
	assert.Empty(t, bag.TrackingInfo)
}

func TestTrackingInfo_RejectsScalar(t *testing.T) {
	var info TrackingInfo
	assert.Error(t, json.Unmarshal([]byte(`"oops"`), &info))
}

func TestTrackingInfo_EncodesArrayAndNCMType(t *testing.T) {
	info := TrackingInfo(nil).Append(NewNCMRecord(NCMOrder{NCMOrderID: "NCM-55", GatewayReferenceNo: "G1"}))

	b, err := json.Marshal(info)
	require.NoError(t, err)

	var generic []map[string]any
	require.NoError(t, json.Unmarshal(b, &generic))
	require.Len(t, generic, 1)
	assert.Equal(t, "ncm_order", generic[0]["type"])
	assert.Equal(t, "NCM-55", generic[0]["ncmOrderId"])

	empty, err := json.Marshal(TrackingInfo(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(empty))
}

func TestTrackingInfo_AppendKeepsStoredRecordsVerbatim(t *testing.T) {
	stored := `[
		{"merchantTxnId":"T1","status":"Created","success":true,"dispatchConfirmationNumber":"PRG1",
		 "estimatedDeliveryDate":"2024-05-03","shipmentDetails":[{"serviceHandlingFeatureCodes":["PLT"]}]},
		{"type":"ncm_order","ncmOrderId":55,"gatewayReferenceNo":"G1","deliveryCharge":150}
	]`
	var info TrackingInfo
	require.NoError(t, json.Unmarshal([]byte(stored), &info))

	next := info.Append(NewDHLRecord(DHLShipment{MerchantTxnID: "T2", TrackingNumber: "777", Success: true}))
	b, err := json.Marshal(next)
	require.NoError(t, err)

	var generic []map[string]any
	require.NoError(t, json.Unmarshal(b, &generic))
	require.Len(t, generic, 3)

	assert.Equal(t, "PRG1", generic[0]["dispatchConfirmationNumber"])
	assert.Equal(t, "2024-05-03", generic[0]["estimatedDeliveryDate"])
	assert.Contains(t, generic[0], "shipmentDetails")
	assert.NotContains(t, generic[0], "createdAt")
	assert.NotContains(t, generic[0], "trackingNumber")

	assert.EqualValues(t, 55, generic[1]["ncmOrderId"], "numeric id stays numeric")
	assert.EqualValues(t, 150, generic[1]["deliveryCharge"])
	assert.NotContains(t, generic[1], "timestamp")

	assert.Equal(t, "777", generic[2]["trackingNumber"])
	assert.NotContains(t, generic[2], "createdAt", "zero times are omitted")
}

func TestTrackingRecord_TolerantFields(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		shipped bool
		at      time.Time
	}{
		{"epoch millis", `{"type":"ncm_order","ncmOrderId":55,"timestamp":1714550400000}`, true, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
		{"epoch seconds", `{"type":"ncm_order","ncmOrderId":"55","timestamp":1714550400}`, true, time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
		{"sql datetime", `{"merchantTxnId":"T1","success":true,"createdAt":"2024-05-01 10:00:00"}`, true, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"string success", `{"merchantTxnId":"T1","success":"true"}`, true, time.Time{}},
		{"numeric success", `{"merchantTxnId":"T1","success":1}`, true, time.Time{}},
		{"string false", `{"merchantTxnId":"T1","success":"false"}`, false, time.Time{}},
		{"garbage time", `{"merchantTxnId":"T1","status":"Created","createdAt":{"$date":"x"}}`, true, time.Time{}},
		{"zero ncm id", `{"type":"ncm_order","ncmOrderId":0}`, false, time.Time{}},
		{"zero ncm id string", `{"type":"ncm_order","ncmOrderId":"0"}`, false, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec TrackingRecord
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &rec))
			assert.Equal(t, tt.shipped, rec.Succeeded())
			switch {
			case rec.NCM != nil:
				assert.True(t, tt.at.Equal(rec.NCM.Timestamp), "got %v", rec.NCM.Timestamp)
			case rec.DHL != nil:
				assert.True(t, tt.at.Equal(rec.DHL.CreatedAt), "got %v", rec.DHL.CreatedAt)
			default:
				t.Fatal("no variant decoded")
			}
		})
	}
}

func TestTrackingInfo_UndecodableEntryStaysOpaque(t *testing.T) {
	stored := `[{"merchantTxnId":42,"success":true},{"merchantTxnId":"T1","success":true}]`
	var info TrackingInfo
	require.NoError(t, json.Unmarshal([]byte(stored), &info))
	require.Len(t, info, 2)

	assert.True(t, info[0].Opaque())
	assert.False(t, info[0].Succeeded())
	assert.Equal(t, StatusShipped, DeriveStatus(Payment{MerchantTxnID: "T1"}, UserBag{TrackingInfo: info}))

	b, err := json.Marshal(info)
	require.NoError(t, err)
	assert.JSONEq(t, stored, string(b))
}

func TestTrackingInfo_AppendDoesNotAlias(t *testing.T) {
	base := make(TrackingInfo, 1, 4)
	base[0] = NewDHLRecord(DHLShipment{MerchantTxnID: "A"})

	first := base.Append(NewDHLRecord(DHLShipment{MerchantTxnID: "B"}))
	second := base.Append(NewDHLRecord(DHLShipment{MerchantTxnID: "C"}))

	assert.Equal(t, "B", first[1].DHL.MerchantTxnID)
	assert.Equal(t, "C", second[1].DHL.MerchantTxnID)
	assert.Len(t, base, 1)
}

func TestTrackingRecord_EmptyVariantFailsToEncode(t *testing.T) {
	_, err := json.Marshal(TrackingRecord{})
	assert.Error(t, err)
}

func TestUserBag_ShipmentForReturnsLatestSuccessful(t *testing.T) {
	bag := UserBag{TrackingInfo: TrackingInfo{
		NewDHLRecord(DHLShipment{MerchantTxnID: "A", TrackingNumber: "old", Success: true}),
		NewDHLRecord(DHLShipment{MerchantTxnID: "A", TrackingNumber: "broken"}),
		NewDHLRecord(DHLShipment{MerchantTxnID: "A", TrackingNumber: "new", Status: "Created"}),
	}}

	s, ok := bag.ShipmentFor(Payment{MerchantTxnID: "A"})
	require.True(t, ok)
	assert.Equal(t, "new", s.TrackingNumber)

	_, ok = bag.ShipmentFor(Payment{MerchantTxnID: "Z"})
	assert.False(t, ok)
}

func TestOrderData_FirstPackageDefaultsToZero(t *testing.T) {
	assert.Equal(t, Package{}, OrderData{}.FirstPackage())
	assert.Equal(t, Package{}, OrderData{Products: []OrderedProduct{{Name: "scarf"}}}.FirstPackage())

	d := OrderData{Products: []OrderedProduct{
		{Package: &Package{Weight: 1.5, Length: 10}},
		{Package: &Package{Weight: 9}},
	}}
	assert.Equal(t, 1.5, d.FirstPackage().Weight)
}
