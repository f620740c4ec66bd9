package cms

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reybrally/fulfillment-service/internal/app/orders"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
	"github.com/reybrally/fulfillment-service/internal/logging"
)

func TestMain(m *testing.M) {
	logging.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func createMockCMS(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Token: "secret", PageSize: 2})
}

const v4Bag = `{"data":{"id":7,"attributes":{
	"userId":"u-1","version":3,"createdAt":"2024-02-01T10:00:00Z",
	"payments":[{"merchantTxnId":"TXN1","gatewayReferenceNo":"G1","status":"Success","amount":"120.50"}],
	"trackingInfo":{"merchantTxnId":"OLD","trackingNumber":"999","status":"Created","success":true}
}}}`

const v5Bag = `{"data":{"id":7,"documentId":"abc123","userId":"u-2","version":1,
	"payments":[{"merchantTxnId":"TXN9","status":"Pending","amount":10}],
	"trackingInfo":[]
}}`

func TestGetUserBag_V4Attributes(t *testing.T) {
	c := createMockCMS(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/user-bags/7", r.URL.Path)
		assert.Equal(t, "*", r.URL.Query().Get("populate"))
		_, _ = io.WriteString(w, v4Bag)
	})

	bag, err := c.GetUserBag(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, "7", bag.ID)
	assert.Equal(t, "u-1", bag.UserID)
	assert.EqualValues(t, 3, bag.Version)
	require.Len(t, bag.Payments, 1)
	assert.Equal(t, "120.5", bag.Payments[0].Amount.String())
	require.Len(t, bag.TrackingInfo, 1, "legacy single-object tracking info becomes a list")
}

func TestGetUserBag_V5Flattened(t *testing.T) {
	c := createMockCMS(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, v5Bag)
	})

	bag, err := c.GetUserBag(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", bag.ID)
	assert.Equal(t, "u-2", bag.UserID)
	require.Len(t, bag.Payments, 1)
	assert.Equal(t, "TXN9", bag.Payments[0].MerchantTxnID)
}

func TestGetUserBag_Errors(t *testing.T) {
	status := http.StatusNotFound
	c := createMockCMS(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"data":null,"error":{"status":404,"message":"Not Found"}}`)
	})

	_, err := c.GetUserBag(context.Background(), "1")
	assert.ErrorIs(t, err, orders.ErrNotFound)

	status = http.StatusInternalServerError
	_, err = c.GetUserBag(context.Background(), "1")
	assert.ErrorIs(t, err, orders.ErrVendor)

	_, err = c.GetUserBag(context.Background(), "")
	assert.ErrorIs(t, err, orders.ErrInvalidData)
}

func TestListUserBags_PaginatesAndFilters(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var pages []string
	c := createMockCMS(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2024-01-01T00:00:00.000Z", q.Get("filters[createdAt][$gte]"))
		assert.Equal(t, "2", q.Get("pagination[pageSize]"))
		page := q.Get("pagination[page]")
		pages = append(pages, page)

		n, _ := strconv.Atoi(page)
		data := []map[string]any{
			{"id": n*10 + 1, "attributes": map[string]any{"version": 1}},
			{"id": n*10 + 2, "attributes": map[string]any{"version": 1}},
		}
		if n == 2 {
			data = data[:1]
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": data,
			"meta": map[string]any{"pagination": map[string]any{"page": n, "pageSize": 2, "pageCount": 2, "total": 3}},
		})
	})

	bags, err := c.ListUserBags(context.Background(), orders.ListFilter{CreatedFrom: &from})
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, pages)
	require.Len(t, bags, 3)
	assert.Equal(t, "11", bags[0].ID)
	assert.Equal(t, "21", bags[2].ID)
}

func TestListUserBags_Limit(t *testing.T) {
	calls := 0
	c := createMockCMS(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.WriteString(w, `{"data":[{"id":1,"attributes":{}},{"id":2,"attributes":{}}],"meta":{"pagination":{"pageCount":5}}}`)
	})

	bags, err := c.ListUserBags(context.Background(), orders.ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, bags, 1)
	assert.Equal(t, 1, calls)
}

func TestAppendTracking(t *testing.T) {
	var put map[string]map[string]json.RawMessage
	c := createMockCMS(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, v4Bag)
		case http.MethodPut:
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&put))
			_, _ = io.WriteString(w, `{"data":{"id":7,"attributes":{"version":4,"trackingInfo":`+string(put["data"]["trackingInfo"])+`}}}`)
		}
	})

	rec := domain.NewNCMRecord(domain.NCMOrder{NCMOrderID: "555", GatewayReferenceNo: "G1"})
	bag, err := c.AppendTracking(context.Background(), "7", 3, rec)
	require.NoError(t, err)

	assert.JSONEq(t, "4", string(put["data"]["version"]))
	assert.EqualValues(t, 4, bag.Version)
	require.Len(t, bag.TrackingInfo, 2)
	assert.True(t, bag.TrackingInfo[1].IsNCM())
	assert.Len(t, bag.Payments, 1, "payments carried over from the read")
}

func TestAppendTracking_PreservesStoredRecords(t *testing.T) {
	const stored = `{"data":{"id":7,"attributes":{"version":2,"trackingInfo":[
		{"merchantTxnId":"T1","status":"Created","success":true,"dispatchConfirmationNumber":"PRG1"},
		{"type":"ncm_order","ncmOrderId":55,"gatewayReferenceNo":"G1","deliveryCharge":150}
	]}}}`
	var sent []map[string]any
	c := createMockCMS(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, stored)
		case http.MethodPut:
			var body struct {
				Data struct {
					TrackingInfo []map[string]any `json:"trackingInfo"`
				} `json:"data"`
			}
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			sent = body.Data.TrackingInfo
			_, _ = io.WriteString(w, `{"data":{"id":7,"attributes":{"version":3}}}`)
		}
	})

	_, err := c.AppendTracking(context.Background(), "7", 2, domain.NewDHLRecord(domain.DHLShipment{MerchantTxnID: "T2", Success: true}))
	require.NoError(t, err)

	require.Len(t, sent, 3)
	assert.Equal(t, "PRG1", sent[0]["dispatchConfirmationNumber"])
	assert.NotContains(t, sent[0], "createdAt")
	assert.EqualValues(t, 55, sent[1]["ncmOrderId"])
	assert.EqualValues(t, 150, sent[1]["deliveryCharge"])
	assert.NotContains(t, sent[1], "timestamp")
	assert.Equal(t, "T2", sent[2]["merchantTxnId"])
}

func TestListUserBags_SkipsUnreadableBag(t *testing.T) {
	c := createMockCMS(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[
			{"id":1,"attributes":{"payments":[{"merchantTxnId":"A","amount":"not-a-number"}]}},
			{"id":2,"attributes":{"trackingInfo":[{"type":"ncm_order","ncmOrderId":5,"timestamp":1714550400000},{"success":"true"}]}}
		],"meta":{"pagination":{"pageCount":1}}}`)
	})

	bags, err := c.ListUserBags(context.Background(), orders.ListFilter{})
	require.NoError(t, err)
	require.Len(t, bags, 1)
	assert.Equal(t, "2", bags[0].ID)
	assert.Len(t, bags[0].TrackingInfo, 2)
}

func TestAppendTracking_StaleVersion(t *testing.T) {
	puts := 0
	c := createMockCMS(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			puts++
		}
		_, _ = io.WriteString(w, v4Bag)
	})

	_, err := c.AppendTracking(context.Background(), "7", 2, domain.NewNCMRecord(domain.NCMOrder{NCMOrderID: "1"}))
	assert.ErrorIs(t, err, orders.ErrVersionConflict)
	assert.Zero(t, puts)
}
