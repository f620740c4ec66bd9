package dhl

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reybrally/fulfillment-service/internal/logging"
	"github.com/reybrally/fulfillment-service/internal/metrics"
	"github.com/sirupsen/logrus"
)

const maxResponseSize = 10 << 20

var ErrUnavailable = errors.New("dhl: service unavailable")

type Config struct {
	BaseURL       string
	APIKey        string
	APISecret     string
	AccountNumber string
	Timeout       time.Duration
}

// Client talks to the MyDHL Express REST API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	auth       string
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		auth:       "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.APIKey+":"+cfg.APISecret)),
	}
}

func (c *Client) Rates(ctx context.Context, req RateRequest) (RateResponse, error) {
	var out RateResponse
	err := c.do(ctx, "rates", http.MethodPost, "/rates", nil, req, &out)
	return out, err
}

func (c *Client) CreateShipment(ctx context.Context, req ShipmentRequest) (ShipmentResponse, error) {
	var out ShipmentResponse
	err := c.do(ctx, "shipments", http.MethodPost, "/shipments", nil, req, &out)
	return out, err
}

// Track looks up one or more shipments by their waybill numbers.
func (c *Client) Track(ctx context.Context, trackingNumbers ...string) (TrackResponse, error) {
	q := url.Values{}
	for _, n := range trackingNumbers {
		q.Add("shipmentTrackingNumber", n)
	}
	q.Set("trackingView", "all-checkpoints")
	q.Set("levelOfDetail", "all")

	var out TrackResponse
	err := c.do(ctx, "track", http.MethodGet, "/track/shipments", q, nil, &out)
	return out, err
}

func (c *Client) ValidateAddress(ctx context.Context, aq AddressQuery) (AddressValidateResponse, error) {
	q := url.Values{}
	typ := aq.Type
	if typ == "" {
		typ = "delivery"
	}
	q.Set("type", typ)
	q.Set("countryCode", strings.ToUpper(aq.CountryCode))
	if aq.PostalCode != "" {
		q.Set("postalCode", aq.PostalCode)
	}
	if aq.CityName != "" {
		q.Set("cityName", aq.CityName)
	}

	var out AddressValidateResponse
	err := c.do(ctx, "address-validate", http.MethodGet, "/address-validate", q, nil, &out)
	return out, err
}

func (c *Client) RequestPickup(ctx context.Context, req PickupRequest) (PickupResponse, error) {
	if len(req.Accounts) == 0 {
		req.Accounts = []Account{{TypeCode: accountShipper, Number: c.cfg.AccountNumber}}
	}
	var out PickupResponse
	err := c.do(ctx, "pickup", http.MethodPost, "/pickup", nil, req, &out)
	return out, err
}

func (c *Client) LandedCost(ctx context.Context, req LandedCostRequest) (LandedCostResponse, error) {
	if len(req.Accounts) == 0 {
		req.Accounts = []Account{{TypeCode: accountShipper, Number: c.cfg.AccountNumber}}
	}
	if req.UnitOfMeasurement == "" {
		req.UnitOfMeasurement = unitMetric
	}
	var out LandedCostResponse
	err := c.do(ctx, "landed-cost", http.MethodPost, "/landed-cost", nil, req, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, in, out any) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, q, in, out)
	metrics.ObserveVendorCall("dhl", op, err, time.Since(start))
	if err != nil {
		logging.LogError("dhl request failed", err, logrus.Fields{"op": op, "path": path})
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, q url.Values, in, out any) error {
	u := c.cfg.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("dhl: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("dhl: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Message-Reference", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("dhl: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(raw, apiErr) != nil || (apiErr.Title == "" && apiErr.Detail == "") {
			apiErr.Title = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("dhl: decode response: %w", err)
	}
	return nil
}
