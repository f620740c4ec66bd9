package ncm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/logging"
	"github.com/reybrally/fulfillment-service/internal/metrics"
)

const maxResponseSize = 4 << 20

var (
	ErrUnavailable    = errors.New("ncm: service unavailable")
	ErrMissingOrderID = errors.New("ncm: response carries no order id")
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Branch struct {
	Name         string `json:"name"`
	Code         string `json:"code,omitempty"`
	District     string `json:"district_name,omitempty"`
	Region       string `json:"region,omitempty"`
	Phone        string `json:"phone,omitempty"`
	AreasCovered string `json:"areas_covered,omitempty"`
}

// OrderRequest is the form body of POST /order/create. Every value travels as a string.
type OrderRequest struct {
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	Phone2      string `json:"phone2,omitempty"`
	CODCharge   string `json:"cod_charge"`
	Address     string `json:"address"`
	FromBranch  string `json:"fbranch"`
	Branch      string `json:"branch"`
	Package     string `json:"package,omitempty"`
	VendorRefID string `json:"vref_id,omitempty"`
	Instruction string `json:"instruction,omitempty"`
}

type OrderResponse struct {
	Message string      `json:"Message"`
	OrderID json.Number `json:"orderid"`
}

// APIError is returned for non-2xx replies. NCM reports failures as
// {"Error": {...}} or {"detail": "..."} depending on the endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ncm: %d %s", e.StatusCode, e.Message)
}

func (e *APIError) Temporary() bool { return e.StatusCode >= 500 }

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

// Branches lists courier branches. The API has served both a bare array and
// an object wrapping the array under "data".
func (c *Client) Branches(ctx context.Context) ([]Branch, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "branches", http.MethodGet, "/branches", nil, &raw); err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []Branch{}, nil
	}

	var out []Branch
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("ncm: decode branches: %w", err)
		}
		return out, nil
	}
	var wrapped struct {
		Data []Branch `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("ncm: decode branches: %w", err)
	}
	if wrapped.Data == nil {
		return []Branch{}, nil
	}
	return wrapped.Data, nil
}

func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (OrderResponse, error) {
	var out OrderResponse
	if err := c.do(ctx, "create-order", http.MethodPost, "/order/create", req, &out); err != nil {
		return OrderResponse{}, err
	}
	if out.OrderID == "" {
		return OrderResponse{}, ErrMissingOrderID
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, in, out)
	metrics.ObserveVendorCall("ncm", op, err, time.Since(start))
	if err != nil {
		logging.LogError("ncm request failed", err, logrus.Fields{"op": op, "path": path})
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ncm: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("ncm: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
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
		return fmt.Errorf("ncm: failed to read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("ncm: decode response: %w", err)
	}
	return nil
}

func errorMessage(raw []byte, code int) string {
	var body struct {
		Detail string          `json:"detail"`
		Error  json.RawMessage `json:"Error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Detail != "" {
			return body.Detail
		}
		if len(body.Error) > 0 {
			return string(body.Error)
		}
	}
	if len(raw) > 0 && len(raw) < 512 {
		return strings.TrimSpace(string(raw))
	}
	return http.StatusText(code)
}
