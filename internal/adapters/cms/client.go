package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reybrally/fulfillment-service/internal/app/orders"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
	"github.com/reybrally/fulfillment-service/internal/logging"
	"github.com/reybrally/fulfillment-service/internal/metrics"
)

const (
	maxResponseSize = 10 << 20
	defaultPageSize = 100
	collection      = "/api/user-bags"
	// isoMillis matches the ISO strings Strapi stores createdAt as.
	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

type Config struct {
	BaseURL  string
	Token    string
	Timeout  time.Duration
	PageSize int
}

// Client is a UserBagStore backed by the Strapi user-bags collection.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

func (c *Client) GetUserBag(ctx context.Context, id string) (domain.UserBag, error) {
	if id == "" {
		return domain.UserBag{}, fmt.Errorf("%w: user bag id is required", orders.ErrInvalidData)
	}
	var out single
	q := url.Values{"populate": {"*"}}
	if err := c.do(ctx, "get", http.MethodGet, collection+"/"+url.PathEscape(id), q, nil, &out); err != nil {
		return domain.UserBag{}, err
	}
	if out.Data == nil {
		return domain.UserBag{}, orders.ErrNotFound
	}
	return out.Data.bag()
}

// ListUserBags pages through the collection until f.Limit bags or the last page.
func (c *Client) ListUserBags(ctx context.Context, f orders.ListFilter) ([]domain.UserBag, error) {
	q := listQuery(f)
	var bags []domain.UserBag
	for page := 1; ; page++ {
		q.Set("pagination[page]", strconv.Itoa(page))
		q.Set("pagination[pageSize]", strconv.Itoa(c.cfg.PageSize))

		var out list
		if err := c.do(ctx, "list", http.MethodGet, collection, q, nil, &out); err != nil {
			return nil, err
		}
		for _, e := range out.Data {
			b, err := e.bag()
			if err != nil {
				logging.LogWarn("skipping unreadable user bag", logrus.Fields{"user_bag_id": e.id(), "error": err.Error()})
				continue
			}
			bags = append(bags, b)
			if f.Limit > 0 && len(bags) >= f.Limit {
				return bags, nil
			}
		}
		if len(out.Data) == 0 || page >= out.Meta.Pagination.PageCount {
			return bags, nil
		}
	}
}

func listQuery(f orders.ListFilter) url.Values {
	q := url.Values{}
	q.Set("populate", "*")
	q.Set("sort", "createdAt:asc")
	if f.CreatedFrom != nil {
		q.Set("filters[createdAt][$gte]", f.CreatedFrom.UTC().Format(isoMillis))
	}
	if f.CreatedTo != nil {
		q.Set("filters[createdAt][$lte]", f.CreatedTo.UTC().Format(isoMillis))
	}
	if f.UserID != "" {
		q.Set("filters[userId][$eq]", f.UserID)
	}
	return q
}

// AppendTracking re-reads the bag, refuses a stale expectedVersion and writes
// the extended tracking list with version+1. Strapi has no conditional update,
// so a writer landing between the read and the PUT is not detected.
func (c *Client) AppendTracking(ctx context.Context, id string, expectedVersion int64, rec domain.TrackingRecord) (domain.UserBag, error) {
	current, err := c.GetUserBag(ctx, id)
	if err != nil {
		return domain.UserBag{}, err
	}
	if current.Version != expectedVersion {
		return domain.UserBag{}, fmt.Errorf("%w: have %d, expected %d", orders.ErrVersionConflict, current.Version, expectedVersion)
	}

	body := map[string]any{"data": map[string]any{
		"trackingInfo": current.TrackingInfo.Append(rec),
		"version":      expectedVersion + 1,
	}}
	var out single
	if err := c.do(ctx, "update", http.MethodPut, collection+"/"+url.PathEscape(id), nil, body, &out); err != nil {
		return domain.UserBag{}, err
	}
	if out.Data == nil {
		return domain.UserBag{}, orders.ErrNotFound
	}
	updated, err := out.Data.bag()
	if err != nil {
		return domain.UserBag{}, err
	}
	// PUT responses are not populated; keep the payments from the read.
	if len(updated.Payments) == 0 {
		updated.Payments = current.Payments
	}
	return updated, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, in, out any) error {
	start := time.Now()
	err := c.roundTrip(ctx, method, path, q, in, out)
	metrics.ObserveVendorCall("cms", op, err, time.Since(start))
	if err != nil && !errors.Is(err, orders.ErrNotFound) {
		logging.LogError("cms request failed", err, logrus.Fields{"op": op, "path": path})
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
			return fmt.Errorf("cms: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("cms: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", orders.ErrTimeout, ctx.Err())
		}
		return fmt.Errorf("%w: cms unreachable: %v", orders.ErrVendor, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("cms: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return orders.ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: cms rejected request: %s", orders.ErrInvalidData, errorMessage(raw))
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: cms returned %d: %s", orders.ErrVendor, resp.StatusCode, errorMessage(raw))
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: cms response: %v", orders.ErrInvalidData, err)
	}
	return nil
}

func errorMessage(raw []byte) string {
	var e struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &e) == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return http.StatusText(http.StatusBadGateway)
}
