package cms

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/reybrally/fulfillment-service/internal/app/orders"
	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
)

type single struct {
	Data *entry `json:"data"`
}

type list struct {
	Data []entry `json:"data"`
	Meta struct {
		Pagination struct {
			Page      int `json:"page"`
			PageSize  int `json:"pageSize"`
			PageCount int `json:"pageCount"`
			Total     int `json:"total"`
		} `json:"pagination"`
	} `json:"meta"`
}

// entry is one collection item in either Strapi shape: v4 nests the fields
// under "attributes", v5 flattens them next to "documentId".
type entry struct {
	ID         json.Number     `json:"id"`
	DocumentID string          `json:"documentId"`
	Attributes json.RawMessage `json:"attributes"`
	raw        json.RawMessage
}

func (e *entry) UnmarshalJSON(b []byte) error {
	type plain entry
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*e = entry(p)
	e.raw = append(json.RawMessage(nil), b...)
	return nil
}

type bagFields struct {
	UserID       string              `json:"userId"`
	Payments     []domain.Payment    `json:"payments"`
	TrackingInfo domain.TrackingInfo `json:"trackingInfo"`
	Version      int64               `json:"version"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

func (e entry) bag() (domain.UserBag, error) {
	src := e.raw
	if len(e.Attributes) > 0 && string(e.Attributes) != "null" {
		src = e.Attributes
	}
	var f bagFields
	if err := json.Unmarshal(src, &f); err != nil {
		return domain.UserBag{}, fmt.Errorf("%w: user bag %s: %v", orders.ErrInvalidData, e.id(), err)
	}
	return domain.UserBag{
		ID:           e.id(),
		UserID:       f.UserID,
		Payments:     f.Payments,
		TrackingInfo: f.TrackingInfo,
		Version:      f.Version,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}, nil
}

// id is the identifier used in item routes: documentId on v5, numeric id on v4.
func (e entry) id() string {
	if e.DocumentID != "" {
		return e.DocumentID
	}
	return e.ID.String()
}
