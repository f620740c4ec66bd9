package fulfillment

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	TrackingTypeNCM = "ncm_order"

	DHLStatusCreated = "Created"
)

var ErrEmptyTrackingRecord = errors.New("tracking record has no variant")

// TrackingRecord is one entry of a bag's trackingInfo: at most one of DHL or
// NCM is set. A decoded record keeps its stored bytes and re-encodes them
// unchanged; one that could not be decoded keeps only those bytes.
type TrackingRecord struct {
	DHL *DHLShipment
	NCM *NCMOrder
	raw json.RawMessage
}

type DHLShipment struct {
	MerchantTxnID          string     `json:"merchantTxnId"`
	TrackingNumber         string     `json:"trackingNumber"`
	Status                 string     `json:"status,omitempty"`
	Success                bool       `json:"success"`
	ProductCode            string     `json:"productCode,omitempty"`
	Documents              []Document `json:"documents,omitempty"`
	PackageTrackingNumbers []string   `json:"packageTrackingNumbers,omitempty"`
	CancelPickupURL        string     `json:"cancelPickupUrl,omitempty"`
	TrackingURL            string     `json:"trackingUrl,omitempty"`
	CreatedAt              time.Time  `json:"createdAt"`
}

// UnmarshalJSON accepts success as a bool, string or number and createdAt as
// any timestamp shape looseTime understands.
func (s *DHLShipment) UnmarshalJSON(b []byte) error {
	type alias DHLShipment
	aux := struct {
		*alias
		Success   json.RawMessage `json:"success"`
		CreatedAt json.RawMessage `json:"createdAt"`
	}{alias: (*alias)(s)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.Success = looseBool(aux.Success)
	s.CreatedAt = looseTime(aux.CreatedAt)
	return nil
}

func (s DHLShipment) MarshalJSON() ([]byte, error) {
	type alias DHLShipment
	return json.Marshal(struct {
		alias
		CreatedAt *time.Time `json:"createdAt,omitempty"`
	}{alias: alias(s), CreatedAt: timeOrNil(s.CreatedAt)})
}

// Succeeded reports the DHL success indicator: status "Created" or success=true.
func (s DHLShipment) Succeeded() bool {
	return s.Success || strings.EqualFold(strings.TrimSpace(s.Status), DHLStatusCreated)
}

// Document returns the first document with the given type code (label, invoice, waybillDoc...).
func (s DHLShipment) Document(typeCode string) (Document, bool) {
	for _, d := range s.Documents {
		if strings.EqualFold(d.TypeCode, typeCode) {
			return d, true
		}
	}
	return Document{}, false
}

type Document struct {
	TypeCode    string `json:"typeCode"`
	ImageFormat string `json:"imageFormat"`
	Content     string `json:"content"`
}

type NCMOrder struct {
	Type               string    `json:"type"`
	NCMOrderID         string    `json:"ncmOrderId"`
	GatewayReferenceNo string    `json:"gatewayReferenceNo"`
	Timestamp          time.Time `json:"timestamp"`
}

// Succeeded reports whether an order id is present. "0" counts as absent.
func (o NCMOrder) Succeeded() bool {
	id := strings.TrimSpace(o.NCMOrderID)
	return id != "" && id != "0"
}

// UnmarshalJSON accepts ncmOrderId as either a JSON string or a number and
// timestamp as any shape looseTime understands.
func (o *NCMOrder) UnmarshalJSON(b []byte) error {
	type alias NCMOrder
	aux := struct {
		*alias
		ID        json.RawMessage `json:"ncmOrderId"`
		Timestamp json.RawMessage `json:"timestamp"`
	}{alias: (*alias)(o)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	o.Timestamp = looseTime(aux.Timestamp)
	id := bytes.TrimSpace(aux.ID)
	switch {
	case len(id) == 0 || bytes.Equal(id, []byte("null")):
		o.NCMOrderID = ""
	case id[0] == '"':
		var s string
		if err := json.Unmarshal(id, &s); err != nil {
			return fmt.Errorf("ncmOrderId: %w", err)
		}
		o.NCMOrderID = s
	default:
		var n json.Number
		if err := json.Unmarshal(id, &n); err != nil {
			return fmt.Errorf("ncmOrderId: %w", err)
		}
		o.NCMOrderID = n.String()
	}
	return nil
}

func (o NCMOrder) MarshalJSON() ([]byte, error) {
	type alias NCMOrder
	return json.Marshal(struct {
		alias
		Timestamp *time.Time `json:"timestamp,omitempty"`
	}{alias: alias(o), Timestamp: timeOrNil(o.Timestamp)})
}

func NewDHLRecord(s DHLShipment) TrackingRecord { return TrackingRecord{DHL: &s} }

func NewNCMRecord(o NCMOrder) TrackingRecord {
	o.Type = TrackingTypeNCM
	return TrackingRecord{NCM: &o}
}

func (r TrackingRecord) IsNCM() bool { return r.NCM != nil }

func (r TrackingRecord) Succeeded() bool {
	switch {
	case r.NCM != nil:
		return r.NCM.Succeeded()
	case r.DHL != nil:
		return r.DHL.Succeeded()
	}
	return false
}

func (r TrackingRecord) MarshalJSON() ([]byte, error) {
	switch {
	case len(r.raw) > 0:
		return r.raw, nil
	case r.NCM != nil:
		o := *r.NCM
		o.Type = TrackingTypeNCM
		return json.Marshal(o)
	case r.DHL != nil:
		return json.Marshal(*r.DHL)
	}
	return nil, ErrEmptyTrackingRecord
}

func (r *TrackingRecord) UnmarshalJSON(b []byte) error {
	raw := append(json.RawMessage(nil), b...)
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return err
	}
	if head.Type == TrackingTypeNCM {
		var o NCMOrder
		if err := json.Unmarshal(b, &o); err != nil {
			return err
		}
		*r = TrackingRecord{NCM: &o, raw: raw}
		return nil
	}
	var s DHLShipment
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = TrackingRecord{DHL: &s, raw: raw}
	return nil
}

// Opaque reports a stored record that could not be read as DHL or NCM.
func (r TrackingRecord) Opaque() bool {
	return r.DHL == nil && r.NCM == nil && len(r.raw) > 0
}

// TrackingInfo is the ordered tracking history of a bag. Legacy rows store a
// single object instead of an array; both shapes decode to the same slice.
// An entry that does not decode is kept opaque and never counts as shipped.
type TrackingInfo []TrackingRecord

func (t *TrackingInfo) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = nil
		return nil
	}
	switch b[0] {
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		out := make(TrackingInfo, 0, len(raw))
		for _, item := range raw {
			item = bytes.TrimSpace(item)
			if len(item) == 0 || bytes.Equal(item, []byte("null")) {
				continue
			}
			out = append(out, decodeRecord(item))
		}
		*t = out
		return nil
	case '{':
		*t = TrackingInfo{decodeRecord(b)}
		return nil
	}
	return fmt.Errorf("trackingInfo: unexpected JSON %q", string(b[:1]))
}

func (t TrackingInfo) MarshalJSON() ([]byte, error) {
	if t == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]TrackingRecord(t))
}

func decodeRecord(b []byte) TrackingRecord {
	var rec TrackingRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return TrackingRecord{raw: append(json.RawMessage(nil), b...)}
	}
	return rec
}

// Append returns a copy of t with rec appended; t itself is not modified.
func (t TrackingInfo) Append(rec TrackingRecord) TrackingInfo {
	out := make(TrackingInfo, 0, len(t)+1)
	out = append(out, t...)
	return append(out, rec)
}
