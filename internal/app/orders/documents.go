package orders

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	domain "github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
)

type DocumentFile struct {
	FileName    string
	ContentType string
	Data        []byte
}

// Shipment returns the payment and its latest successful DHL shipment.
func (s *Service) Shipment(ctx context.Context, bagID, merchantTxnID string) (domain.Payment, domain.DHLShipment, error) {
	bag, p, err := s.payment(ctx, bagID, merchantTxnID)
	if err != nil {
		return domain.Payment{}, domain.DHLShipment{}, err
	}
	shipment, ok := bag.ShipmentFor(p)
	if !ok {
		return p, domain.DHLShipment{}, fmt.Errorf("%w: payment has no shipment", ErrDocumentNotFound)
	}
	return p, shipment, nil
}

// Document decodes a label, invoice or waybill stored on the payment's latest
// successful DHL shipment.
func (s *Service) Document(ctx context.Context, bagID, merchantTxnID, typeCode string) (DocumentFile, error) {
	_, shipment, err := s.Shipment(ctx, bagID, merchantTxnID)
	if err != nil {
		return DocumentFile{}, err
	}
	doc, ok := shipment.Document(typeCode)
	if !ok || doc.Content == "" {
		return DocumentFile{}, fmt.Errorf("%w: no %s document", ErrDocumentNotFound, typeCode)
	}

	data, err := base64.StdEncoding.DecodeString(doc.Content)
	if err != nil {
		return DocumentFile{}, fmt.Errorf("%w: document is not valid base64: %v", ErrInvalidData, err)
	}

	format := strings.ToLower(doc.ImageFormat)
	if format == "" {
		format = "pdf"
	}
	return DocumentFile{
		FileName:    fmt.Sprintf("%s-%s.%s", shipment.TrackingNumber, strings.ToLower(doc.TypeCode), format),
		ContentType: contentType(format),
		Data:        data,
	}, nil
}

func contentType(format string) string {
	switch format {
	case "pdf":
		return "application/pdf"
	case "png":
		return "image/png"
	case "zpl", "epl":
		return "text/plain"
	}
	return "application/octet-stream"
}
