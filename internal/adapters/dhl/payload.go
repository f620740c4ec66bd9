package dhl

import (
	"strings"
	"time"

	"github.com/reybrally/fulfillment-service/internal/domain/fulfillment"
)

const (
	unitMetric     = "metric"
	accountShipper = "shipper"
	refCustomer    = "CU"
	incotermDAP    = "DAP"
)

// Shipper describes the merchant side of every shipment.
type Shipper struct {
	AccountNumber string
	CompanyName   string
	FullName      string
	Phone         string
	Email         string
	AddressLine1  string
	AddressLine2  string
	CityName      string
	PostalCode    string
	CountryCode   string
}

// Party renders the shipper as a DHL customer details party.
func (s Shipper) Party() Party {
	return Party{
		PostalAddress: PostalAddress{
			PostalCode:   s.PostalCode,
			CityName:     s.CityName,
			CountryCode:  s.CountryCode,
			AddressLine1: s.AddressLine1,
			AddressLine2: s.AddressLine2,
		},
		ContactInformation: ContactInformation{
			Phone:       s.Phone,
			CompanyName: s.CompanyName,
			FullName:    s.FullName,
			Email:       s.Email,
		},
	}
}

func (s Shipper) accounts() []Account {
	return []Account{{TypeCode: accountShipper, Number: s.AccountNumber}}
}

// PlannedDate formats t the way the MyDHL API expects shipping timestamps.
func PlannedDate(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + " GMT+00:00"
}

func receiverParty(r fulfillment.ReceiverDetails) Party {
	return Party{
		PostalAddress: PostalAddress{
			PostalCode:   r.PostalCode,
			CityName:     r.City,
			CountryCode:  strings.ToUpper(r.CountryCode),
			ProvinceCode: r.Province,
			AddressLine1: r.Address,
		},
		ContactInformation: ContactInformation{
			Phone:       r.Phone,
			CompanyName: r.FullName,
			FullName:    r.FullName,
			Email:       r.Email,
		},
	}
}

// packageOf maps the first product's package; missing metadata ships as zeros.
func packageOf(p fulfillment.Payment) PackageSpec {
	pkg := p.OrderData.FirstPackage()
	return PackageSpec{
		Weight:     pkg.Weight,
		Dimensions: Dimensions{Length: pkg.Length, Width: pkg.Width, Height: pkg.Height},
	}
}

func NewRateRequest(s Shipper, p fulfillment.Payment, customsDeclarable bool, now time.Time) RateRequest {
	r := p.OrderData.ReceiverDetails
	var req RateRequest
	req.CustomerDetails.ShipperDetails = RateAddress{PostalCode: s.PostalCode, CityName: s.CityName, CountryCode: s.CountryCode}
	req.CustomerDetails.ReceiverDetails = RateAddress{PostalCode: r.PostalCode, CityName: r.City, CountryCode: strings.ToUpper(r.CountryCode)}
	req.Accounts = s.accounts()
	req.PlannedShippingDateAndTime = PlannedDate(now)
	req.UnitOfMeasurement = unitMetric
	req.IsCustomsDeclarable = customsDeclarable
	req.Packages = []PackageSpec{packageOf(p)}
	return req
}

// NewShipmentRequest builds a shipment for the first product of the payment.
// Declared value is the order total, zero when the summary carries none.
func NewShipmentRequest(s Shipper, p fulfillment.Payment, productCode, currency string, customsDeclarable bool, now time.Time) ShipmentRequest {
	var req ShipmentRequest
	req.PlannedShippingDateAndTime = PlannedDate(now)
	req.ProductCode = productCode
	req.Accounts = s.accounts()
	req.CustomerDetails.ShipperDetails = s.Party()
	req.CustomerDetails.ReceiverDetails = receiverParty(p.OrderData.ReceiverDetails)

	if c := p.OrderData.OrderSummary.Currency; c != "" {
		currency = c
	}
	req.Content = ShipmentContent{
		Packages:              []PackageSpec{packageOf(p)},
		IsCustomsDeclarable:   customsDeclarable,
		DeclaredValue:         p.OrderData.OrderSummary.Total.InexactFloat64(),
		DeclaredValueCurrency: strings.ToUpper(currency),
		Description:           description(p),
		Incoterm:              incotermDAP,
		UnitOfMeasurement:     unitMetric,
	}
	req.OutputImageProperties = &OutputImageProperties{
		EncodingFormat: "pdf",
		ImageOptions: []ImageOption{
			{TypeCode: "label", TemplateName: "ECOM26_84_001", IsRequested: true},
			{TypeCode: "invoice", TemplateName: "COMMERCIAL_INVOICE_P_10", IsRequested: true},
		},
	}
	if p.MerchantTxnID != "" {
		req.CustomerReferences = []Reference{{Value: p.MerchantTxnID, TypeCode: refCustomer}}
	}
	return req
}

func description(p fulfillment.Payment) string {
	if len(p.OrderData.Products) > 0 && p.OrderData.Products[0].Name != "" {
		return p.OrderData.Products[0].Name
	}
	return "Merchandise"
}

// ToShipment normalizes a DHL response into the tracking record persisted on the bag.
func ToShipment(merchantTxnID, productCode string, resp ShipmentResponse, now time.Time) fulfillment.DHLShipment {
	out := fulfillment.DHLShipment{
		MerchantTxnID:   merchantTxnID,
		TrackingNumber:  resp.ShipmentTrackingNumber,
		Status:          fulfillment.DHLStatusCreated,
		Success:         true,
		ProductCode:     productCode,
		CancelPickupURL: resp.CancelPickupURL,
		TrackingURL:     resp.TrackingURL,
		CreatedAt:       now.UTC(),
	}
	for _, pkg := range resp.Packages {
		if pkg.TrackingNumber != "" {
			out.PackageTrackingNumbers = append(out.PackageTrackingNumbers, pkg.TrackingNumber)
		}
	}
	for _, d := range resp.Documents {
		out.Documents = append(out.Documents, fulfillment.Document{
			TypeCode:    d.TypeCode,
			ImageFormat: d.ImageFormat,
			Content:     d.Content,
		})
	}
	return out
}
