package dhl

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Account struct {
	TypeCode string `json:"typeCode"`
	Number   string `json:"number"`
}

type PostalAddress struct {
	PostalCode   string `json:"postalCode"`
	CityName     string `json:"cityName"`
	CountryCode  string `json:"countryCode"`
	ProvinceCode string `json:"provinceCode,omitempty"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
}

type ContactInformation struct {
	Phone       string `json:"phone"`
	CompanyName string `json:"companyName"`
	FullName    string `json:"fullName"`
	Email       string `json:"email,omitempty"`
}

type Party struct {
	PostalAddress      PostalAddress      `json:"postalAddress"`
	ContactInformation ContactInformation `json:"contactInformation"`
}

type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type PackageSpec struct {
	Weight     float64    `json:"weight"`
	Dimensions Dimensions `json:"dimensions"`
}

// ---------------------------------------------------------------------------
// Rates
// ---------------------------------------------------------------------------

type RateAddress struct {
	PostalCode  string `json:"postalCode"`
	CityName    string `json:"cityName"`
	CountryCode string `json:"countryCode"`
}

type RateRequest struct {
	CustomerDetails struct {
		ShipperDetails  RateAddress `json:"shipperDetails"`
		ReceiverDetails RateAddress `json:"receiverDetails"`
	} `json:"customerDetails"`
	Accounts                   []Account     `json:"accounts"`
	PlannedShippingDateAndTime string        `json:"plannedShippingDateAndTime"`
	UnitOfMeasurement          string        `json:"unitOfMeasurement"`
	IsCustomsDeclarable        bool          `json:"isCustomsDeclarable"`
	Packages                   []PackageSpec `json:"packages"`
}

type Price struct {
	CurrencyType  string          `json:"currencyType"`
	PriceCurrency string          `json:"priceCurrency"`
	Price         decimal.Decimal `json:"price"`
}

type RateProduct struct {
	ProductName          string  `json:"productName"`
	ProductCode          string  `json:"productCode"`
	TotalPrice           []Price `json:"totalPrice"`
	DeliveryCapabilities struct {
		EstimatedDeliveryDateAndTime string `json:"estimatedDeliveryDateAndTime"`
	} `json:"deliveryCapabilities"`
}

// BillingPrice returns the price in billing currency (BILLC), or the first price listed.
func (p RateProduct) BillingPrice() (Price, bool) {
	for _, pr := range p.TotalPrice {
		if pr.CurrencyType == "BILLC" {
			return pr, true
		}
	}
	if len(p.TotalPrice) > 0 {
		return p.TotalPrice[0], true
	}
	return Price{}, false
}

type RateResponse struct {
	Products []RateProduct `json:"products"`
}

// Cheapest returns the product with the lowest billing price. Products without
// a price are only chosen when nothing else is offered.
func (r RateResponse) Cheapest() (RateProduct, bool) {
	var (
		best      RateProduct
		bestPrice decimal.Decimal
		found     bool
		priced    bool
	)
	for _, p := range r.Products {
		if p.ProductCode == "" {
			continue
		}
		pr, ok := p.BillingPrice()
		switch {
		case !found:
			best, bestPrice, found, priced = p, pr.Price, true, ok
		case ok && (!priced || pr.Price.LessThan(bestPrice)):
			best, bestPrice, priced = p, pr.Price, true
		}
	}
	return best, found
}

// ---------------------------------------------------------------------------
// Shipments
// ---------------------------------------------------------------------------

type ShipmentContent struct {
	Packages              []PackageSpec `json:"packages"`
	IsCustomsDeclarable   bool          `json:"isCustomsDeclarable"`
	DeclaredValue         float64       `json:"declaredValue"`
	DeclaredValueCurrency string        `json:"declaredValueCurrency"`
	Description           string        `json:"description"`
	Incoterm              string        `json:"incoterm"`
	UnitOfMeasurement     string        `json:"unitOfMeasurement"`
}

type ImageOption struct {
	TypeCode     string `json:"typeCode"`
	TemplateName string `json:"templateName,omitempty"`
	IsRequested  bool   `json:"isRequested"`
}

type OutputImageProperties struct {
	EncodingFormat string        `json:"encodingFormat"`
	ImageOptions   []ImageOption `json:"imageOptions"`
}

type Reference struct {
	Value    string `json:"value"`
	TypeCode string `json:"typeCode"`
}

type ShipmentRequest struct {
	PlannedShippingDateAndTime string `json:"plannedShippingDateAndTime"`
	Pickup                     struct {
		IsRequested bool `json:"isRequested"`
	} `json:"pickup"`
	ProductCode     string    `json:"productCode"`
	Accounts        []Account `json:"accounts"`
	CustomerDetails struct {
		ShipperDetails  Party `json:"shipperDetails"`
		ReceiverDetails Party `json:"receiverDetails"`
	} `json:"customerDetails"`
	Content               ShipmentContent        `json:"content"`
	OutputImageProperties *OutputImageProperties `json:"outputImageProperties,omitempty"`
	CustomerReferences    []Reference            `json:"customerReferences,omitempty"`
}

type ShipmentDocument struct {
	ImageFormat string `json:"imageFormat"`
	Content     string `json:"content"`
	TypeCode    string `json:"typeCode"`
}

type ShipmentPackage struct {
	ReferenceNumber int    `json:"referenceNumber"`
	TrackingNumber  string `json:"trackingNumber"`
	TrackingURL     string `json:"trackingUrl"`
}

type ShipmentResponse struct {
	ShipmentTrackingNumber string             `json:"shipmentTrackingNumber"`
	CancelPickupURL        string             `json:"cancelPickupUrl"`
	TrackingURL            string             `json:"trackingUrl"`
	DispatchConfirmation   string             `json:"dispatchConfirmationNumber"`
	Packages               []ShipmentPackage  `json:"packages"`
	Documents              []ShipmentDocument `json:"documents"`
}

// ---------------------------------------------------------------------------
// Tracking, address validation, pickup, landed cost
// ---------------------------------------------------------------------------

type TrackEvent struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	TypeCode    string `json:"typeCode"`
	Description string `json:"description"`
}

type TrackedShipment struct {
	ShipmentTrackingNumber string       `json:"shipmentTrackingNumber"`
	Status                 string       `json:"status"`
	Description            string       `json:"description"`
	Events                 []TrackEvent `json:"events"`
}

type TrackResponse struct {
	Shipments []TrackedShipment `json:"shipments"`
}

type AddressQuery struct {
	Type        string `json:"type" validate:"omitempty,oneof=pickup delivery"`
	CountryCode string `json:"countryCode" validate:"required,len=2"`
	PostalCode  string `json:"postalCode"`
	CityName    string `json:"cityName"`
}

type ValidatedAddress struct {
	CountryCode string `json:"countryCode"`
	PostalCode  string `json:"postalCode"`
	CityName    string `json:"cityName"`
	ServiceArea struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"serviceArea"`
}

type AddressValidateResponse struct {
	Warnings []string           `json:"warnings,omitempty"`
	Address  []ValidatedAddress `json:"address"`
}

type PickupShipment struct {
	ProductCode string        `json:"productCode"`
	Packages    []PackageSpec `json:"packages"`
}

type PickupRequest struct {
	PlannedPickupDateAndTime string    `json:"plannedPickupDateAndTime" validate:"required"`
	CloseTime                string    `json:"closeTime,omitempty"`
	Location                 string    `json:"location,omitempty"`
	LocationType             string    `json:"locationType,omitempty"`
	Accounts                 []Account `json:"accounts"`
	CustomerDetails          struct {
		ShipperDetails Party `json:"shipperDetails"`
	} `json:"customerDetails"`
	ShipmentDetails []PickupShipment `json:"shipmentDetails" validate:"required,min=1"`
}

type PickupResponse struct {
	DispatchConfirmationNumbers []string `json:"dispatchConfirmationNumbers"`
	ReadyByTime                 string   `json:"readyByTime"`
	NextPickupDate              string   `json:"nextPickupDate"`
	Warnings                    []string `json:"warnings,omitempty"`
}

type LandedCostItem struct {
	Number                  int             `json:"number"`
	Name                    string          `json:"name"`
	Description             string          `json:"description,omitempty"`
	ManufacturerCountry     string          `json:"manufacturerCountry"`
	Quantity                int             `json:"quantity"`
	QuantityType            string          `json:"quantityType"`
	UnitPrice               decimal.Decimal `json:"unitPrice"`
	UnitPriceCurrencyCode   string          `json:"unitPriceCurrencyCode"`
	CommodityCode           string          `json:"commodityCode,omitempty"`
	Weight                  float64         `json:"weight,omitempty"`
	WeightUnitOfMeasurement string          `json:"weightUnitOfMeasurement,omitempty"`
}

type LandedCostRequest struct {
	CustomerDetails struct {
		ShipperDetails  RateAddress `json:"shipperDetails"`
		ReceiverDetails RateAddress `json:"receiverDetails"`
	} `json:"customerDetails"`
	Accounts            []Account        `json:"accounts"`
	ProductCode         string           `json:"productCode,omitempty"`
	UnitOfMeasurement   string           `json:"unitOfMeasurement"`
	CurrencyCode        string           `json:"currencyCode" validate:"required,len=3"`
	IsCustomsDeclarable bool             `json:"isCustomsDeclarable"`
	ShipmentPurpose     string           `json:"shipmentPurpose,omitempty"`
	TransportationMode  string           `json:"transportationMode,omitempty"`
	Packages            []PackageSpec    `json:"packages"`
	Items               []LandedCostItem `json:"items" validate:"required,min=1"`
}

type LandedCostResponse struct {
	Warnings []string `json:"warnings,omitempty"`
	Products []struct {
		ProductCode string  `json:"productCode"`
		ProductName string  `json:"productName"`
		TotalPrice  []Price `json:"totalPrice"`
	} `json:"products"`
}

// APIError is the problem document DHL returns for 4xx/5xx responses.
type APIError struct {
	StatusCode        int      `json:"-"`
	Instance          string   `json:"instance"`
	Title             string   `json:"title"`
	Detail            string   `json:"detail"`
	AdditionalDetails []string `json:"additionalDetails,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" {
		msg = e.Title
	}
	if len(e.AdditionalDetails) > 0 {
		msg += ": " + strings.Join(e.AdditionalDetails, "; ")
	}
	return fmt.Sprintf("dhl: %d %s", e.StatusCode, msg)
}

// Temporary reports whether the failure is on DHL's side (5xx).
func (e *APIError) Temporary() bool { return e.StatusCode >= 500 }
