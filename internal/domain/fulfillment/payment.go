package fulfillment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Payment struct {
	ID                 string          `json:"id,omitempty"`
	MerchantTxnID      string          `json:"merchantTxnId"`
	GatewayReferenceNo string          `json:"gatewayReferenceNo"`
	Status             string          `json:"status"`
	Amount             decimal.Decimal `json:"amount"`
	OrderData          OrderData       `json:"orderData"`
	CreatedAt          time.Time       `json:"createdAt"`
}

type OrderData struct {
	ReceiverDetails ReceiverDetails  `json:"receiver_details"`
	Products        []OrderedProduct `json:"products"`
	OrderSummary    OrderSummary     `json:"orderSummary"`
}

type ReceiverDetails struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
	CountryCode string `json:"countryCode"`
	Province    string `json:"province"`
}

// IsZero reports whether no receiver field was provided at all.
func (r ReceiverDetails) IsZero() bool {
	return r == ReceiverDetails{}
}

type OrderedProduct struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Package   *Package        `json:"package,omitempty"`
}

// Package holds shipping metadata in kilograms and centimetres.
type Package struct {
	Weight float64 `json:"weight"`
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type OrderSummary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency"`
}

// FirstPackage returns the package of the first ordered product. Only the
// first product is shipped; a missing product or package yields zero values.
func (d OrderData) FirstPackage() Package {
	if len(d.Products) == 0 || d.Products[0].Package == nil {
		return Package{}
	}
	return *d.Products[0].Package
}

// PaymentView is a payment together with its owning bag and derived status.
type PaymentView struct {
	UserBagID string  `json:"userBagId"`
	Payment   Payment `json:"payment"`
	Status    Status  `json:"status"`
}
