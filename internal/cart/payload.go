package cart

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pay/internal/discount"
	"github.com/noah-isme/backend-pay/internal/money"
)

// Type classifies a cart entry on the provider side.
type Type string

const (
	// TypeGoods marks a product line.
	TypeGoods Type = "GOODS"
	// TypeDelivery marks a shipping line.
	TypeDelivery Type = "DELIVERY"
	// TypeService marks a fee line.
	TypeService Type = "SERVICE"
)

// Payload is the provider-facing cart. The entry totals sum exactly to
// Total.Amount; the provider rejects payloads where they do not.
type Payload struct {
	ExternalID string  `json:"externalId"`
	Items      []Entry `json:"items"`
	Total      Total   `json:"total"`

	// Build byproducts for callers that report on the computation. None of
	// these are part of the wire shape. Adjustment is the drift the
	// reconciliation pass moved onto the last entry, zero when the payload
	// summed cleanly.
	Adjustment    decimal.Decimal            `json:"-"`
	Discount      discount.Breakdown         `json:"-"`
	ItemDiscounts map[string]decimal.Decimal `json:"-"`
}

// Total carries the authoritative order total. PointsAmount is always "0";
// loyalty points never fund gateway payments.
type Total struct {
	Amount       string `json:"amount"`
	PointsAmount string `json:"pointsAmount"`
}

// Entry is one provider cart line, post-discount and post-split.
type Entry struct {
	ProductID           string
	Title               string
	Count               int
	UnitPrice           decimal.Decimal
	DiscountedUnitPrice decimal.Decimal
	Subtotal            decimal.Decimal
	Total               decimal.Decimal
	Measurements        *Measurements
	Type                Type
}

// Measurements carries normalised physical attributes: weight in grams,
// dimensions in centimetres.
type Measurements struct {
	Weight float64 `json:"weight,omitempty"`
	Length float64 `json:"length,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

type entryWire struct {
	ProductID           string        `json:"productId"`
	Title               string        `json:"title"`
	Quantity            quantityWire  `json:"quantity"`
	UnitPrice           string        `json:"unitPrice"`
	DiscountedUnitPrice string        `json:"discountedUnitPrice"`
	Subtotal            string        `json:"subtotal"`
	Total               string        `json:"total"`
	Measurements        *Measurements `json:"measurements,omitempty"`
	Type                Type          `json:"type,omitempty"`
}

type quantityWire struct {
	Count string `json:"count"`
}

// MarshalJSON renders every monetary field as a decimal string with exactly
// two fraction digits, the only number format the provider accepts.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryWire{
		ProductID:           e.ProductID,
		Title:               e.Title,
		Quantity:            quantityWire{Count: strconv.Itoa(e.Count)},
		UnitPrice:           money.String2(e.UnitPrice),
		DiscountedUnitPrice: money.String2(e.DiscountedUnitPrice),
		Subtotal:            money.String2(e.Subtotal),
		Total:               money.String2(e.Total),
		Measurements:        e.Measurements,
		Type:                e.Type,
	})
}
