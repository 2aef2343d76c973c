// Package order defines the storefront order snapshot the gateway computes
// payments from. The snapshot is pushed by the storefront with the
// payment-creation request; the gateway never reads the storefront database.
package order

import "github.com/shopspring/decimal"

// Order is the aggregate root. Total is the host platform's authoritative
// figure, computed by its own tax and discount engine; the gateway treats it
// as ground truth and never recomputes it.
type Order struct {
	ID         string          `json:"id" validate:"required"`
	Currency   string          `json:"currency" validate:"required,iso4217"`
	CustomerID string          `json:"customerId"`
	Total      decimal.Decimal `json:"total"`
	Items      []LineItem      `json:"items" validate:"required,min=1,dive"`
	Shipping   []ShippingLine  `json:"shipping" validate:"omitempty,dive"`
	Fees       []FeeLine       `json:"fees" validate:"omitempty,dive"`
	Coupons    []Coupon        `json:"coupons" validate:"omitempty,dive"`
}

// LineItem is one product line. Subtotal is the pre-discount sum for the
// whole line and is always >= 0. A nil Product marks a line whose product
// record could no longer be resolved on the storefront side.
type LineItem struct {
	ID        string          `json:"id" validate:"required"`
	ProductID string          `json:"productId" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Total     decimal.Decimal `json:"total"`
	Product   *Product        `json:"product"`
}

// Product carries the catalog data needed on the provider wire: display
// title and physical attributes in the storefront's configured units.
type Product struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	SKU           string          `json:"sku"`
	Weight        decimal.Decimal `json:"weight"`
	WeightUnit    string          `json:"weightUnit"`
	Length        decimal.Decimal `json:"length"`
	Width         decimal.Decimal `json:"width"`
	Height        decimal.Decimal `json:"height"`
	DimensionUnit string          `json:"dimensionUnit"`
}

// ShippingLine is one shipping charge. Discount is an explicit shipping
// discount already granted by the host.
type ShippingLine struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Cost     decimal.Decimal `json:"cost"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
}

// FeeLine is an order fee. A negative amount is a discount in disguise and is
// consumed by the discount calculator instead of being billed.
type FeeLine struct {
	ID     string          `json:"id"`
	Title  string          `json:"title"`
	Amount decimal.Decimal `json:"amount"`
	Tax    decimal.Decimal `json:"tax"`
}

// Coupon is an applied storefront coupon.
type Coupon struct {
	Code         string          `json:"code"`
	Discount     decimal.Decimal `json:"discount"`
	FreeShipping bool            `json:"freeShipping"`
}

// GoodsSubtotal sums the pre-discount subtotals of all product lines.
func (o *Order) GoodsSubtotal() decimal.Decimal {
	var total decimal.Decimal
	for _, it := range o.Items {
		total = total.Add(it.Subtotal)
	}
	return total
}

// ShippingCost sums the shipping line costs, tax excluded.
func (o *Order) ShippingCost() decimal.Decimal {
	var total decimal.Decimal
	for _, s := range o.Shipping {
		total = total.Add(s.Cost)
	}
	return total
}

// HasFreeShipping reports whether any applied coupon grants free shipping.
func (o *Order) HasFreeShipping() bool {
	for _, c := range o.Coupons {
		if c.FreeShipping {
			return true
		}
	}
	return false
}
