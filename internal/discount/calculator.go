// Package discount aggregates every discount source of an order into one
// total and spreads that total across the order's line items. All functions
// are pure and deterministic given the order snapshot; the only I/O is the
// customer-history lookup behind the bonus program, and a failing lookup
// degrades to a zero discount.
package discount

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pay/internal/money"
	"github.com/noah-isme/backend-pay/internal/order"
)

var hundred = decimal.NewFromInt(100)

// ThresholdType selects which side of a customer's history a bonus tier is
// measured against.
type ThresholdType string

const (
	// ThresholdSpend compares the tier threshold with settled spend.
	ThresholdSpend ThresholdType = "spend"
	// ThresholdOrders compares the tier threshold with the settled order count.
	ThresholdOrders ThresholdType = "orders"
)

// Tier is one bonus-program bracket. Percent applies to the order's goods
// subtotal when the customer's history meets Threshold.
type Tier struct {
	Threshold decimal.Decimal
	Type      ThresholdType
	Percent   decimal.Decimal
}

// BonusProgram configures loyalty discounts derived from purchase history.
type BonusProgram struct {
	Enabled bool
	Tiers   []Tier
}

// CustomerHistory reports a customer's settled spend and settled order count.
type CustomerHistory interface {
	CustomerHistory(ctx context.Context, customerID string) (spent decimal.Decimal, orders int64, err error)
}

// TotalPolicy can override or extend the aggregated discount before the
// final rounding. It replaces the host platform's filter hook with an
// injected strategy.
type TotalPolicy interface {
	AdjustTotal(o *order.Order, total decimal.Decimal) decimal.Decimal
}

// Calculator computes order discounts. Construct it with explicit
// configuration; it holds no global state.
type Calculator struct {
	Strategy Strategy
	Bonus    BonusProgram
	History  CustomerHistory
	Totals   TotalPolicy
	Priority PriorityPolicy
}

// Breakdown itemises an order's discount by source. Total already includes
// any TotalPolicy adjustment and is rounded to cents.
type Breakdown struct {
	Coupons  decimal.Decimal
	Bonus    decimal.Decimal
	Fees     decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
}

// TotalDiscount sums the four discount sources of an order: coupon amounts,
// the bonus-program percentage, negative fee lines and shipping discounts.
// Each source is rounded to cents before summation.
func (c *Calculator) TotalDiscount(ctx context.Context, o *order.Order) decimal.Decimal {
	return c.Breakdown(ctx, o).Total
}

// Breakdown computes the per-source discount figures behind TotalDiscount.
func (c *Calculator) Breakdown(ctx context.Context, o *order.Order) Breakdown {
	if o == nil {
		return Breakdown{}
	}
	b := Breakdown{
		Coupons:  money.Round2(couponDiscount(o)),
		Bonus:    money.Round2(c.bonusDiscount(ctx, o)),
		Fees:     money.Round2(negativeFeeDiscount(o)),
		Shipping: money.Round2(shippingDiscount(o)),
	}
	total := b.Coupons.Add(b.Bonus).Add(b.Fees).Add(b.Shipping)
	if c.Totals != nil {
		total = c.Totals.AdjustTotal(o, total)
	}
	b.Total = money.Round2(total)
	return b
}

func couponDiscount(o *order.Order) decimal.Decimal {
	var total decimal.Decimal
	for _, cp := range o.Coupons {
		total = total.Add(cp.Discount)
	}
	return total
}

func negativeFeeDiscount(o *order.Order) decimal.Decimal {
	var total decimal.Decimal
	for _, f := range o.Fees {
		if f.Amount.IsNegative() {
			total = total.Add(f.Amount.Abs())
		}
	}
	return total
}

// shippingDiscount is the full shipping cost when any coupon grants free
// shipping, counted once no matter how many such coupons are applied.
// Otherwise it is the sum of explicit shipping-line discounts.
func shippingDiscount(o *order.Order) decimal.Decimal {
	if o.HasFreeShipping() {
		return o.ShippingCost()
	}
	var total decimal.Decimal
	for _, s := range o.Shipping {
		total = total.Add(s.Discount)
	}
	return total
}

func (c *Calculator) bonusDiscount(ctx context.Context, o *order.Order) decimal.Decimal {
	if !c.Bonus.Enabled || len(c.Bonus.Tiers) == 0 || c.History == nil || o.CustomerID == "" {
		return decimal.Zero
	}
	spent, orders, err := c.History.CustomerHistory(ctx, o.CustomerID)
	if err != nil {
		return decimal.Zero
	}
	tiers := make([]Tier, len(c.Bonus.Tiers))
	copy(tiers, c.Bonus.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].Threshold.GreaterThan(tiers[j].Threshold)
	})
	// Highest threshold first, first match wins. Tiers never stack.
	for _, t := range tiers {
		if t.qualifies(spent, orders) {
			return o.GoodsSubtotal().Mul(t.Percent).Div(hundred)
		}
	}
	return decimal.Zero
}

func (t Tier) qualifies(spent decimal.Decimal, orders int64) bool {
	if t.Type == ThresholdOrders {
		return decimal.NewFromInt(orders).GreaterThanOrEqual(t.Threshold)
	}
	return spent.GreaterThanOrEqual(t.Threshold)
}
