// Package cart turns order snapshots into provider cart payloads. The sum of
// the produced entry totals always matches the order's authoritative total at
// cent precision; a final reconciliation pass moves any rounding drift onto
// the last entry.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pay/internal/discount"
	"github.com/noah-isme/backend-pay/internal/money"
	"github.com/noah-isme/backend-pay/internal/order"
)

// ErrProductUnresolved is returned when a line item no longer references a
// resolvable product record. The calculation cannot price such a line and the
// payment attempt must abort.
var ErrProductUnresolved = errors.New("product cannot be resolved")

// Builder assembles provider cart payloads.
type Builder struct {
	Discounts *discount.Calculator
}

// Build computes the payload for an order: per-line discounts, unit-price
// splitting for discounted multi-quantity lines, shipping and fee entries,
// and the reconciliation pass against the order's authoritative total.
func (b *Builder) Build(ctx context.Context, o *order.Order) (*Payload, error) {
	if o == nil {
		return nil, errors.New("nil order")
	}
	authoritative := money.Round2(o.Total)

	var (
		breakdown     discount.Breakdown
		itemDiscounts map[string]decimal.Decimal
	)
	if b != nil && b.Discounts != nil {
		breakdown = b.Discounts.Breakdown(ctx, o)
		itemDiscounts = b.Discounts.Distribute(o, breakdown.Total)
	}

	entries := make([]Entry, 0, len(o.Items)+len(o.Shipping)+len(o.Fees))
	for i := range o.Items {
		line, err := lineEntries(&o.Items[i], itemDiscounts[o.Items[i].ID])
		if err != nil {
			return nil, err
		}
		entries = append(entries, line...)
	}
	for _, s := range o.Shipping {
		entries = append(entries, shippingEntry(s))
	}
	for _, f := range o.Fees {
		// Negative fees were already consumed upstream as a discount source.
		if f.Amount.IsNegative() {
			continue
		}
		entries = append(entries, feeEntry(f))
	}

	adjustment := reconcile(entries, authoritative)

	return &Payload{
		ExternalID:    o.ID,
		Items:         entries,
		Total:         Total{Amount: money.String2(authoritative), PointsAmount: "0"},
		Adjustment:    adjustment,
		Discount:      breakdown,
		ItemDiscounts: itemDiscounts,
	}, nil
}

func lineEntries(it *order.LineItem, disc decimal.Decimal) ([]Entry, error) {
	if it.Product == nil {
		return nil, fmt.Errorf("line %s: %w", it.ID, ErrProductUnresolved)
	}
	count := it.Quantity
	if count < 1 {
		count = 1
	}
	unit := money.Round2(it.Subtotal.Div(decimal.NewFromInt(int64(count))))
	lineTotal := it.Subtotal.Sub(disc)
	if lineTotal.IsNegative() {
		lineTotal = decimal.Zero
	}
	if disc.IsPositive() && count > 1 {
		return splitEntries(it, count, unit, disc), nil
	}
	discounted := unit
	if count == 1 {
		discounted = money.Round2(lineTotal)
	}
	return []Entry{{
		ProductID:           it.ProductID,
		Title:               it.Product.Title,
		Count:               count,
		UnitPrice:           unit,
		DiscountedUnitPrice: discounted,
		Subtotal:            money.Round2(it.Subtotal),
		Total:               money.Round2(lineTotal),
		Measurements:        measurementsFor(it.Product),
		Type:                TypeGoods,
	}}, nil
}

// splitEntries pushes a line discount down to individual units. The provider
// prices per unit, so a discounted multi-quantity line becomes count
// single-unit entries: every unit carries floor(discount/count) at cent
// precision and the last unit additionally absorbs the flooring remainder.
func splitEntries(it *order.LineItem, count int, unit, disc decimal.Decimal) []Entry {
	qty := decimal.NewFromInt(int64(count))
	perUnit := money.FloorCents(disc.Div(qty))
	remainder := disc.Sub(perUnit.Mul(qty))

	entries := make([]Entry, 0, count)
	for i := 1; i <= count; i++ {
		discounted := unit.Sub(perUnit)
		if i == count {
			discounted = discounted.Sub(remainder)
		}
		if discounted.IsNegative() {
			discounted = decimal.Zero
		}
		entries = append(entries, Entry{
			ProductID:           fmt.Sprintf("%s-%d", it.ProductID, i),
			Title:               it.Product.Title,
			Count:               1,
			UnitPrice:           unit,
			DiscountedUnitPrice: discounted,
			Subtotal:            unit,
			Total:               discounted,
			Measurements:        measurementsFor(it.Product),
			Type:                TypeGoods,
		})
	}
	return entries
}

// shippingEntry carries any shipping discount as the gap between the entry
// subtotal and its total.
func shippingEntry(s order.ShippingLine) Entry {
	subtotal := money.Round2(s.Cost.Add(s.Tax).Add(s.Discount))
	total := money.Round2(s.Cost.Add(s.Tax))
	id := s.ID
	if id == "" {
		id = "shipping"
	}
	title := s.Title
	if title == "" {
		title = "Shipping"
	}
	return Entry{
		ProductID:           id,
		Title:               title,
		Count:               1,
		UnitPrice:           subtotal,
		DiscountedUnitPrice: total,
		Subtotal:            subtotal,
		Total:               total,
		Type:                TypeDelivery,
	}
}

func feeEntry(f order.FeeLine) Entry {
	amount := money.Round2(f.Amount.Add(f.Tax))
	id := f.ID
	if id == "" {
		id = "fee"
	}
	title := f.Title
	if title == "" {
		title = "Fee"
	}
	return Entry{
		ProductID:           id,
		Title:               title,
		Count:               1,
		UnitPrice:           amount,
		DiscountedUnitPrice: amount,
		Subtotal:            amount,
		Total:               amount,
		Type:                TypeService,
	}
}

// reconcile forces the entry totals to sum to the authoritative order total.
// Differences below one cent are left alone; anything larger lands in full on
// the last entry's total and is mirrored into its discounted unit price. The
// returned value is the applied adjustment, zero when nothing moved.
func reconcile(entries []Entry, authoritative decimal.Decimal) decimal.Decimal {
	if len(entries) == 0 {
		return decimal.Zero
	}
	var calculated decimal.Decimal
	for i := range entries {
		calculated = calculated.Add(entries[i].Total)
	}
	difference := authoritative.Sub(calculated)
	if money.BelowCent(difference) {
		return decimal.Zero
	}
	last := &entries[len(entries)-1]
	last.Total = last.Total.Add(difference)
	last.DiscountedUnitPrice = last.DiscountedUnitPrice.Add(difference)
	return difference
}

func measurementsFor(p *order.Product) *Measurements {
	if p == nil {
		return nil
	}
	if p.Weight.IsZero() && p.Length.IsZero() && p.Width.IsZero() && p.Height.IsZero() {
		return nil
	}
	return &Measurements{
		Weight: Grams(p.Weight, p.WeightUnit).InexactFloat64(),
		Length: Centimeters(p.Length, p.DimensionUnit).InexactFloat64(),
		Width:  Centimeters(p.Width, p.DimensionUnit).InexactFloat64(),
		Height: Centimeters(p.Height, p.DimensionUnit).InexactFloat64(),
	}
}
