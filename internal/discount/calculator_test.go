package discount

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pay/internal/order"
)

type fakeHistory struct {
	spent  decimal.Decimal
	orders int64
	err    error
}

func (f fakeHistory) CustomerHistory(context.Context, string) (decimal.Decimal, int64, error) {
	return f.spent, f.orders, f.err
}

type addFive struct{}

func (addFive) AdjustTotal(_ *order.Order, total decimal.Decimal) decimal.Decimal {
	return total.Add(decimal.NewFromInt(5))
}

func TestTotalDiscountSumsSources(t *testing.T) {
	o := &order.Order{
		Items: []order.LineItem{{ID: "i1", Subtotal: dec(t, "100")}},
		Coupons: []order.Coupon{
			{Code: "TEN", Discount: dec(t, "10")},
			{Code: "FIVE", Discount: dec(t, "5.50")},
		},
		Fees: []order.FeeLine{
			{ID: "f1", Amount: dec(t, "3")},
			{ID: "f2", Amount: dec(t, "-7.25")},
		},
		Shipping: []order.ShippingLine{
			{ID: "s1", Cost: dec(t, "40"), Discount: dec(t, "2.75")},
		},
	}
	c := &Calculator{}
	got := c.TotalDiscount(context.Background(), o)
	// 15.50 coupons + 7.25 negative fee + 2.75 shipping discount
	if !got.Equal(dec(t, "25.50")) {
		t.Fatalf("expected 25.50, got %s", got)
	}
}

func TestTotalDiscountFreeShippingCountedOnce(t *testing.T) {
	o := &order.Order{
		Items: []order.LineItem{{ID: "i1", Subtotal: dec(t, "1000")}},
		Shipping: []order.ShippingLine{
			{ID: "s1", Cost: dec(t, "300"), Discount: dec(t, "50")},
		},
		Coupons: []order.Coupon{
			{Code: "SHIP1", FreeShipping: true},
			{Code: "SHIP2", FreeShipping: true},
		},
	}
	c := &Calculator{}
	got := c.TotalDiscount(context.Background(), o)
	// The full shipping cost once; the explicit line discount does not stack.
	if !got.Equal(dec(t, "300")) {
		t.Fatalf("expected 300, got %s", got)
	}
}

func TestTotalDiscountBonusPicksHighestTier(t *testing.T) {
	o := &order.Order{
		CustomerID: "cust-1",
		Items:      []order.LineItem{{ID: "i1", Subtotal: dec(t, "2000")}},
	}
	c := &Calculator{
		Bonus: BonusProgram{
			Enabled: true,
			Tiers: []Tier{
				{Threshold: dec(t, "1000"), Type: ThresholdSpend, Percent: dec(t, "5")},
				{Threshold: dec(t, "5000"), Type: ThresholdSpend, Percent: dec(t, "10")},
			},
		},
		History: fakeHistory{spent: dec(t, "6000")},
	}
	got := c.TotalDiscount(context.Background(), o)
	if !got.Equal(dec(t, "200")) {
		t.Fatalf("expected 200 (10%% of 2000), got %s", got)
	}
}

func TestTotalDiscountBonusOrderCountTier(t *testing.T) {
	o := &order.Order{
		CustomerID: "cust-2",
		Items:      []order.LineItem{{ID: "i1", Subtotal: dec(t, "100")}},
	}
	c := &Calculator{
		Bonus: BonusProgram{
			Enabled: true,
			Tiers: []Tier{
				{Threshold: dec(t, "5000"), Type: ThresholdSpend, Percent: dec(t, "10")},
				{Threshold: dec(t, "3"), Type: ThresholdOrders, Percent: dec(t, "2")},
			},
		},
		History: fakeHistory{spent: dec(t, "150"), orders: 4},
	}
	got := c.TotalDiscount(context.Background(), o)
	if !got.Equal(dec(t, "2")) {
		t.Fatalf("expected 2 (2%% of 100), got %s", got)
	}
}

func TestTotalDiscountBonusDegradesToZero(t *testing.T) {
	tiers := []Tier{{Threshold: dec(t, "0"), Type: ThresholdSpend, Percent: dec(t, "5")}}
	items := []order.LineItem{{ID: "i1", Subtotal: dec(t, "100")}}

	// Guest checkout: no customer id, no bonus.
	guest := &Calculator{Bonus: BonusProgram{Enabled: true, Tiers: tiers}, History: fakeHistory{}}
	if got := guest.TotalDiscount(context.Background(), &order.Order{Items: items}); !got.IsZero() {
		t.Fatalf("expected zero for guest order, got %s", got)
	}

	// History lookup failure degrades instead of failing the calculation.
	broken := &Calculator{Bonus: BonusProgram{Enabled: true, Tiers: tiers}, History: fakeHistory{err: errors.New("db down")}}
	if got := broken.TotalDiscount(context.Background(), &order.Order{CustomerID: "c", Items: items}); !got.IsZero() {
		t.Fatalf("expected zero on history error, got %s", got)
	}

	disabled := &Calculator{Bonus: BonusProgram{Enabled: false, Tiers: tiers}, History: fakeHistory{}}
	if got := disabled.TotalDiscount(context.Background(), &order.Order{CustomerID: "c", Items: items}); !got.IsZero() {
		t.Fatalf("expected zero when program disabled, got %s", got)
	}
}

func TestTotalDiscountPolicyAdjustsBeforeRounding(t *testing.T) {
	o := &order.Order{
		Items:   []order.LineItem{{ID: "i1", Subtotal: dec(t, "100")}},
		Coupons: []order.Coupon{{Code: "TEN", Discount: dec(t, "10")}},
	}
	c := &Calculator{Totals: addFive{}}
	got := c.TotalDiscount(context.Background(), o)
	if !got.Equal(dec(t, "15")) {
		t.Fatalf("expected 15, got %s", got)
	}
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}
