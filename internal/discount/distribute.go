package discount

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-pay/internal/money"
	"github.com/noah-isme/backend-pay/internal/order"
)

// Strategy names a discount-distribution algorithm.
type Strategy string

const (
	// StrategyProportional splits by each line's share of the goods subtotal.
	StrategyProportional Strategy = "proportional"
	// StrategyEqual splits the total evenly across lines.
	StrategyEqual Strategy = "equal"
	// StrategyPriority drains the pool in descending line-priority order.
	StrategyPriority Strategy = "priority"
)

// ParseStrategy maps a configured value onto a known strategy. Unknown values
// fall back to proportional distribution.
func ParseStrategy(value string) Strategy {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case StrategyEqual:
		return StrategyEqual
	case StrategyPriority:
		return StrategyPriority
	default:
		return StrategyProportional
	}
}

// PriorityPolicy overrides the priority score of a line during priority
// distribution. The returned score is clamped to [0, 100].
type PriorityPolicy interface {
	Priority(item order.LineItem, base int) int
}

const (
	basePriority      = 50
	priorityBump      = 20
	priorityBumpCents = 1000
	maxPriority       = 100
)

type share struct {
	itemID   string
	subtotal decimal.Decimal
	amount   decimal.Decimal
}

// Distribute spreads totalDiscount across the order's line items using the
// configured strategy. The result is empty when totalDiscount <= 0 or no line
// has a positive subtotal. The distributed amounts always sum to
// totalDiscount exactly: any rounding residual of at least one cent lands on
// the last line in processing order, clamped at zero.
func (c *Calculator) Distribute(o *order.Order, totalDiscount decimal.Decimal) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	if o == nil || totalDiscount.LessThanOrEqual(decimal.Zero) {
		return out
	}
	items := discountable(o.Items)
	if len(items) == 0 {
		return out
	}
	var shares []share
	switch c.Strategy {
	case StrategyEqual:
		shares = equalShares(items, totalDiscount)
	case StrategyPriority:
		shares = c.priorityShares(items, totalDiscount)
	default:
		shares = proportionalShares(items, totalDiscount)
	}
	adjustResidual(shares, totalDiscount)
	for _, s := range shares {
		out[s.itemID] = s.amount
	}
	return out
}

// ValidateDiscounts reports whether every assigned discount stays within
// [0, line subtotal]. It mutates nothing and stops at the first violation.
// Lines absent from the map count as zero.
func ValidateDiscounts(o *order.Order, discounts map[string]decimal.Decimal) bool {
	if o == nil {
		return true
	}
	for _, it := range o.Items {
		d, ok := discounts[it.ID]
		if !ok {
			continue
		}
		if d.IsNegative() || d.GreaterThan(it.Subtotal) {
			return false
		}
	}
	return true
}

func discountable(items []order.LineItem) []order.LineItem {
	out := make([]order.LineItem, 0, len(items))
	for _, it := range items {
		if it.Subtotal.IsPositive() {
			out = append(out, it)
		}
	}
	return out
}

func proportionalShares(items []order.LineItem, total decimal.Decimal) []share {
	var sum decimal.Decimal
	for _, it := range items {
		sum = sum.Add(it.Subtotal)
	}
	shares := make([]share, 0, len(items))
	for _, it := range items {
		amount := money.Round2(total.Mul(it.Subtotal).Div(sum))
		if amount.GreaterThan(it.Subtotal) {
			amount = it.Subtotal
		}
		shares = append(shares, share{itemID: it.ID, subtotal: it.Subtotal, amount: amount})
	}
	return shares
}

func equalShares(items []order.LineItem, total decimal.Decimal) []share {
	per := money.Round2(total.Div(decimal.NewFromInt(int64(len(items)))))
	shares := make([]share, 0, len(items))
	for _, it := range items {
		amount := per
		if amount.GreaterThan(it.Subtotal) {
			amount = it.Subtotal
		}
		shares = append(shares, share{itemID: it.ID, subtotal: it.Subtotal, amount: amount})
	}
	return shares
}

// priorityShares drains the remaining pool line by line in descending score
// order. Each line consumes min(remaining, subtotal) x score/100; lines
// reached after the pool is exhausted get zero.
func (c *Calculator) priorityShares(items []order.LineItem, total decimal.Decimal) []share {
	type ranked struct {
		item  order.LineItem
		score int
	}
	queue := make([]ranked, 0, len(items))
	for _, it := range items {
		score := basePriority
		if money.Cents(it.Subtotal) > priorityBumpCents {
			score += priorityBump
		}
		if c.Priority != nil {
			score = c.Priority.Priority(it, score)
		}
		if score < 0 {
			score = 0
		}
		if score > maxPriority {
			score = maxPriority
		}
		queue = append(queue, ranked{item: it, score: score})
	}
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].score > queue[j].score })

	remaining := total
	shares := make([]share, 0, len(queue))
	for _, r := range queue {
		if remaining.LessThanOrEqual(decimal.Zero) {
			shares = append(shares, share{itemID: r.item.ID, subtotal: r.item.Subtotal})
			continue
		}
		base := remaining
		if r.item.Subtotal.LessThan(base) {
			base = r.item.Subtotal
		}
		amount := money.Round2(base.Mul(decimal.NewFromInt(int64(r.score))).Div(hundred))
		if amount.GreaterThan(remaining) {
			amount = remaining
		}
		shares = append(shares, share{itemID: r.item.ID, subtotal: r.item.Subtotal, amount: amount})
		remaining = remaining.Sub(amount)
	}
	return shares
}

// adjustResidual forces conservation: whatever rounding left over is added in
// full to the last processed line, clamped at zero. The residual may push
// that line's discount past its subtotal; the exact total takes precedence
// over the per-line cap.
func adjustResidual(shares []share, total decimal.Decimal) {
	if len(shares) == 0 {
		return
	}
	var sum decimal.Decimal
	for _, s := range shares {
		sum = sum.Add(s.amount)
	}
	residual := total.Sub(sum)
	if money.BelowCent(residual) {
		return
	}
	last := &shares[len(shares)-1]
	last.amount = last.amount.Add(residual)
	if last.amount.IsNegative() {
		last.amount = decimal.Zero
	}
}
