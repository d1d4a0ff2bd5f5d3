package fee

import (
	"github.com/shopspring/decimal"
)

const centPlaces = 2

var (
	hundred = decimal.NewFromInt(100)

	// Tolerance is the rounding tolerance of a single amount (one cent).
	Tolerance = decimal.New(1, -centPlaces)
)

func roundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(centPlaces)
}

// applyDiscount returns amount × (1 − pct/100), rounded to the cent.
func applyDiscount(amount, pct decimal.Decimal) decimal.Decimal {
	if pct.IsZero() {
		return roundCents(amount)
	}
	factor := hundred.Sub(pct).Div(hundred)
	return roundCents(amount.Mul(factor))
}

// split divides total into n amounts following the rounding policy.
func split(total decimal.Decimal, n int, rounding Rounding) []decimal.Decimal {
	parts := make([]decimal.Decimal, n)
	if n <= 0 {
		return parts
	}
	count := decimal.NewFromInt(int64(n))

	switch rounding {
	case RoundRemainderLast:
		share := total.Div(count).Truncate(centPlaces)
		for i := range parts {
			parts[i] = share
		}
		parts[n-1] = total.Sub(share.Mul(decimal.NewFromInt(int64(n - 1))))
	default:
		share := total.DivRound(count, centPlaces)
		for i := range parts {
			parts[i] = share
		}
	}
	return parts
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ApproxEqual tells whether a and b differ by at most tol.
func ApproxEqual(a, b, tol decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tol)
}

// SplitGST splits amount into its base and tax parts at ratePct.
// When inclusive, amount already contains the tax; otherwise the tax comes on top.
func SplitGST(amount, ratePct decimal.Decimal, inclusive bool) (base, tax decimal.Decimal) {
	if ratePct.IsZero() {
		return amount, decimal.Zero
	}
	rate := ratePct.Div(hundred)
	if inclusive {
		base = roundCents(amount.Div(decimal.NewFromInt(1).Add(rate)))
		return base, amount.Sub(base)
	}
	return amount, roundCents(amount.Mul(rate))
}

func validPercentage(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(hundred)
}
