package coupon

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	Percentage DiscountType = "percentage"
	Fixed      DiscountType = "fixed"
)

type Coupon struct {
	Code           string          `json:"code"`
	DiscountType   DiscountType    `json:"discountType"`
	DiscountValue  decimal.Decimal `json:"discountValue"`
	MinOrderAmount decimal.Decimal `json:"minOrderAmount"`
	UsageLimit     *int            `json:"usageLimit,omitempty"` // nil means unlimited
	UsedCount      int             `json:"usedCount"`
	ExpiresAt      *time.Time      `json:"expiresAt,omitempty"`
	Active         bool            `json:"active"`
}

// Discount computes the amount taken off subtotal, never more than subtotal.
func (c Coupon) Discount(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.Sign() <= 0 {
		return decimal.Zero
	}

	var d decimal.Decimal
	switch c.DiscountType {
	case Percentage:
		d = subtotal.Mul(c.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
	case Fixed:
		d = c.DiscountValue
	default:
		return decimal.Zero
	}

	if d.GreaterThan(subtotal) {
		return subtotal
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func (c Coupon) exhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}

// Applied is the outcome of a successful Resolve.
type Applied struct {
	Code          string          `json:"code"`
	DiscountType  DiscountType    `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	Discount      decimal.Decimal `json:"discount"`
}
