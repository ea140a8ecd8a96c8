package coupon

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound   = errors.New("coupon not found")
	ErrInactive   = errors.New("coupon is not active")
	ErrExpired    = errors.New("coupon has expired")
	ErrMinOrder   = errors.New("order subtotal below coupon minimum")
	ErrUsageLimit = errors.New("coupon usage limit reached")
)

// Normalize returns the canonical form of a coupon code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolver validates coupon codes against a cart subtotal.
//
// Usage limits are global across all customers. A coupon is only consumed
// when an order is placed, so two carts may both resolve the last use; the
// order transaction settles which one gets it.
type Resolver struct {
	repo Repository
	now  func() time.Time
}

func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, now: time.Now}
}

func (r *Resolver) Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (Applied, error) {
	code = Normalize(code)
	if code == "" {
		return Applied{}, ErrNotFound
	}

	c, err := r.repo.GetByCode(ctx, code)
	if err != nil {
		return Applied{}, err
	}

	if err := r.validate(c, subtotal); err != nil {
		return Applied{}, err
	}

	return Applied{
		Code:          c.Code,
		DiscountType:  c.DiscountType,
		DiscountValue: c.DiscountValue,
		Discount:      c.Discount(subtotal),
	}, nil
}

func (r *Resolver) validate(c Coupon, subtotal decimal.Decimal) error {
	switch {
	case !c.Active:
		return ErrInactive
	case c.ExpiresAt != nil && !r.now().Before(*c.ExpiresAt):
		return ErrExpired
	case subtotal.LessThan(c.MinOrderAmount):
		return ErrMinOrder
	case c.exhausted():
		return ErrUsageLimit
	}
	return nil
}

// IsRejection reports whether err is a coupon validation failure rather than
// an infrastructure error.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInactive) ||
		errors.Is(err, ErrExpired) ||
		errors.Is(err, ErrMinOrder) ||
		errors.Is(err, ErrUsageLimit)
}
