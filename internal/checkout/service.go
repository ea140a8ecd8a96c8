package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/cart"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/coupon"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/order"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/pricing"
)

var ErrEmptyCart = errors.New("cart is empty")

// StaleItemsError is returned by PlaceOrder under the block policy when the
// cart references removed or deactivated products.
type StaleItemsError struct {
	ProductIDs []int64
}

func (e *StaleItemsError) Error() string {
	return fmt.Sprintf("cart contains unavailable products: %v", e.ProductIDs)
}

// ErrStaleItems matches any *StaleItemsError with errors.Is.
var ErrStaleItems = errors.New("cart contains unavailable products")

func (e *StaleItemsError) Is(target error) bool {
	return target == ErrStaleItems
}

type StalePolicy string

const (
	// StaleSkip drops unavailable lines from the order.
	StaleSkip StalePolicy = "skip"
	// StaleBlock refuses to place the order until the lines are removed.
	StaleBlock StalePolicy = "block"
)

func ParseStalePolicy(v string) StalePolicy {
	if StalePolicy(strings.ToLower(v)) == StaleBlock {
		return StaleBlock
	}
	return StaleSkip
}

type CartStore interface {
	Get(ctx context.Context, sessionID string) (cart.Cart, error)
	ApplyCoupon(ctx context.Context, sessionID, code string) (cart.Cart, error)
	RemoveCoupon(ctx context.Context, sessionID string) (cart.Cart, error)
	Clear(ctx context.Context, sessionID string) error
}

type Pricer interface {
	Totals(ctx context.Context, c cart.Cart) (pricing.Totals, error)
}

type CouponResolver interface {
	Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (coupon.Applied, error)
}

type OrderPublisher interface {
	PublishOrderCreated(ctx context.Context, o order.Order) error
}

type Service struct {
	carts     CartStore
	pricer    Pricer
	coupons   CouponResolver
	orders    order.Repository
	publisher OrderPublisher
	policy    StalePolicy
	logger    *log.Logger
}

func NewService(carts CartStore, pricer Pricer, coupons CouponResolver, orders order.Repository, publisher OrderPublisher, policy StalePolicy, logger *log.Logger) *Service {
	return &Service{
		carts:     carts,
		pricer:    pricer,
		coupons:   coupons,
		orders:    orders,
		publisher: publisher,
		policy:    policy,
		logger:    logger,
	}
}

func (s *Service) Policy() StalePolicy {
	return s.policy
}

// View prices the session's current cart.
func (s *Service) View(ctx context.Context, sessionID string) (pricing.Totals, error) {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return pricing.Totals{}, err
	}
	return s.pricer.Totals(ctx, c)
}

// ApplyCoupon validates code against the current subtotal and stores it on
// the cart only when it is accepted.
func (s *Service) ApplyCoupon(ctx context.Context, sessionID, code string) (pricing.Totals, error) {
	c, err := s.carts.Get(ctx, sessionID)
	if err != nil {
		return pricing.Totals{}, err
	}
	c.CouponCode = ""

	t, err := s.pricer.Totals(ctx, c)
	if err != nil {
		return pricing.Totals{}, err
	}
	if t.IsEmpty() {
		return pricing.Totals{}, ErrEmptyCart
	}
	if _, err := s.coupons.Resolve(ctx, code, t.Subtotal); err != nil {
		return pricing.Totals{}, err
	}

	c, err = s.carts.ApplyCoupon(ctx, sessionID, code)
	if err != nil {
		return pricing.Totals{}, err
	}
	return s.pricer.Totals(ctx, c)
}

func (s *Service) RemoveCoupon(ctx context.Context, sessionID string) (pricing.Totals, error) {
	c, err := s.carts.RemoveCoupon(ctx, sessionID)
	if err != nil {
		return pricing.Totals{}, err
	}
	return s.pricer.Totals(ctx, c)
}

// Preview is the checkout view of the cart.
func (s *Service) Preview(ctx context.Context, sessionID string) (pricing.Totals, error) {
	return s.View(ctx, sessionID)
}

// PlaceOrder turns the session's cart into an order. Nothing is written when
// the form, the cart or the stock check fails.
func (s *Service) PlaceOrder(ctx context.Context, sessionID string, f Form) (*order.Order, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	t, err := s.View(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("price cart: %w", err)
	}

	if len(t.Stale) > 0 && s.policy == StaleBlock {
		return nil, &StaleItemsError{ProductIDs: t.StaleProductIDs()}
	}
	if t.IsEmpty() {
		return nil, ErrEmptyCart
	}

	if err := checkStock(t); err != nil {
		return nil, err
	}

	o := buildOrder(sessionID, f, t)
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.carts.Clear(ctx, sessionID); err != nil {
		s.logger.Printf("order %s: clear cart for session %s: %v", o.ID, sessionID, err)
	}
	if err := s.publisher.PublishOrderCreated(ctx, *o); err != nil {
		s.logger.Printf("order %s: publish OrderCreated: %v", o.ID, err)
	}

	s.logger.Printf("created order %s total=%s items=%d stale=%d", o.ID, o.Total.StringFixed(2), len(o.Items), len(t.Stale))
	return o, nil
}

func checkStock(t pricing.Totals) error {
	var verr ValidationError
	for _, line := range t.Lines {
		p := line.Product
		if line.Quantity <= 0 || line.Quantity > cart.MaxQuantity {
			verr.add("items", fmt.Sprintf("%s: invalid quantity %d", p.Name, line.Quantity))
			continue
		}
		if !p.TracksStock() {
			continue
		}
		if line.Quantity > p.StockQuantity {
			verr.add("items", fmt.Sprintf("%s: only %d in stock", p.Name, max(p.StockQuantity, 0)))
		}
	}
	if verr.empty() {
		return nil
	}
	return &verr
}
