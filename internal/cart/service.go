package cart

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
)

var (
	ErrMissingSession = errors.New("missing session id")
	ErrItemNotInCart  = errors.New("item not in cart")
	ErrQuantityLimit  = fmt.Errorf("quantity per line is limited to %d", MaxQuantity)
)

// MaxQuantity caps a single cart line.
const MaxQuantity = 9999

const lockStripes = 64

// Service is the cart store. Every call names the session explicitly and
// returns a snapshot; callers never share mutable cart state.
type Service struct {
	repo  Repository
	locks [lockStripes]sync.Mutex
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, sessionID string) (Cart, error) {
	if sessionID == "" {
		return Cart{}, ErrMissingSession
	}
	c, err := s.repo.GetCart(ctx, sessionID)
	if err != nil {
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}
	if c == nil {
		return Cart{SessionID: sessionID, Items: []Item{}}, nil
	}
	return c.clone(), nil
}

// Add increments the quantity of productID. Quantities below 1 count as 1;
// a line never grows past MaxQuantity.
func (s *Service) Add(ctx context.Context, sessionID string, productID int64, quantity int) (Cart, error) {
	if quantity < 1 {
		quantity = 1
	}
	if quantity > MaxQuantity {
		return Cart{}, ErrQuantityLimit
	}
	return s.mutate(ctx, sessionID, func(c *Cart) error {
		if i := c.indexOf(productID); i >= 0 {
			if c.Items[i].Quantity > MaxQuantity-quantity {
				return ErrQuantityLimit
			}
			c.Items[i].Quantity += quantity
			return nil
		}
		c.Items = append(c.Items, Item{ProductID: productID, Quantity: quantity})
		return nil
	})
}

// Update sets the absolute quantity; zero or negative removes the line.
func (s *Service) Update(ctx context.Context, sessionID string, productID int64, quantity int) (Cart, error) {
	if quantity > MaxQuantity {
		return Cart{}, ErrQuantityLimit
	}
	return s.mutate(ctx, sessionID, func(c *Cart) error {
		i := c.indexOf(productID)
		switch {
		case quantity <= 0 && i >= 0:
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		case quantity <= 0:
		case i >= 0:
			c.Items[i].Quantity = quantity
		default:
			c.Items = append(c.Items, Item{ProductID: productID, Quantity: quantity})
		}
		return nil
	})
}

func (s *Service) Remove(ctx context.Context, sessionID string, productID int64) (Cart, error) {
	return s.Update(ctx, sessionID, productID, 0)
}

func (s *Service) SelectShipping(ctx context.Context, sessionID string, productID, shippingMethodID int64) (Cart, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) error {
		i := c.indexOf(productID)
		if i < 0 {
			return ErrItemNotInCart
		}
		c.Items[i].ShippingMethodID = shippingMethodID
		return nil
	})
}

func (s *Service) SetDelivery(ctx context.Context, sessionID string, productID int64, address, city string) (Cart, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) error {
		i := c.indexOf(productID)
		if i < 0 {
			return ErrItemNotInCart
		}
		c.Items[i].DeliveryAddress = strings.TrimSpace(address)
		c.Items[i].DeliveryCity = strings.TrimSpace(city)
		return nil
	})
}

// ApplyCoupon stores a coupon code on the cart, normalized to upper case.
// Validation against the coupon table happens when totals are computed.
func (s *Service) ApplyCoupon(ctx context.Context, sessionID, code string) (Cart, error) {
	return s.mutate(ctx, sessionID, func(c *Cart) error {
		c.CouponCode = strings.ToUpper(strings.TrimSpace(code))
		return nil
	})
}

func (s *Service) RemoveCoupon(ctx context.Context, sessionID string) (Cart, error) {
	return s.ApplyCoupon(ctx, sessionID, "")
}

// Clear drops every line and the applied coupon. Clearing an empty cart is a no-op.
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrMissingSession
	}
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	if err := s.repo.ClearCart(ctx, sessionID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

func (s *Service) mutate(ctx context.Context, sessionID string, fn func(c *Cart) error) (Cart, error) {
	if sessionID == "" {
		return Cart{}, ErrMissingSession
	}
	mu := s.lockFor(sessionID)
	mu.Lock()
	defer mu.Unlock()

	current, err := s.repo.GetCart(ctx, sessionID)
	if err != nil {
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}

	var c Cart
	if current != nil {
		c = current.clone()
	} else {
		c = Cart{SessionID: sessionID}
	}

	if err := fn(&c); err != nil {
		return Cart{}, err
	}

	if c.IsEmpty() && c.CouponCode == "" {
		if err := s.repo.ClearCart(ctx, sessionID); err != nil {
			return Cart{}, fmt.Errorf("clear cart: %w", err)
		}
		return Cart{SessionID: sessionID, Items: []Item{}}, nil
	}

	if err := s.repo.UpsertCart(ctx, &c); err != nil {
		return Cart{}, fmt.Errorf("save cart: %w", err)
	}
	return c.clone(), nil
}

func (s *Service) lockFor(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return &s.locks[h.Sum32()%lockStripes]
}
