// Package memstore is an in-process backend for the catalog, coupons, orders
// and payments. It follows the same contracts as the Postgres repositories,
// including the stock trigger and the coupon usage check on order creation.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/catalog"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/coupon"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/order"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/payment"
)

type Store struct {
	mu       sync.RWMutex
	stores   map[int64]catalog.Store
	products map[int64]catalog.Product
	shipping map[int64][]catalog.ShippingMethod
	coupons  map[string]coupon.Coupon
	orders   map[string]order.Order
	payments map[string]payment.Payment

	// insertion order, so listings are stable for equal timestamps
	seq     int
	created map[string]int

	sequences map[string]int64
}

func New() *Store {
	return &Store{
		stores:   make(map[int64]catalog.Store),
		products: make(map[int64]catalog.Product),
		shipping: make(map[int64][]catalog.ShippingMethod),
		coupons:  make(map[string]coupon.Coupon),
		orders:   make(map[string]order.Order),
		payments: make(map[string]payment.Payment),
		created:  make(map[string]int),

		sequences: make(map[string]int64),
	}
}

// NextSequence hands out increasing event sequence numbers per partition key, starting at 1.
func (m *Store) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[partitionKey]++
	return m.sequences[partitionKey], nil
}

func (m *Store) PutStore(s catalog.Store) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[s.ID] = s
}

func (m *Store) PutProduct(p catalog.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

// DeleteProduct removes the product and its shipping methods.
func (m *Store) DeleteProduct(productID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.products, productID)
	delete(m.shipping, productID)
}

func (m *Store) PutShippingMethod(sm catalog.ShippingMethod) {
	m.mu.Lock()
	defer m.mu.Unlock()
	methods := m.shipping[sm.ProductID]
	for i := range methods {
		if methods[i].ID == sm.ID {
			methods[i] = sm
			return
		}
	}
	m.shipping[sm.ProductID] = append(methods, sm)
}

func (m *Store) PutCoupon(c coupon.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Code = coupon.Normalize(c.Code)
	m.coupons[c.Code] = c
}

// Catalog

func (m *Store) GetProduct(ctx context.Context, productID int64) (catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[productID]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (m *Store) GetStore(ctx context.Context, storeID int64) (catalog.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stores[storeID]
	if !ok {
		return catalog.Store{}, catalog.ErrNotFound
	}
	return s, nil
}

func (m *Store) GetStoreBySlug(ctx context.Context, slug string) (catalog.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.stores {
		if s.Slug == slug {
			return s, nil
		}
	}
	return catalog.Store{}, catalog.ErrNotFound
}

func (m *Store) ListStoreProducts(ctx context.Context, storeID int64) ([]catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []catalog.Product
	for _, p := range m.products {
		if p.StoreID == storeID && p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Store) ListShippingMethods(ctx context.Context, productID int64) ([]catalog.ShippingMethod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]catalog.ShippingMethod(nil), m.shipping[productID]...), nil
}

func (m *Store) SetStock(ctx context.Context, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[productID]
	if !ok {
		return catalog.ErrNotFound
	}
	p.StockQuantity = quantity
	m.products[productID] = p
	return nil
}

func (m *Store) ListLowStock(ctx context.Context) ([]catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []catalog.Product
	for _, p := range m.products {
		if p.Active && p.LowStock() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.StoreID != b.StoreID {
			return a.StoreID < b.StoreID
		}
		if a.StockQuantity != b.StockQuantity {
			return a.StockQuantity < b.StockQuantity
		}
		return a.ID < b.ID
	})
	return out, nil
}

// Coupons

func (m *Store) GetByCode(ctx context.Context, code string) (coupon.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.coupons[coupon.Normalize(code)]
	if !ok {
		return coupon.Coupon{}, coupon.ErrNotFound
	}
	return c, nil
}

// Orders returns the order repository view of the store.
func (m *Store) Orders() order.Repository { return orderRepo{m} }

// Payments returns the payment repository view of the store.
func (m *Store) Payments() payment.Repository { return paymentRepo{m} }

type orderRepo struct{ m *Store }

func (r orderRepo) Create(ctx context.Context, o *order.Order) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()

	// validate everything before touching state so a failure leaves nothing behind
	var used coupon.Coupon
	if o.CouponCode != "" {
		c, ok := m.coupons[coupon.Normalize(o.CouponCode)]
		if !ok || !c.Active || (c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit) {
			return order.ErrCouponExhausted
		}
		used = c
	}

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = order.StatusCreated
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	for i := range o.DeliveryGroups {
		if o.DeliveryGroups[i].ID == "" {
			o.DeliveryGroups[i].ID = uuid.NewString()
		}
	}

	for _, it := range o.Items {
		if p, ok := m.products[it.ProductID]; ok {
			p.StockQuantity -= it.Quantity
			m.products[it.ProductID] = p
		}
	}
	if o.CouponCode != "" {
		used.UsedCount++
		m.coupons[used.Code] = used
	}

	m.orders[o.ID] = cloneOrder(*o)
	m.seq++
	m.created[o.ID] = m.seq
	return nil
}

func (r orderRepo) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	m := r.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	o = m.withPaymentStatus(o)
	return &o, nil
}

func (r orderRepo) ListBySession(ctx context.Context, sessionID string) ([]order.Order, error) {
	m := r.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []order.Order
	for _, o := range m.orders {
		if o.SessionID == sessionID {
			out = append(out, m.withPaymentStatus(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return m.created[out[i].ID] > m.created[out[j].ID]
	})
	return out, nil
}

func (m *Store) withPaymentStatus(o order.Order) order.Order {
	o = cloneOrder(o)
	if p, ok := m.payments[o.CurrentPaymentID]; ok {
		o.PaymentStatus = string(p.Status)
	}
	return o
}

func cloneOrder(o order.Order) order.Order {
	o.Items = append([]order.Item(nil), o.Items...)
	o.DeliveryGroups = append([]order.DeliveryGroup(nil), o.DeliveryGroups...)
	return o
}

type paymentRepo struct{ m *Store }

func (r paymentRepo) CreateAttempt(ctx context.Context, p *payment.Payment) error {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[p.OrderID]
	if !ok {
		return payment.ErrOrderNotFound
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = payment.StatusPending
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	m.payments[p.ID] = *p
	m.seq++
	m.created[p.ID] = m.seq
	o.CurrentPaymentID = p.ID
	m.orders[o.ID] = o
	return nil
}

func (r paymentRepo) GetByID(ctx context.Context, paymentID string) (*payment.Payment, error) {
	m := r.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r paymentRepo) GetByReference(ctx context.Context, method payment.Method, reference string) (*payment.Payment, error) {
	m := r.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	var (
		found *payment.Payment
		at    int
	)
	for _, p := range m.payments {
		if p.Method != method || reference == "" || p.ExternalReference != reference {
			continue
		}
		if n := m.created[p.ID]; found == nil || n > at {
			cp := p
			found, at = &cp, n
		}
	}
	return found, nil
}

func (r paymentRepo) ListByOrder(ctx context.Context, orderID string) ([]payment.Payment, error) {
	m := r.m
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payment.Payment
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return m.created[out[i].ID] > m.created[out[j].ID]
	})
	return out, nil
}

func (r paymentRepo) Transition(ctx context.Context, paymentID string, to payment.Status, reason string) (*payment.Payment, error) {
	m := r.m
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payments[paymentID]
	if !ok {
		return nil, payment.ErrNotFound
	}
	if p.Status != payment.StatusPending {
		return nil, payment.ErrTerminal
	}
	p.Status = to
	p.FailureReason = reason
	p.UpdatedAt = time.Now().UTC()
	m.payments[paymentID] = p
	return &p, nil
}
