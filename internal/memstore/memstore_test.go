package memstore

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/catalog"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/coupon"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/order"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/payment"
)

func newOrder(session string, qty int, code string) *order.Order {
	return &order.Order{
		SessionID:  session,
		Items:      []order.Item{{ProductID: 1, StoreID: 1, Quantity: qty, UnitPrice: decimal.NewFromInt(1000)}},
		Total:      decimal.NewFromInt(int64(1000 * qty)),
		CouponCode: code,
	}
}

// cancelOrder mirrors the restore_stock_on_order_cancel trigger of migration
// 000004 for tests: the order is cancelled and its stock goes back.
func (m *Store) cancelOrder(orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return order.ErrNotFound
	}
	if o.Status == order.StatusCancelled {
		return nil
	}
	for _, it := range o.Items {
		if p, ok := m.products[it.ProductID]; ok {
			p.StockQuantity += it.Quantity
			m.products[it.ProductID] = p
		}
	}
	o.Status = order.StatusCancelled
	m.orders[orderID] = o
	return nil
}

func TestCatalogAndStockTrigger(t *testing.T) {
	ctx := context.Background()
	m := New()
	SeedDemo(m)

	s, err := m.GetStoreBySlug(ctx, "jardin-del-valle")
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.ID)

	_, err = m.GetProduct(ctx, 99)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	o := newOrder("s1", 3, "")
	require.NoError(t, m.Orders().Create(ctx, o))
	assert.Equal(t, order.StatusCreated, o.Status)

	p, err := m.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 22, p.StockQuantity)

	require.NoError(t, m.cancelOrder(o.ID))
	require.NoError(t, m.cancelOrder(o.ID))
	p, _ = m.GetProduct(ctx, 1)
	assert.Equal(t, 25, p.StockQuantity)

	low, err := m.ListLowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, int64(2), low[0].ID)
}

func TestOrderCreateConsumesCouponOnce(t *testing.T) {
	ctx := context.Background()
	m := New()
	SeedDemo(m)

	require.NoError(t, m.Orders().Create(ctx, newOrder("s1", 1, "BIENVENIDA")))
	c, err := m.GetByCode(ctx, "BIENVENIDA")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsedCount)

	second := newOrder("s2", 1, "BIENVENIDA")
	err = m.Orders().Create(ctx, second)
	assert.ErrorIs(t, err, order.ErrCouponExhausted)

	got, err := m.Orders().ListBySession(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, got)

	p, _ := m.GetProduct(ctx, 1)
	assert.Equal(t, 24, p.StockQuantity)

	_, err = m.GetByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, coupon.ErrNotFound)
}

func TestCouponCodesIgnoreCase(t *testing.T) {
	ctx := context.Background()
	m := New()
	SeedDemo(m)
	m.PutCoupon(coupon.Coupon{Code: "verano", DiscountType: coupon.Fixed, DiscountValue: decimal.NewFromInt(100), Active: true})

	c, err := m.GetByCode(ctx, "Verano ")
	require.NoError(t, err)
	assert.Equal(t, "VERANO", c.Code)

	require.NoError(t, m.Orders().Create(ctx, newOrder("s1", 1, "verano")))
	c, err = m.GetByCode(ctx, "VERANO")
	require.NoError(t, err)
	assert.Equal(t, 1, c.UsedCount)
}

func TestPaymentsTrackCurrentAttempt(t *testing.T) {
	ctx := context.Background()
	m := New()
	SeedDemo(m)
	payments := m.Payments()

	o := newOrder("s1", 1, "")
	require.NoError(t, m.Orders().Create(ctx, o))

	first := &payment.Payment{OrderID: o.ID, Method: payment.MethodTransbank, Amount: o.Total, ExternalReference: "tok-1"}
	require.NoError(t, payments.CreateAttempt(ctx, first))
	_, err := payments.Transition(ctx, first.ID, payment.StatusFailed, "rejected")
	require.NoError(t, err)

	_, err = payments.Transition(ctx, first.ID, payment.StatusPaid, "")
	assert.ErrorIs(t, err, payment.ErrTerminal)

	got, err := m.Orders().GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.CurrentPaymentID)
	assert.Equal(t, "failed", got.PaymentStatus)
	assert.Equal(t, order.StatusCreated, got.Status)

	retry := &payment.Payment{OrderID: o.ID, Method: payment.MethodTransbank, Amount: o.Total, ExternalReference: "tok-2"}
	require.NoError(t, payments.CreateAttempt(ctx, retry))

	got, _ = m.Orders().GetByID(ctx, o.ID)
	assert.Equal(t, retry.ID, got.CurrentPaymentID)
	assert.Equal(t, "pending", got.PaymentStatus)

	list, err := payments.ListByOrder(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, retry.ID, list[0].ID)

	byRef, err := payments.GetByReference(ctx, payment.MethodTransbank, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, byRef.ID)

	err = payments.CreateAttempt(ctx, &payment.Payment{OrderID: "missing", Method: payment.MethodCash})
	assert.ErrorIs(t, err, payment.ErrOrderNotFound)

	_, err = payments.Transition(ctx, "missing", payment.StatusPaid, "")
	assert.ErrorIs(t, err, payment.ErrNotFound)
}
