package pricing

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/cart"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/catalog"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/coupon"
)

type fakeCatalog struct {
	mu       sync.Mutex
	products map[int64]catalog.Product
	stores   map[int64]catalog.Store
	methods  map[int64][]catalog.ShippingMethod
	failOn   int64
	calls    int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: map[int64]catalog.Product{},
		stores:   map[int64]catalog.Store{},
		methods:  map[int64][]catalog.ShippingMethod{},
	}
}

func (f *fakeCatalog) GetProduct(ctx context.Context, id int64) (catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if id == f.failOn {
		return catalog.Product{}, errors.New("db down")
	}
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (f *fakeCatalog) GetStore(ctx context.Context, id int64) (catalog.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stores[id]
	if !ok {
		return catalog.Store{}, catalog.ErrNotFound
	}
	return s, nil
}

func (f *fakeCatalog) ListShippingMethods(ctx context.Context, id int64) ([]catalog.ShippingMethod, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.methods[id], nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func seed() *fakeCatalog {
	f := newFakeCatalog()
	f.stores[1] = catalog.Store{ID: 1, Name: "Panadería"}
	f.stores[2] = catalog.Store{ID: 2, Name: "Ferretería"}
	f.products[10] = catalog.Product{ID: 10, StoreID: 1, Name: "Torta", Price: dec("1000"), StockQuantity: 5, Active: true}
	f.products[20] = catalog.Product{ID: 20, StoreID: 2, Name: "Martillo", Price: dec("333.33"), StockQuantity: 5, Active: true}
	f.products[30] = catalog.Product{ID: 30, StoreID: 2, Name: "Serrucho", Price: dec("50"), Active: false}
	f.methods[10] = []catalog.ShippingMethod{
		{ID: 100, ProductID: 10, Name: "Express", Cost: dec("300")},
		{ID: 101, ProductID: 10, Name: "Premium", Cost: dec("900")},
	}
	return f
}

type fakeCoupons map[string]coupon.Coupon

func (f fakeCoupons) Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (coupon.Applied, error) {
	c, ok := f[code]
	if !ok {
		return coupon.Applied{}, coupon.ErrNotFound
	}
	if subtotal.LessThan(c.MinOrderAmount) {
		return coupon.Applied{}, coupon.ErrMinOrder
	}
	return coupon.Applied{Code: c.Code, DiscountType: c.DiscountType, DiscountValue: c.DiscountValue, Discount: c.Discount(subtotal)}, nil
}

var save10 = fakeCoupons{"SAVE10": {Code: "SAVE10", DiscountType: coupon.Percentage, DiscountValue: dec("10"), MinOrderAmount: dec("1000"), Active: true}}

func TestTotals_SingleLineWithShipping(t *testing.T) {
	agg := NewAggregator(seed(), save10, 4)

	totals, err := agg.Totals(context.Background(), cart.Cart{
		SessionID: "s1",
		Items:     []cart.Item{{ProductID: 10, Quantity: 2, ShippingMethodID: 100}},
	})
	require.NoError(t, err)

	assert.Equal(t, "2000", totals.Subtotal.String())
	assert.Equal(t, "300", totals.Shipping.String())
	assert.True(t, totals.Discount.IsZero())
	assert.Equal(t, "2300", totals.Total.String())
	assert.Equal(t, 2, totals.ItemCount)
}

func TestTotals_CouponDiscount(t *testing.T) {
	agg := NewAggregator(seed(), save10, 4)

	totals, err := agg.Totals(context.Background(), cart.Cart{
		Items:      []cart.Item{{ProductID: 10, Quantity: 2, ShippingMethodID: 100}},
		CouponCode: "SAVE10",
	})
	require.NoError(t, err)

	require.NotNil(t, totals.Coupon)
	assert.Equal(t, "200", totals.Discount.String())
	assert.Equal(t, "1800", totals.Subtotal.Sub(totals.Discount).String())
	assert.Equal(t, "2100", totals.Total.String())
}

func TestTotals_InvalidCouponIsReportedNotFailed(t *testing.T) {
	agg := NewAggregator(seed(), save10, 4)

	totals, err := agg.Totals(context.Background(), cart.Cart{
		Items:      []cart.Item{{ProductID: 20, Quantity: 1}},
		CouponCode: "SAVE10",
	})
	require.NoError(t, err)
	assert.Nil(t, totals.Coupon)
	assert.True(t, totals.Discount.IsZero())
	assert.Equal(t, coupon.ErrMinOrder.Error(), totals.CouponError)
}

func TestTotals_StaleLinesAreTagged(t *testing.T) {
	agg := NewAggregator(seed(), nil, 4)

	totals, err := agg.Totals(context.Background(), cart.Cart{
		Items: []cart.Item{
			{ProductID: 10, Quantity: 1},
			{ProductID: 30, Quantity: 1},
			{ProductID: 99, Quantity: 3},
		},
	})
	require.NoError(t, err)

	require.Len(t, totals.Lines, 1)
	require.Len(t, totals.Stale, 2)
	assert.Equal(t, ReasonInactive, totals.Stale[0].Reason)
	assert.Equal(t, ReasonNotFound, totals.Stale[1].Reason)
	assert.Equal(t, []int64{30, 99}, totals.StaleProductIDs())
	assert.Equal(t, "1000", totals.Subtotal.String())
}

func TestTotals_CatalogErrorFails(t *testing.T) {
	f := seed()
	f.failOn = 20
	agg := NewAggregator(f, nil, 2)

	_, err := agg.Totals(context.Background(), cart.Cart{Items: []cart.Item{{ProductID: 10, Quantity: 1}, {ProductID: 20, Quantity: 1}}})
	require.Error(t, err)
}

func TestTotals_StoreBreakdownApportionsDiscount(t *testing.T) {
	coupons := fakeCoupons{"FIX100": {Code: "FIX100", DiscountType: coupon.Fixed, DiscountValue: dec("100"), Active: true}}
	agg := NewAggregator(seed(), coupons, 4)

	totals, err := agg.Totals(context.Background(), cart.Cart{
		Items: []cart.Item{
			{ProductID: 10, Quantity: 1},
			{ProductID: 20, Quantity: 2},
		},
		CouponCode: "FIX100",
	})
	require.NoError(t, err)
	require.Len(t, totals.Stores, 2)

	assert.Equal(t, int64(1), totals.Stores[0].StoreID)
	assert.Equal(t, "Panadería", totals.Stores[0].StoreName)
	assert.Equal(t, "1666.66", totals.Subtotal.String())

	sum := decimal.Zero
	for _, s := range totals.Stores {
		sum = sum.Add(s.Discount)
	}
	assert.True(t, sum.Equal(totals.Discount))
	assert.Equal(t, "60", totals.Stores[0].Discount.String())
	assert.Equal(t, "40", totals.Stores[1].Discount.String())
}

func TestTotals_EmptyCart(t *testing.T) {
	agg := NewAggregator(seed(), save10, 4)

	totals, err := agg.Totals(context.Background(), cart.Cart{CouponCode: "SAVE10"})
	require.NoError(t, err)
	assert.True(t, totals.IsEmpty())
	assert.True(t, totals.Total.IsZero())
	assert.Empty(t, totals.CouponError)
}

func TestTotals_TotalInvariant(t *testing.T) {
	f := newFakeCatalog()
	rng := rand.New(rand.NewSource(42))
	for id := int64(1); id <= 20; id++ {
		f.stores[id%4] = catalog.Store{ID: id % 4, Name: fmt.Sprintf("store-%d", id%4)}
		f.products[id] = catalog.Product{ID: id, StoreID: id % 4, Price: decimal.New(rng.Int63n(500000), -2), Active: true}
		f.methods[id] = []catalog.ShippingMethod{{ID: id * 10, ProductID: id, Cost: decimal.New(rng.Int63n(5000), -2)}}
	}
	coupons := fakeCoupons{"PCT": {Code: "PCT", DiscountType: coupon.Percentage, DiscountValue: dec("17"), Active: true}}
	agg := NewAggregator(f, coupons, 3)

	for run := 0; run < 50; run++ {
		var c cart.Cart
		for i := 0; i < 1+rng.Intn(6); i++ {
			c.Items = append(c.Items, cart.Item{ProductID: 1 + rng.Int63n(20), Quantity: 1 + rng.Intn(5)})
		}
		if run%2 == 0 {
			c.CouponCode = "PCT"
		}

		totals, err := agg.Totals(context.Background(), c)
		require.NoError(t, err)
		assert.True(t, totals.Total.Equal(totals.Subtotal.Sub(totals.Discount).Add(totals.Shipping)))
		assert.False(t, totals.Total.IsNegative())

		storeTotal := decimal.Zero
		for _, s := range totals.Stores {
			storeTotal = storeTotal.Add(s.Total)
		}
		assert.True(t, storeTotal.Equal(totals.Total), "run %d: %s != %s", run, storeTotal, totals.Total)
	}
}
