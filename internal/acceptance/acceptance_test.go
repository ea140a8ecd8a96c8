package acceptance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/cart"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/checkout"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/coupon"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/events"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/memstore"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/order"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/payment"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/pricing"
)

type mallTestContext struct {
	store    *memstore.Store
	orders   order.Repository
	carts    *cart.Service
	checkout *checkout.Service
	payments *payment.Service

	session   string
	couponErr error
	orderErr  error
	placed    *order.Order
	payment   *payment.Payment
	payErr    error
}

func (c *mallTestContext) reset() {
	logger := log.New(io.Discard, "", 0)

	c.store = memstore.New()
	c.orders = c.store.Orders()
	c.carts = cart.NewService(cart.NewMemoryRepository())
	resolver := coupon.NewResolver(c.store)
	c.checkout = checkout.NewService(c.carts, pricing.NewAggregator(c.store, resolver, 4), resolver, c.orders,
		events.NopPublisher{}, checkout.StaleSkip, logger)
	c.payments = payment.NewService(c.store.Payments(), c.orders, payment.NewMockGateway("http://localhost"),
		events.NopPublisher{}, nil, logger, payment.Options{
			ReturnURL:             "http://localhost/api/payments/transbank/return",
			DefaultPickupLocation: "Store counter",
		})

	c.session = ""
	c.couponErr = nil
	c.orderErr = nil
	c.placed = nil
	c.payment = nil
	c.payErr = nil
}

func (c *mallTestContext) totals() (pricing.Totals, error) {
	return c.checkout.View(context.Background(), c.session)
}

func expectAmount(name string, got decimal.Decimal, want int) error {
	if !got.Equal(decimal.NewFromInt(int64(want))) {
		return fmt.Errorf("expected %s %d, got %s", name, want, got.String())
	}
	return nil
}

// Given steps

func (c *mallTestContext) theDemoMall() error {
	memstore.SeedDemo(c.store)
	return nil
}

func (c *mallTestContext) aShopperWithSession(session string) error {
	c.session = session
	return nil
}

func (c *mallTestContext) theShopperHasPlacedAnOrder(qty int, productID int64) error {
	if err := c.theShopperAdds(qty, productID); err != nil {
		return err
	}
	if err := c.theShopperChecksOutWithEmail("ana@example.com"); err != nil {
		return err
	}
	if c.orderErr != nil {
		return fmt.Errorf("place order: %w", c.orderErr)
	}
	return nil
}

func (c *mallTestContext) productIsRemoved(productID int64) error {
	c.store.DeleteProduct(productID)
	return nil
}

// When steps

func (c *mallTestContext) theShopperAdds(qty int, productID int64) error {
	_, err := c.carts.Add(context.Background(), c.session, productID, qty)
	return err
}

func (c *mallTestContext) theShopperAppliesCoupon(code string) error {
	_, c.couponErr = c.checkout.ApplyCoupon(context.Background(), c.session, code)
	return nil
}

func (c *mallTestContext) theShopperSelectsShipping(methodID, productID int64) error {
	_, err := c.carts.SelectShipping(context.Background(), c.session, productID, methodID)
	return err
}

func (c *mallTestContext) theShopperClearsTheCart() error {
	return c.carts.Clear(context.Background(), c.session)
}

func (c *mallTestContext) theShopperChecksOutWithEmail(email string) error {
	c.placed, c.orderErr = c.checkout.PlaceOrder(context.Background(), c.session, checkout.Form{
		CustomerName:    "Ana Pérez",
		CustomerEmail:   email,
		CustomerPhone:   "+56 9 1234 5678",
		DeliveryAddress: "Los Robles 12",
		DeliveryCity:    "Talca",
	})
	return nil
}

func (c *mallTestContext) theShopperPaysWith(method string) error {
	if c.placed == nil {
		return errors.New("no order placed")
	}
	p, err := c.payments.Start(context.Background(), c.placed.ID, payment.Method(method), "")
	c.payErr = err
	if err == nil {
		c.payment = p
	}
	return nil
}

func (c *mallTestContext) simulate(paid bool) error {
	if c.payment == nil {
		return errors.New("no payment started")
	}
	p, err := c.payments.Simulate(context.Background(), c.payment.ID, paid)
	if err != nil {
		return err
	}
	c.payment = p
	return nil
}

func (c *mallTestContext) theGatewayRejects() error   { return c.simulate(false) }
func (c *mallTestContext) theGatewayAuthorizes() error { return c.simulate(true) }

func (c *mallTestContext) theStoreConfirmsThePayment() error {
	if c.payment == nil {
		return errors.New("no payment started")
	}
	p, err := c.payments.MarkPaid(context.Background(), c.payment.ID)
	if err != nil {
		return err
	}
	c.payment = p
	return nil
}

func (c *mallTestContext) theStoreMarksThePaymentFailed() error {
	if c.payment == nil {
		return errors.New("no payment started")
	}
	_, c.payErr = c.payments.MarkFailed(context.Background(), c.payment.ID, "not received")
	return nil
}

// Then steps

func (c *mallTestContext) theCartSubtotalIs(want int) error {
	t, err := c.totals()
	if err != nil {
		return err
	}
	return expectAmount("subtotal", t.Subtotal, want)
}

func (c *mallTestContext) theCartShippingIs(want int) error {
	t, err := c.totals()
	if err != nil {
		return err
	}
	return expectAmount("shipping", t.Shipping, want)
}

func (c *mallTestContext) theCartDiscountIs(want int) error {
	t, err := c.totals()
	if err != nil {
		return err
	}
	return expectAmount("discount", t.Discount, want)
}

func (c *mallTestContext) theCartTotalIs(want int) error {
	t, err := c.totals()
	if err != nil {
		return err
	}
	return expectAmount("total", t.Total, want)
}

func (c *mallTestContext) theCouponIsAccepted() error {
	if c.couponErr != nil {
		return fmt.Errorf("expected coupon to be accepted, got %v", c.couponErr)
	}
	return nil
}

func (c *mallTestContext) theCouponIsRejectedBecause(reason string) error {
	if c.couponErr == nil {
		return errors.New("expected coupon to be rejected")
	}
	if !strings.Contains(c.couponErr.Error(), reason) {
		return fmt.Errorf("expected rejection %q, got %q", reason, c.couponErr.Error())
	}
	return nil
}

func (c *mallTestContext) theCartIsEmpty() error {
	t, err := c.totals()
	if err != nil {
		return err
	}
	if !t.IsEmpty() || len(t.Stale) > 0 {
		return fmt.Errorf("expected empty cart, got %d lines and %d stale", len(t.Lines), len(t.Stale))
	}
	return nil
}

func (c *mallTestContext) theCartHasNoCoupon() error {
	crt, err := c.carts.Get(context.Background(), c.session)
	if err != nil {
		return err
	}
	if crt.CouponCode != "" {
		return fmt.Errorf("expected no coupon, got %q", crt.CouponCode)
	}
	return nil
}

func (c *mallTestContext) theCartHasStaleLine(n int, productID int64) error {
	t, err := c.totals()
	if err != nil {
		return err
	}
	if len(t.Stale) != n {
		return fmt.Errorf("expected %d stale lines, got %d", n, len(t.Stale))
	}
	for _, s := range t.Stale {
		if s.ProductID == productID {
			return nil
		}
	}
	return fmt.Errorf("product %d is not stale", productID)
}

func (c *mallTestContext) totalEqualsFormula() error {
	t, err := c.totals()
	if err != nil {
		return err
	}
	want := t.Subtotal.Sub(t.Discount).Add(t.Shipping)
	if !t.Total.Equal(want) {
		return fmt.Errorf("total %s != %s - %s + %s", t.Total, t.Subtotal, t.Discount, t.Shipping)
	}
	return nil
}

func (c *mallTestContext) storeTotalsAddUp() error {
	t, err := c.totals()
	if err != nil {
		return err
	}
	sum, discount := decimal.Zero, decimal.Zero
	for _, s := range t.Stores {
		sum = sum.Add(s.Total)
		discount = discount.Add(s.Discount)
	}
	if !sum.Equal(t.Total) {
		return fmt.Errorf("store totals sum to %s, cart total is %s", sum, t.Total)
	}
	if !discount.Equal(t.Discount) {
		return fmt.Errorf("store discounts sum to %s, cart discount is %s", discount, t.Discount)
	}
	return nil
}

func (c *mallTestContext) checkoutFailsOnField(field string) error {
	var verr *checkout.ValidationError
	if !errors.As(c.orderErr, &verr) {
		return fmt.Errorf("expected validation error, got %v", c.orderErr)
	}
	if _, ok := verr.Fields[field]; !ok {
		return fmt.Errorf("expected field %q in %v", field, verr.Fields)
	}
	return nil
}

func (c *mallTestContext) checkoutFailsEmptyCart() error {
	if !errors.Is(c.orderErr, checkout.ErrEmptyCart) {
		return fmt.Errorf("expected empty cart error, got %v", c.orderErr)
	}
	return nil
}

func (c *mallTestContext) theSessionHasOrders(n int) error {
	list, err := c.orders.ListBySession(context.Background(), c.session)
	if err != nil {
		return err
	}
	if len(list) != n {
		return fmt.Errorf("expected %d orders, got %d", n, len(list))
	}
	return nil
}

func (c *mallTestContext) productHasStock(productID int64, want int) error {
	p, err := c.store.GetProduct(context.Background(), productID)
	if err != nil {
		return err
	}
	if p.StockQuantity != want {
		return fmt.Errorf("expected stock %d, got %d", want, p.StockQuantity)
	}
	return nil
}

func (c *mallTestContext) theOrderTotalIs(want int) error {
	if c.orderErr != nil {
		return fmt.Errorf("place order: %w", c.orderErr)
	}
	return expectAmount("order total", c.placed.Total, want)
}

func (c *mallTestContext) theOrderHasDeliveryGroups(n int) error {
	if c.placed == nil {
		return errors.New("no order placed")
	}
	if len(c.placed.DeliveryGroups) != n {
		return fmt.Errorf("expected %d delivery groups, got %d", n, len(c.placed.DeliveryGroups))
	}
	return nil
}

func (c *mallTestContext) thePaymentStatusIs(status string) error {
	if c.payment == nil {
		return errors.New("no payment started")
	}
	if string(c.payment.Status) != status {
		return fmt.Errorf("expected payment %s, got %s", status, c.payment.Status)
	}
	return nil
}

func (c *mallTestContext) currentOrder() (*order.Order, error) {
	o, err := c.orders.GetByID(context.Background(), c.placed.ID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (c *mallTestContext) theOrderStatusIs(status string) error {
	o, err := c.currentOrder()
	if err != nil {
		return err
	}
	if string(o.Status) != status {
		return fmt.Errorf("expected order %s, got %s", status, o.Status)
	}
	return nil
}

func (c *mallTestContext) theOrderPaymentStatusIs(status string) error {
	o, err := c.currentOrder()
	if err != nil {
		return err
	}
	if o.PaymentStatus != status {
		return fmt.Errorf("expected order payment status %s, got %s", status, o.PaymentStatus)
	}
	return nil
}

func (c *mallTestContext) thePaymentReferenceStartsWith(prefix string) error {
	if c.payErr != nil {
		return fmt.Errorf("start payment: %w", c.payErr)
	}
	if !strings.HasPrefix(c.payment.ExternalReference, prefix) {
		return fmt.Errorf("expected reference with %q, got %q", prefix, c.payment.ExternalReference)
	}
	return nil
}

func (c *mallTestContext) theOrderHasPaymentAttempts(n int) error {
	list, err := c.payments.List(context.Background(), c.placed.ID)
	if err != nil {
		return err
	}
	if len(list) != n {
		return fmt.Errorf("expected %d attempts, got %d", n, len(list))
	}
	return nil
}

func (c *mallTestContext) currentPaymentIsLatest() error {
	o, err := c.currentOrder()
	if err != nil {
		return err
	}
	if o.CurrentPaymentID != c.payment.ID {
		return fmt.Errorf("expected current payment %s, got %s", c.payment.ID, o.CurrentPaymentID)
	}
	return nil
}

func (c *mallTestContext) paymentRefusedAlreadyPaid() error {
	if !errors.Is(c.payErr, payment.ErrAlreadyPaid) {
		return fmt.Errorf("expected already paid, got %v", c.payErr)
	}
	return nil
}

func (c *mallTestContext) paymentChangeRefusedTerminal() error {
	if !errors.Is(c.payErr, payment.ErrTerminal) {
		return fmt.Errorf("expected terminal payment error, got %v", c.payErr)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &mallTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the demo mall$`, tc.theDemoMall)
	ctx.Step(`^a shopper with session "([^"]*)"$`, tc.aShopperWithSession)
	ctx.Step(`^the shopper has placed an order for (\d+) of product (\d+)$`, tc.theShopperHasPlacedAnOrder)
	ctx.Step(`^product (\d+) is removed from the catalog$`, tc.productIsRemoved)

	// When steps
	ctx.Step(`^the shopper adds (\d+) of product (\d+)$`, tc.theShopperAdds)
	ctx.Step(`^the shopper applies coupon "([^"]*)"$`, tc.theShopperAppliesCoupon)
	ctx.Step(`^the shopper selects shipping method (\d+) for product (\d+)$`, tc.theShopperSelectsShipping)
	ctx.Step(`^the shopper clears the cart$`, tc.theShopperClearsTheCart)
	ctx.Step(`^the shopper checks out with email "([^"]*)"$`, tc.theShopperChecksOutWithEmail)
	ctx.Step(`^the shopper pays with "([^"]*)"$`, tc.theShopperPaysWith)
	ctx.Step(`^the gateway rejects the payment$`, tc.theGatewayRejects)
	ctx.Step(`^the gateway authorizes the payment$`, tc.theGatewayAuthorizes)
	ctx.Step(`^the store confirms the payment$`, tc.theStoreConfirmsThePayment)
	ctx.Step(`^the store marks the payment as failed$`, tc.theStoreMarksThePaymentFailed)

	// Then steps
	ctx.Step(`^the cart subtotal is (\d+)$`, tc.theCartSubtotalIs)
	ctx.Step(`^the cart shipping is (\d+)$`, tc.theCartShippingIs)
	ctx.Step(`^the cart discount is (\d+)$`, tc.theCartDiscountIs)
	ctx.Step(`^the cart total is (\d+)$`, tc.theCartTotalIs)
	ctx.Step(`^the coupon is accepted$`, tc.theCouponIsAccepted)
	ctx.Step(`^the coupon is rejected because "([^"]*)"$`, tc.theCouponIsRejectedBecause)
	ctx.Step(`^the cart is empty$`, tc.theCartIsEmpty)
	ctx.Step(`^the cart has no coupon$`, tc.theCartHasNoCoupon)
	ctx.Step(`^the cart has (\d+) stale line for product (\d+)$`, tc.theCartHasStaleLine)
	ctx.Step(`^the cart total equals subtotal minus discount plus shipping$`, tc.totalEqualsFormula)
	ctx.Step(`^the store totals add up to the cart total$`, tc.storeTotalsAddUp)
	ctx.Step(`^checkout fails on field "([^"]*)"$`, tc.checkoutFailsOnField)
	ctx.Step(`^checkout fails because the cart is empty$`, tc.checkoutFailsEmptyCart)
	ctx.Step(`^the session has (\d+) orders$`, tc.theSessionHasOrders)
	ctx.Step(`^product (\d+) has (\d+) in stock$`, tc.productHasStock)
	ctx.Step(`^the order total is (\d+)$`, tc.theOrderTotalIs)
	ctx.Step(`^the order has (\d+) delivery group$`, tc.theOrderHasDeliveryGroups)
	ctx.Step(`^the payment status is "([^"]*)"$`, tc.thePaymentStatusIs)
	ctx.Step(`^the order status is "([^"]*)"$`, tc.theOrderStatusIs)
	ctx.Step(`^the order payment status is "([^"]*)"$`, tc.theOrderPaymentStatusIs)
	ctx.Step(`^the payment reference starts with "([^"]*)"$`, tc.thePaymentReferenceStartsWith)
	ctx.Step(`^the order has (\d+) payment attempts$`, tc.theOrderHasPaymentAttempts)
	ctx.Step(`^the order's current payment is the latest attempt$`, tc.currentPaymentIsLatest)
	ctx.Step(`^the payment is refused because the order is already paid$`, tc.paymentRefusedAlreadyPaid)
	ctx.Step(`^the payment change is refused as terminal$`, tc.paymentChangeRefusedTerminal)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
