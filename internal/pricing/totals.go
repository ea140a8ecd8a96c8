package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/cart"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/catalog"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/coupon"
)

// Catalog is the subset of catalog.Repository the aggregator reads.
type Catalog interface {
	GetProduct(ctx context.Context, productID int64) (catalog.Product, error)
	GetStore(ctx context.Context, storeID int64) (catalog.Store, error)
	ListShippingMethods(ctx context.Context, productID int64) ([]catalog.ShippingMethod, error)
}

type CouponResolver interface {
	Resolve(ctx context.Context, code string, subtotal decimal.Decimal) (coupon.Applied, error)
}

type StoreTotals struct {
	StoreID   int64           `json:"storeId"`
	StoreName string          `json:"storeName"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Discount  decimal.Decimal `json:"discount"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
}

type Totals struct {
	SessionID   string          `json:"sessionId"`
	Lines       []Resolved      `json:"lines"`
	Stale       []Stale         `json:"staleLines"`
	Stores      []StoreTotals   `json:"stores"`
	ItemCount   int             `json:"itemCount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Discount    decimal.Decimal `json:"discount"`
	Shipping    decimal.Decimal `json:"shipping"`
	Total       decimal.Decimal `json:"total"`
	CouponCode  string          `json:"couponCode,omitempty"`
	Coupon      *coupon.Applied `json:"coupon,omitempty"`
	CouponError string          `json:"couponError,omitempty"`
}

func (t Totals) IsEmpty() bool {
	return len(t.Lines) == 0
}

// StaleProductIDs lists the product ids of lines that could not be resolved.
func (t Totals) StaleProductIDs() []int64 {
	ids := make([]int64, 0, len(t.Stale))
	for _, s := range t.Stale {
		ids = append(ids, s.ProductID)
	}
	return ids
}

// computeTotal is the only place a grand total is derived.
func computeTotal(subtotal, discount, shipping decimal.Decimal) decimal.Decimal {
	return subtotal.Sub(discount).Add(shipping)
}

type Aggregator struct {
	catalog     Catalog
	coupons     CouponResolver
	concurrency int
}

func NewAggregator(c Catalog, coupons CouponResolver, concurrency int) *Aggregator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Aggregator{catalog: c, coupons: coupons, concurrency: concurrency}
}

// Resolve looks up every cart line against the catalog, preserving cart order.
func (a *Aggregator) Resolve(ctx context.Context, c cart.Cart) ([]LineResult, error) {
	results := make([]LineResult, len(c.Items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for i, item := range c.Items {
		i, item := i, item
		g.Go(func() error {
			res, err := a.resolveLine(gctx, item)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := a.attachStores(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *Aggregator) resolveLine(ctx context.Context, item cart.Item) (LineResult, error) {
	p, err := a.catalog.GetProduct(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Stale{ProductID: item.ProductID, Quantity: item.Quantity, Reason: ReasonNotFound}, nil
		}
		return nil, fmt.Errorf("product %d: %w", item.ProductID, err)
	}
	if !p.Active {
		return Stale{ProductID: item.ProductID, Quantity: item.Quantity, Reason: ReasonInactive}, nil
	}

	methods, err := a.catalog.ListShippingMethods(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("shipping for product %d: %w", p.ID, err)
	}

	return Resolved{
		Product:         p,
		Store:           catalog.Store{ID: p.StoreID},
		Quantity:        item.Quantity,
		Shipping:        SelectShipping(methods, item.ShippingMethodID),
		DeliveryAddress: item.DeliveryAddress,
		DeliveryCity:    item.DeliveryCity,
		LineSubtotal:    p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))),
	}, nil
}

func (a *Aggregator) attachStores(ctx context.Context, results []LineResult) error {
	stores := make(map[int64]catalog.Store)
	for _, r := range results {
		line, ok := r.(Resolved)
		if !ok {
			continue
		}
		if _, seen := stores[line.Product.StoreID]; seen {
			continue
		}
		s, err := a.catalog.GetStore(ctx, line.Product.StoreID)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			s = catalog.Store{ID: line.Product.StoreID}
		case err != nil:
			return fmt.Errorf("store %d: %w", line.Product.StoreID, err)
		}
		stores[line.Product.StoreID] = s
	}

	for i, r := range results {
		if line, ok := r.(Resolved); ok {
			line.Store = stores[line.Product.StoreID]
			results[i] = line
		}
	}
	return nil
}

// Totals prices the cart. A coupon that no longer validates does not fail the
// computation; the discount is zero and CouponError explains why.
func (a *Aggregator) Totals(ctx context.Context, c cart.Cart) (Totals, error) {
	results, err := a.Resolve(ctx, c)
	if err != nil {
		return Totals{}, err
	}

	t := Totals{
		SessionID:  c.SessionID,
		Lines:      []Resolved{},
		Stale:      []Stale{},
		Subtotal:   decimal.Zero,
		Discount:   decimal.Zero,
		Shipping:   decimal.Zero,
		CouponCode: c.CouponCode,
	}

	for _, r := range results {
		switch line := r.(type) {
		case Resolved:
			t.Lines = append(t.Lines, line)
			t.ItemCount += line.Quantity
			t.Subtotal = t.Subtotal.Add(line.LineSubtotal)
			t.Shipping = t.Shipping.Add(line.Shipping.Cost)
		case Stale:
			t.Stale = append(t.Stale, line)
		}
	}

	if c.CouponCode != "" && a.coupons != nil && !t.IsEmpty() {
		applied, err := a.coupons.Resolve(ctx, c.CouponCode, t.Subtotal)
		switch {
		case err == nil:
			t.Coupon = &applied
			t.Discount = applied.Discount
		case coupon.IsRejection(err):
			t.CouponError = err.Error()
		default:
			return Totals{}, fmt.Errorf("resolve coupon: %w", err)
		}
	}

	t.Total = computeTotal(t.Subtotal, t.Discount, t.Shipping)
	t.Stores = breakdown(t.Lines, t.Subtotal, t.Discount)
	return t, nil
}

// breakdown groups lines by store in order of first appearance and splits the
// cart discount by subtotal share. The last store absorbs rounding so the
// store discounts add up to the cart discount.
func breakdown(lines []Resolved, subtotal, discount decimal.Decimal) []StoreTotals {
	var (
		out   []StoreTotals
		index = make(map[int64]int)
	)
	for _, l := range lines {
		i, ok := index[l.Product.StoreID]
		if !ok {
			i = len(out)
			index[l.Product.StoreID] = i
			out = append(out, StoreTotals{
				StoreID:   l.Product.StoreID,
				StoreName: l.Store.Name,
				Subtotal:  decimal.Zero,
				Discount:  decimal.Zero,
				Shipping:  decimal.Zero,
			})
		}
		out[i].Subtotal = out[i].Subtotal.Add(l.LineSubtotal)
		out[i].Shipping = out[i].Shipping.Add(l.Shipping.Cost)
	}

	if discount.IsPositive() && subtotal.IsPositive() {
		remaining := discount
		for i := range out {
			if i == len(out)-1 {
				out[i].Discount = remaining
				break
			}
			share := discount.Mul(out[i].Subtotal).Div(subtotal).Round(2)
			out[i].Discount = share
			remaining = remaining.Sub(share)
		}
	}

	for i := range out {
		out[i].Total = computeTotal(out[i].Subtotal, out[i].Discount, out[i].Shipping)
	}
	return out
}
