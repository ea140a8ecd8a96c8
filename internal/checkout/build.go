package checkout

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/order"
	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/pricing"
)

type groupKey struct {
	storeID int64
	address string
	city    string
}

// buildOrder snapshots priced cart lines into an order. Lines without their
// own delivery address ship to the checkout address; lines are grouped into
// one delivery group per store and destination.
func buildOrder(sessionID string, f Form, t pricing.Totals) *order.Order {
	o := &order.Order{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Customer: order.Customer{
			Name:  f.CustomerName,
			Email: f.CustomerEmail,
			Phone: f.CustomerPhone,
		},
		Delivery: order.Delivery{
			Address: f.DeliveryAddress,
			City:    f.DeliveryCity,
			Notes:   f.Notes,
		},
		Subtotal: t.Subtotal,
		Discount: t.Discount,
		Shipping: t.Shipping,
		Total:    t.Total,
		Status:   order.StatusCreated,
	}
	if t.Coupon != nil {
		o.CouponCode = t.Coupon.Code
	}

	groups := make(map[groupKey]int)
	for _, line := range t.Lines {
		key := groupKey{storeID: line.Product.StoreID, address: line.DeliveryAddress, city: line.DeliveryCity}
		if key.address == "" {
			key.address, key.city = f.DeliveryAddress, f.DeliveryCity
		}

		gi, ok := groups[key]
		if !ok {
			gi = len(o.DeliveryGroups)
			groups[key] = gi
			o.DeliveryGroups = append(o.DeliveryGroups, order.DeliveryGroup{
				ID:       uuid.NewString(),
				StoreID:  key.storeID,
				Address:  key.address,
				City:     key.city,
				Subtotal: decimal.Zero,
				Shipping: decimal.Zero,
			})
		}
		g := &o.DeliveryGroups[gi]
		g.Subtotal = g.Subtotal.Add(line.LineSubtotal)
		g.Shipping = g.Shipping.Add(line.Shipping.Cost)

		o.Items = append(o.Items, order.Item{
			ProductID:        line.Product.ID,
			StoreID:          line.Product.StoreID,
			Name:             line.Product.Name,
			Quantity:         line.Quantity,
			UnitPrice:        line.Product.Price,
			ShippingMethodID: line.Shipping.MethodID,
			ShippingCost:     line.Shipping.Cost,
			DeliveryGroupID:  g.ID,
		})
	}
	return o
}
