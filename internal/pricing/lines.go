package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/antonio-torres-castro/comercial-elroblev2-sub000/internal/catalog"
)

type StaleReason string

const (
	ReasonNotFound StaleReason = "not_found"
	ReasonInactive StaleReason = "inactive"
)

// LineResult is either a Resolved or a Stale cart line.
type LineResult interface {
	lineProductID() int64
}

// Resolved is a cart line whose product still exists and is active.
type Resolved struct {
	Product         catalog.Product `json:"product"`
	Store           catalog.Store   `json:"store"`
	Quantity        int             `json:"quantity"`
	Shipping        Shipping        `json:"shipping"`
	DeliveryAddress string          `json:"deliveryAddress,omitempty"`
	DeliveryCity    string          `json:"deliveryCity,omitempty"`
	LineSubtotal    decimal.Decimal `json:"lineSubtotal"`
}

func (r Resolved) lineProductID() int64 { return r.Product.ID }

// Stale is a cart line pointing at a product that was removed or deactivated.
type Stale struct {
	ProductID int64       `json:"productId"`
	Quantity  int         `json:"quantity"`
	Reason    StaleReason `json:"reason"`
}

func (s Stale) lineProductID() int64 { return s.ProductID }

type Shipping struct {
	MethodID int64           `json:"methodId,omitempty"`
	Name     string          `json:"name,omitempty"`
	Cost     decimal.Decimal `json:"cost"`
	// Defaulted is set when the cart did not name a valid method for the product.
	Defaulted bool `json:"defaulted"`
}

// SelectShipping resolves the shipping charge for one cart line. The chosen
// method wins when it belongs to the product; otherwise the cheapest one is
// used. A product without methods ships for free.
func SelectShipping(methods []catalog.ShippingMethod, chosenID int64) Shipping {
	if len(methods) == 0 {
		return Shipping{Cost: decimal.Zero, Defaulted: chosenID != 0}
	}

	cheapest := methods[0]
	for _, m := range methods {
		if chosenID != 0 && m.ID == chosenID {
			return Shipping{MethodID: m.ID, Name: m.Name, Cost: m.Cost}
		}
		if m.Cost.LessThan(cheapest.Cost) {
			cheapest = m
		}
	}
	return Shipping{MethodID: cheapest.ID, Name: cheapest.Name, Cost: cheapest.Cost, Defaulted: true}
}
