package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Delivery struct {
	Address string `json:"address"`
	City    string `json:"city"`
	Notes   string `json:"notes,omitempty"`
}

type Item struct {
	ProductID        int64           `json:"productId"`
	StoreID          int64           `json:"storeId"`
	Name             string          `json:"name"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	ShippingMethodID int64           `json:"shippingMethodId,omitempty"`
	ShippingCost     decimal.Decimal `json:"shippingCost"`
	DeliveryGroupID  string          `json:"deliveryGroupId"`
}

// DeliveryGroup is one shipment: the items of a single store going to a single address.
type DeliveryGroup struct {
	ID       string          `json:"id"`
	StoreID  int64           `json:"storeId"`
	Address  string          `json:"address"`
	City     string          `json:"city"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
}

type Order struct {
	ID             string          `json:"orderId"`
	SessionID      string          `json:"-"`
	Customer       Customer        `json:"customer"`
	Delivery       Delivery        `json:"delivery"`
	Items          []Item          `json:"items"`
	DeliveryGroups []DeliveryGroup `json:"deliveryGroups"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	Discount       decimal.Decimal `json:"discount"`
	Shipping       decimal.Decimal `json:"shipping"`
	Total          decimal.Decimal `json:"total"`
	CouponCode     string          `json:"couponCode,omitempty"`
	Status         Status          `json:"status"`
	// CurrentPaymentID points at the latest payment attempt; PaymentStatus is its status.
	CurrentPaymentID string    `json:"currentPaymentId,omitempty"`
	PaymentStatus    string    `json:"paymentStatus,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// IsPaid reports whether the current payment attempt has settled.
func (o Order) IsPaid() bool {
	return o.PaymentStatus == "paid"
}
