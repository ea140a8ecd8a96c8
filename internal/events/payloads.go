package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventTypeOrderCreated     = "OrderCreated"
	EventTypePaymentSucceeded = "PaymentSucceeded"
	EventTypePaymentFailed    = "PaymentFailed"
	EventTypeGatewayResult    = "PaymentGatewayResult"

	orderCreatedSchema     = "mall.order.created.v1"
	paymentSucceededSchema = "mall.payment.succeeded.v1"
	paymentFailedSchema    = "mall.payment.failed.v1"
)

type OrderLine struct {
	ProductID int64           `json:"productId"`
	StoreID   int64           `json:"storeId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type OrderCreatedPayload struct {
	OrderID    string          `json:"orderId"`
	Email      string          `json:"customerEmail"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Shipping   decimal.Decimal `json:"shipping"`
	Total      decimal.Decimal `json:"total"`
	CouponCode string          `json:"couponCode,omitempty"`
	Items      []OrderLine     `json:"items"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type PaymentPayload struct {
	PaymentID string          `json:"paymentId"`
	OrderID   string          `json:"orderId"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Reason    string          `json:"reason,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// GatewayResult is relayed by the webhook receiver in front of the payment
// provider. Status is "paid" or "failed".
type GatewayResult struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
}
