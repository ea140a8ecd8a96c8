package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Method string

const (
	MethodTransfer  Method = "transfer"
	MethodCash      Method = "cash"
	MethodTransbank Method = "transbank"
)

func ParseMethod(v string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(v))); m {
	case MethodTransfer, MethodCash, MethodTransbank:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMethod, v)
	}
}

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Payment is one attempt to settle an order. Retries are new rows.
type Payment struct {
	ID      string          `json:"paymentId"`
	OrderID string          `json:"orderId"`
	Method  Method          `json:"method"`
	Amount  decimal.Decimal `json:"amount"`
	Status  Status          `json:"status"`
	// ExternalReference is the transfer reference code or the gateway token.
	ExternalReference string    `json:"externalReference,omitempty"`
	PickupLocation    string    `json:"pickupLocation,omitempty"`
	RedirectURL       string    `json:"redirectUrl,omitempty"`
	FailureReason     string    `json:"failureReason,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (p Payment) Terminal() bool {
	return p.Status == StatusPaid || p.Status == StatusFailed
}
