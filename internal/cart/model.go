package cart

import "time"

type Item struct {
	ProductID        int64  `json:"productId"`
	Quantity         int    `json:"quantity"`
	ShippingMethodID int64  `json:"shippingMethodId,omitempty"`
	DeliveryAddress  string `json:"deliveryAddress,omitempty"`
	DeliveryCity     string `json:"deliveryCity,omitempty"`
}

// Cart is a value snapshot of a session's cart. Services never hand out
// shared references; mutate through Service and use the returned copy.
type Cart struct {
	ID         string    `json:"cartId"`
	SessionID  string    `json:"sessionId"`
	Items      []Item    `json:"items"`
	CouponCode string    `json:"couponCode,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (c Cart) clone() Cart {
	cp := c
	cp.Items = append([]Item(nil), c.Items...)
	return cp
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) indexOf(productID int64) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c Cart) Quantity(productID int64) int {
	if i := c.indexOf(productID); i >= 0 {
		return c.Items[i].Quantity
	}
	return 0
}
