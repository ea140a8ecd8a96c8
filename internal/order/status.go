package order

type Status string

const (
	// StatusCreated is the only state an order reaches on checkout. Payment
	// progress is tracked on payment attempts, not on the order.
	StatusCreated   Status = "created"
	StatusCancelled Status = "cancelled"
)
