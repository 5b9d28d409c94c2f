package orders

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentPaid      PaymentStatus = "paid"
	PaymentExpired   PaymentStatus = "expired"
	PaymentFailed    PaymentStatus = "failed"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Paid is terminal. A captured payment is applied even after the session was
// recorded as expired or failed, because the provider has already taken the money.
var validNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentInitiated: {PaymentPaid: true, PaymentExpired: true, PaymentFailed: true},
	PaymentPaid:      {},
	PaymentExpired:   {PaymentPaid: true},
	PaymentFailed:    {PaymentPaid: true, PaymentExpired: true},
}

// CanTransition mirrors the WHERE clause of Repo.transition.
func CanTransition(from, to PaymentStatus) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusShipped, StatusDelivered, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Fulfilment reports whether an admin may set s on a paid order.
func (s Status) Fulfilment() bool {
	switch s {
	case StatusCompleted, StatusShipped, StatusDelivered:
		return true
	}
	return false
}
