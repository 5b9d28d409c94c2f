package payment

// Outcome is the provider state reduced to what local reconciliation acts on.
type Outcome string

const (
	OutcomePaid    Outcome = "paid"
	OutcomeExpired Outcome = "expired"
	OutcomeFailed  Outcome = "failed"
	OutcomePending Outcome = "pending"
)

// Normalize maps a provider session (and, for webhooks, the event type) to an
// Outcome. A captured payment wins over every other signal.
func Normalize(s *Session, eventType string) Outcome {
	if s == nil {
		return OutcomePending
	}
	switch {
	case s.PaymentStatus == PaymentPaid:
		return OutcomePaid
	case s.Status == SessionExpired || eventType == EventSessionExpired:
		return OutcomeExpired
	case eventType == EventAsyncPaymentFailed:
		return OutcomeFailed
	}
	return OutcomePending
}
