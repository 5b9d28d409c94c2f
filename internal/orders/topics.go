package orders

const (
	TopicPaymentCompleted = "checkout.payment.completed"
	TopicCheckoutExpired  = "checkout.session.expired"
	TopicStockDiscrepancy = "inventory.stock.discrepancy"
)

// Partition key = session_id so every event of one checkout keeps its order.
func PartitionKey(sessionID string) []byte { return []byte(sessionID) }
