package orders

const (
	TopicOrderCreated = "order.created"
	TopicStockLow     = "stock.low"
)

// Partition key = seller_id, so every notification for one seller keeps its order.
func PartitionKey(sellerID string) []byte { return []byte(sellerID) }
