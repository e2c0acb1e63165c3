package orders

import "strconv"

const (
	TopicOrderCreated      = "workshop.order.created"
	TopicOrderStateChanged = "workshop.order.state_changed"
	TopicOrderInvoiced     = "workshop.order.invoiced"
	TopicStockChanged      = "workshop.stock.changed"
)

// Partition key = entity id, so events of one order (or part) keep their order.
func PartitionKey(id int64) []byte { return []byte(strconv.FormatInt(id, 10)) }
