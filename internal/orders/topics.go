package orders

import "strconv"

const TopicInventoryEvents = "order.inventory.events"

// Partition key = product_id, so stock changes of one product stay ordered per partition.
func PartitionKey(productID int64) []byte { return []byte(strconv.FormatInt(productID, 10)) }

// ResetKey groups reset events on one partition.
func ResetKey() []byte { return []byte("inventory-reset") }
