package orders

import "strconv"

const (
	TopicUpdates     = "bot.updates"
	TopicOutbound    = "bot.outbound"
	TopicOrderEvents = "order.events"
)

// Partition key = order_id, supaya semua event 1 order maintain urutan.
func PartitionKey(orderID int64) []byte { return []byte(strconv.FormatInt(orderID, 10)) }

// ChatKey partitions chat traffic so one chat is always handled by one worker.
func ChatKey(chatID int64) []byte { return []byte(strconv.FormatInt(chatID, 10)) }
