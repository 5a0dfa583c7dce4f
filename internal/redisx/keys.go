package redisx

import "time"

const (
	// Conversation Session per customer: session:conv:{customer_id} -> JSON
	KeyConversation = "session:conv:%d"

	// Admin Reply Context per operator chat: session:reply:{chat_id} -> JSON
	KeyReplyContext = "session:reply:%d"

	// Cache status order: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%d"

	// Bumped on every invalidation of order_status:{order_id}
	KeyOrderStatusGen = "order_status_gen:%d"

	// Dedup inbound update: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLStatusGen   = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
)
