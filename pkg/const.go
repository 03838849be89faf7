package pkg

const (
	HeaderTraceId    string = "X-Trace-Id"
	HeaderSignature  string = "X-Signature"
	HeaderRetryAfter string = "Retry-After"
)

const (
	TraceId  string = "trace_id"
	ClientIP string = "client_ip"
)

// OrderStatus tracks a pending order through the retry queue.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusSynced  OrderStatus = "synced"
	OrderStatusFailed  OrderStatus = "failed"
)

type OrderType string

const (
	OrderTypeDelivery OrderType = "delivery"
	OrderTypePickup   OrderType = "pickup"
)
