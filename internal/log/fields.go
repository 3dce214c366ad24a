package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldRequestID    = "request_id"
	FieldClientIP     = "client_ip"
	FieldMethod       = "method"
	FieldPath         = "path"
	FieldStatusCode   = "status_code"
	FieldDuration     = "duration_ms"
	FieldError        = "error"
	FieldOperation    = "operation"
	FieldSubscription = "subscription_id"
	FieldReceipt      = "receipt_id"
	FieldName         = "name"
	FieldCategory     = "category"
	FieldPriceCents   = "price_cents"
	FieldCurrency     = "currency"
	FieldCycle        = "billing_cycle"
	FieldStatus       = "status"
	FieldStorageKey   = "storage_key"
	FieldQueue        = "queue"
	FieldExchange     = "exchange"
)

// Components defines standard component names
const (
	ComponentApp           = "app"
	ComponentHTTP          = "http"
	ComponentSubscriptions = "subscriptions"
	ComponentReceipts      = "receipts"
	ComponentStorage       = "storage"
	ComponentAMQP          = "amqp"
	ComponentBlob          = "blob"
	ComponentHub           = "hub"
	ComponentBackup        = "backup"
	ComponentReminder      = "reminder"
	ComponentWorker        = "worker"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpUpload   = "upload"
	OpConfirm  = "confirm"
	OpReject   = "reject"
	OpSync     = "sync"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
