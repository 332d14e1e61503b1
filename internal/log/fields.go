package log

// Common field names for structured logging
const (
	FieldComponent = "component"
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldOperation = "operation"
	FieldKey       = "cache_key"
	FieldResource  = "resource"
	FieldYear      = "year"
	FieldMonth     = "month"
)

// Standard component names
const (
	ComponentApp      = "app"
	ComponentAPI      = "api"
	ComponentQuery    = "query"
	ComponentServices = "services"
	ComponentEvents   = "events"
	ComponentExport   = "export"
	ComponentStubAPI  = "stubapi"
)
