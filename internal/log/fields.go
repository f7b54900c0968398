package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldExpenseID   = "expense_id"
	FieldCategory    = "category"
	FieldCurrency    = "currency"
	FieldAmountCents = "amount_cents"
	FieldModel       = "model"
	FieldAttempt     = "attempt"
	FieldChatID      = "chat_id"
	FieldSheetRange  = "sheet_range"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentExtraction = "extraction"
	ComponentSummary    = "summary"
	ComponentStorage    = "storage"
	ComponentLLM        = "llm"
	ComponentSpeech     = "speech"
	ComponentOCR        = "ocr"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentSheets     = "sheets"
	ComponentBot        = "bot"
	ComponentCache      = "cache"
)
