package errors

// Error codes for standardized error responses
const (
	// Validation errors
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeInvalidPayload = "invalid_payload"
	ErrCodeMissingField   = "missing_field"

	// Resource errors
	ErrCodeNotFound      = "not_found"
	ErrCodeAlreadyExists = "already_exists"

	// Session errors
	ErrCodeSessionNotFound       = "session_not_found"
	ErrCodeSessionCreateFailed   = "session_create_failed"
	ErrCodeSessionAlreadyStarted = "session_already_started"
	ErrCodeSessionFull           = "session_full"
	ErrCodeJoinFailed            = "join_failed"
	ErrCodeNotSessionHost        = "not_session_host"
	ErrCodeNotInSession          = "not_in_session"
	ErrCodeSubmitFailed          = "submit_failed"
	ErrCodeBuzzFailed            = "buzz_failed"

	// WebSocket errors
	ErrCodeUnknownMessageType = "unknown_message_type"
	ErrCodeConnectionError    = "connection_error"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
)
