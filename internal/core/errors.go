package core

// Error codes for domain errors.
const (
	ErrCodeBadRequest        = "bad_request"
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeAlreadyIdentified = "already_identified"
	ErrCodeNotParticipant    = "not_participant"
	ErrCodeStorage           = "storage_error"
	ErrCodeClosed            = "connection_closed"
	ErrCodeInternal          = "internal_error"
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
