package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code, so wrapped or
// re-messaged errors still satisfy errors.Is against the sentinels below.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes
const (
	CodeNotFound             = "NOT_FOUND"
	CodeStreamAlreadyExists  = "STREAM_ALREADY_EXISTS"
	CodeConcurrencyConflict  = "CONCURRENCY_CONFLICT"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeUnknownMessageKind   = "UNKNOWN_MESSAGE_KIND"
	CodeTransportUnavailable = "TRANSPORT_UNAVAILABLE"
)

// Common domain errors
var (
	ErrNotFound             = NewDomainError(CodeNotFound, "Stream not found")
	ErrStreamAlreadyExists  = NewDomainError(CodeStreamAlreadyExists, "Stream already exists")
	ErrConcurrencyConflict  = NewDomainError(CodeConcurrencyConflict, "Stream was modified by another writer")
	ErrInvalidTransition    = NewDomainError(CodeInvalidTransition, "Operation not allowed in current state")
	ErrInvalidInput         = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrUnknownMessageKind   = NewDomainError(CodeUnknownMessageKind, "No message constructor registered for event kind")
	ErrTransportUnavailable = NewDomainError(CodeTransportUnavailable, "Message transport is not accepting messages")
)
