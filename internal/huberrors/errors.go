// Package huberrors defines the domain errors that handlers map to HTTP statuses.
// Compare with errors.Is against ErrNotFound or ErrValidation; the message and subject
// of the concrete error do not take part in the comparison.
package huberrors

// Kind classifies a domain error.
type Kind uint8

const (
	KindNotFound Kind = iota + 1
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindValidation:
		return "validation error"
	default:
		return "error"
	}
}

// Error is a domain error. Subject names the resource (not found) or the field (validation).
type Error struct {
	Kind    Kind
	Subject string
	Message string
}

// Sentinels for errors.Is.
var (
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrValidation = &Error{Kind: KindValidation}
)

// NewNotFoundError reports a missing resource, e.g. NewNotFoundError("product", "product 42 not found").
func NewNotFoundError(resource, message string) *Error {
	return &Error{Kind: KindNotFound, Subject: resource, Message: message}
}

// NewValidationError reports rejected client input for field.
func NewValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Subject: field, Message: message}
}

func (e *Error) Error() string {
	switch {
	case e.Message != "":
		return e.Message
	case e.Subject == "":
		return e.Kind.String()
	case e.Kind == KindValidation:
		return "invalid " + e.Subject
	default:
		return e.Subject + " " + e.Kind.String()
	}
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)

	return ok && t.Kind == e.Kind
}
