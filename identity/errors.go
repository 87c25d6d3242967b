package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure from the identity service. Callers branch on the
// kind, never on message text; message matching exists only as a fallback for
// raw transport errors that carry no structure.
type Kind int

const (
	KindUnclassified Kind = iota
	KindTransientNetwork
	KindCredentialRejected
	KindSessionExpired
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindTransientNetwork:
		return "transient-network"
	case KindCredentialRejected:
		return "credential-rejected"
	case KindSessionExpired:
		return "session-expired"
	case KindRateLimited:
		return "rate-limited"
	default:
		return "unclassified"
	}
}

// Error is the structured failure returned by identity service adapters.
// Message is safe to show to an end user.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("[%s] %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two identity errors by kind and message, so sentinel *Error
// values work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New builds a classified error.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap classifies an underlying error while keeping it in the chain.
func Wrap(err error, kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf extracts the classification from an error chain. Unstructured errors
// fall back to message matching.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnclassified
	}
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return ClassifyMessage(err.Error())
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransientNetwork
}

var transientMarkers = []string{
	"network",
	"timeout",
	"timed out",
	"connection refused",
	"connection reset",
	"no such host",
	"host unreachable",
	"temporary failure",
	"unable to resolve",
	"broken pipe",
	"eof",
}

var credentialMarkers = []string{
	"invalid login",
	"invalid credentials",
	"email not confirmed",
	"user not found",
	"invalid password",
	"weak password",
	"already registered",
}

var sessionMarkers = []string{
	"refresh token",
	"jwt",
	"token is expired",
	"malformed",
}

// ClassifyMessage is the last-resort classifier for errors from an
// unstructured transport. Adapter code should map status codes instead.
func ClassifyMessage(msg string) Kind {
	m := strings.ToLower(msg)
	for _, marker := range transientMarkers {
		if strings.Contains(m, marker) {
			return KindTransientNetwork
		}
	}
	for _, marker := range credentialMarkers {
		if strings.Contains(m, marker) {
			return KindCredentialRejected
		}
	}
	for _, marker := range sessionMarkers {
		if strings.Contains(m, marker) {
			return KindSessionExpired
		}
	}
	if strings.Contains(m, "rate limit") || strings.Contains(m, "too many requests") {
		return KindRateLimited
	}
	return KindUnclassified
}
