package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a failure so callers can decide whether to retry,
// downgrade to a partial result or abort the session.
type Kind string

const (
	KindAuthFailure       Kind = "auth_failure"
	KindChallengeRequired Kind = "challenge_required"
	KindSessionExpired    Kind = "session_expired"
	KindTransientNetwork  Kind = "transient_network"
	KindTerminalBlock     Kind = "terminal_block"
	KindExtractionGap     Kind = "extraction_gap"
	KindExportError       Kind = "export_error"
	KindConfig            Kind = "config"
	KindUnknown           Kind = "unknown"
)

// Kinds lists every kind in reporting order.
var Kinds = []Kind{
	KindAuthFailure,
	KindChallengeRequired,
	KindSessionExpired,
	KindTransientNetwork,
	KindTerminalBlock,
	KindExtractionGap,
	KindExportError,
	KindConfig,
	KindUnknown,
}

// Error is a classified scrape failure.
type Error struct {
	Kind    Kind
	Message string
	// Target is the URL or query the failure relates to, if any.
	Target string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Target != "" {
		msg += fmt.Sprintf(" (target %s)", e.Target)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports kind equality so errors.Is(err, errors.New(KindTerminalBlock, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithTarget returns a copy of e tagged with target.
func (e *Error) WithTarget(target string) *Error {
	cp := *e
	cp.Target = target
	return &cp
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err may succeed on another attempt.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransientNetwork
}

// IsTerminal reports whether err must short-circuit any retry loop.
func IsTerminal(err error) bool {
	switch KindOf(err) {
	case KindTerminalBlock, KindChallengeRequired, KindAuthFailure, KindSessionExpired:
		return true
	default:
		return false
	}
}

// IsSessionLevel reports whether err invalidates the whole session rather than one target.
func IsSessionLevel(err error) bool {
	switch KindOf(err) {
	case KindChallengeRequired, KindAuthFailure, KindSessionExpired:
		return true
	default:
		return false
	}
}

// IsRetryableStatusCode checks if an HTTP status code indicates a retryable error
func IsRetryableStatusCode(statusCode int) bool {
	switch statusCode {
	case 0: // Network error
		return true
	case 429:
		return true
	case 500, 502, 503, 504:
		return true
	case 401, 403, 404:
		return false
	default:
		return statusCode >= 500
	}
}
