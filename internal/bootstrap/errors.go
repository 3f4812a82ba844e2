package bootstrap

import "fmt"

// Kind classifies a bootstrap error so call sites can branch on policy
// (retry, abandon-peer, or fatal-exit) without string matching.
type Kind int

const (
	// Config covers unparseable JSON, a missing peer file, or no local IP
	// match. Always fatal on startup.
	Config Kind = iota
	// Protocol covers an unexpected TLV type, a malformed payload, or a
	// length overrun. Fatal on a leaf; abandons one peer on the root.
	Protocol
	// PeerClosed covers a short read on an established connection.
	// Treated as Protocol by policy.
	PeerClosed
	// Backend covers a rule-installer failure. Logged and counted, never
	// fatal.
	Backend
	// Transient covers retryable accept/connect failures.
	Transient
	// Fatal covers a root bind failure or other unrecoverable condition.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "Config"
	case Protocol:
		return "Protocol"
	case PeerClosed:
		return "PeerClosed"
	case Backend:
		return "Backend"
	case Transient:
		return "Transient"
	case Fatal:
		return "Fatal"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error wraps an underlying error with a Kind, so a caller can
// errors.As to *Error and switch on Kind to decide policy.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newErr wraps err under kind. PeerClosed is folded into Protocol per the
// error policy: a short read is a protocol violation, not a distinct class
// a caller needs to branch on separately.
func newErr(kind Kind, err error) *Error {
	if kind == PeerClosed {
		kind = Protocol
	}
	return &Error{Kind: kind, Err: err}
}
