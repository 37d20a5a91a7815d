// Package gunerr defines the typed error kinds surfaced by gungo's public
// API, per the error handling design: inbound wire errors are dropped
// silently by the router, local API errors always surface to the caller
// wrapped in *Error so callers can errors.Is against a sentinel Kind.
package gunerr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of a gungo error.
type Kind int

const (
	// InvalidSoul means the soul string was empty or malformed.
	InvalidSoul Kind = iota
	// HashMismatch means a #-soul's content did not hash to the soul.
	HashMismatch
	// SignatureInvalid means a signature or certificate failed to verify.
	SignatureInvalid
	// Expired means a write targeted a soul past its <?N expiration.
	Expired
	// AuthFailed means authenticate() was called with the wrong password.
	AuthFailed
	// TransportLost means a peer connection closed; never surfaced to a
	// local caller, only logged, but kept here so transport code has a
	// consistent kind to log against.
	TransportLost
	// StorageFailed means the persistence collaborator returned an error.
	StorageFailed
	// Timeout means once()'s bounded wait expired; resolves as empty,
	// not an error, but callers that want to distinguish "empty" from
	// "timed out" can still check for this kind upstream of once().
	Timeout
)

func (k Kind) String() string {
	switch k {
	case InvalidSoul:
		return "InvalidSoul"
	case HashMismatch:
		return "HashMismatch"
	case SignatureInvalid:
		return "SignatureInvalid"
	case Expired:
		return "Expired"
	case AuthFailed:
		return "AuthFailed"
	case TransportLost:
		return "TransportLost"
	case StorageFailed:
		return "StorageFailed"
	case Timeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// Error wraps a Kind with context and an optional underlying cause.
type Error struct {
	Kind Kind
	Soul string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Soul != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s (soul=%s): %v", e.Kind, e.Msg, e.Soul, e.Err)
		}
		return fmt.Sprintf("%s: %s (soul=%s)", e.Kind, e.Msg, e.Soul)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, gunerr.ErrHashMismatch) work against a bare Kind
// sentinel by comparing Kind rather than identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind.
func New(kind Kind, soul, msg string, cause error) *Error {
	return &Error{Kind: kind, Soul: soul, Msg: msg, Err: cause}
}

// Sentinels usable with errors.Is; only Kind is compared.
var (
	ErrInvalidSoul      = &Error{Kind: InvalidSoul}
	ErrHashMismatch     = &Error{Kind: HashMismatch}
	ErrSignatureInvalid = &Error{Kind: SignatureInvalid}
	ErrExpired          = &Error{Kind: Expired}
	ErrAuthFailed       = &Error{Kind: AuthFailed}
	ErrTransportLost    = &Error{Kind: TransportLost}
	ErrStorageFailed    = &Error{Kind: StorageFailed}
	ErrTimeout          = &Error{Kind: Timeout}
)

// Is reports whether err is a gungo error of kind k.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
