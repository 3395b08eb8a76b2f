package openpgp

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrorKind classifies the failures the message pipeline can surface
// to callers. The set is closed: every public operation reports
// through one of these kinds rather than an ad hoc error value.
type ErrorKind int

const (
	KindGeneral ErrorKind = iota
	KindInvalidMessage
	KindInvalidSignature
	KindNotSigned
	KindPassphraseRequired
	KindPassphraseIncorrect
	KindIntegrityCheckFailed
	KindCryptoUnavailable
	KindCryptoFailure
	KindUnsupportedAlgorithm
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidMessage:
		return "invalid message"
	case KindInvalidSignature:
		return "invalid signature"
	case KindNotSigned:
		return "not signed"
	case KindPassphraseRequired:
		return "passphrase required"
	case KindPassphraseIncorrect:
		return "passphrase incorrect"
	case KindIntegrityCheckFailed:
		return "integrity check failed"
	case KindCryptoUnavailable:
		return "crypto primitive unavailable"
	case KindCryptoFailure:
		return "crypto primitive failure"
	case KindUnsupportedAlgorithm:
		return "unsupported algorithm"
	default:
		return "general error"
	}
}

// Error is the structured error returned across the pipeline's public
// boundary (spec section 7). Public operations never panic or throw
// past this boundary; they report through an *Error and an empty
// result, never a partial one.
type Error struct {
	Kind  ErrorKind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.cause)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

func newErr(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

func wrapErr(kind ErrorKind, cause error, msg string) *Error {
	return &Error{Kind: kind, cause: pkgerrors.Wrap(cause, msg)}
}

// newErrMsg builds an *Error carrying a description but no wrapped
// cause, for failures the pipeline detects itself rather than
// receives from a lower layer (e.g. "no usable encryption key in
// recipient set").
func newErrMsg(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, cause: pkgerrors.New(msg)}
}

// KindOf reports the ErrorKind of err, or KindGeneral if err did not
// originate from this package.
func KindOf(err error) ErrorKind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindGeneral
}

// Sentinel errors for the zero-detail cases, in the style of the
// teacher's DecryptKeyErr/UnsupportedPacketErr package-level vars.
var (
	ErrInvalidMessage       = newErr(KindInvalidMessage, nil)
	ErrInvalidSignature     = newErr(KindInvalidSignature, nil)
	ErrNotSigned            = newErr(KindNotSigned, nil)
	ErrPassphraseRequired   = newErr(KindPassphraseRequired, nil)
	ErrPassphraseIncorrect  = newErr(KindPassphraseIncorrect, nil)
	ErrIntegrityCheckFailed = newErr(KindIntegrityCheckFailed, nil)
	ErrCryptoUnavailable    = newErr(KindCryptoUnavailable, nil)
	ErrUnsupportedAlgorithm = newErr(KindUnsupportedAlgorithm, nil)

	// InvalidPacketErr and UnsupportedPacketErr keep the teacher's
	// original names for the narrow packet-parsing failures that the
	// codec reports before the higher-level Kind taxonomy applies.
	InvalidPacketErr     = ErrInvalidMessage
	UnsupportedPacketErr = ErrUnsupportedAlgorithm

	// DecryptKeyErr indicates the wrong passphrase was given while
	// unlocking a secret key, the teacher's original name. A missing
	// passphrase is reported as ErrPassphraseRequired instead.
	DecryptKeyErr = ErrPassphraseIncorrect
)
