package clone

import "errors"

// Kind classifies a clone failure for the purpose of deciding the
// JunkGuard disposition (see junk.go) and the user-facing message.
type Kind int

const (
	// KindUser covers bad input: unknown/conflicting options, a
	// non-empty destination, a negative depth, and the like.
	KindUser Kind = iota
	// KindSource covers an unresolvable repo argument or an invalid
	// --reference donor (shallow, grafted, a linked worktree).
	KindSource
	// KindTransport covers connect failures, missing objects, and
	// failed connectivity checks.
	KindTransport
	// KindPrimer covers a failed primer download/index/ref-write.
	// It is recoverable unless running under --resume.
	KindPrimer
	// KindInterruptedPrimer marks a signal received mid-primer.
	KindInterruptedPrimer
	// KindCheckout covers a failed working-tree checkout or
	// post-checkout hook, including a failed submodule update.
	KindCheckout
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindSource:
		return "source"
	case KindTransport:
		return "transport"
	case KindPrimer:
		return "primer"
	case KindInterruptedPrimer:
		return "interrupted-primer"
	case KindCheckout:
		return "checkout"
	default:
		return "unknown"
	}
}

// Error wraps an underlying failure with the Kind the controller uses
// to decide the JunkGuard's final mode.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the Kind of err if it (or something it wraps) is a
// *Error, and KindUser otherwise - an un-annotated error is treated
// conservatively as requiring full cleanup.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUser
}
