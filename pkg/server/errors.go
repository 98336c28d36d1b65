package server

import (
	"errors"
	"fmt"
)

// Kind classifies server errors.
type Kind int

// Error kinds.
const (
	// KindBind means the listener could not be bound.
	KindBind Kind = iota + 1
	// KindProtocol means the HTTP server failed while serving or draining.
	KindProtocol
	// KindAssertion means an internal invariant was broken, for example the
	// server goroutine exited without reporting its address.
	KindAssertion
	// KindTimeout means JoinTimeout gave up before the server stopped.
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindBind:
		return "bind error"
	case KindProtocol:
		return "protocol error"
	case KindAssertion:
		return "assertion failure"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by Start and the join operations of a Handle.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

var (
	// ErrHandleConsumed is returned when a Handle is joined or shut down
	// after it has already observed the server's termination.
	ErrHandleConsumed = errors.New("server handle already consumed")

	// ErrNotDelivered is returned by Trigger.Fire once the server has exited.
	ErrNotDelivered = errors.New("shutdown request not delivered: server already stopped")
)

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsTimeout reports whether err is a JoinTimeout deadline error.
func IsTimeout(err error) bool {
	return IsKind(err, KindTimeout)
}
