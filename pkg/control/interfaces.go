package control

import (
	"context"
	"time"

	"github.com/getmockd/stubby/pkg/stub"
)

// ShutdownTrigger requests termination of the server hosting the router.
// Fire must not block; an error means the request could not be delivered.
type ShutdownTrigger interface {
	Fire() error
}

// Matcher finds the stubbed response for a non-control request.
type Matcher interface {
	FindMatch(ctx context.Context, req *stub.Request) (*stub.Result, bool)
}

// StubStore backs the /_control/responses and /_control/requests endpoints.
// Index arguments that do not refer to a stored item must produce an error
// matching *stub.NotFoundError.
type StubStore interface {
	AddResponse(ex *stub.Exchange) error
	Responses() []*stub.Exchange
	Response(index int) (*stub.Exchange, error)
	DeleteResponse(index int) error
	DeleteResponses()

	FindRequests(ctx context.Context, filter *stub.Filter, wait time.Duration) []*stub.Request
	Request(index int) (*stub.Request, error)
	DeleteRequest(index int) error
	DeleteRequests()
}

var (
	_ Matcher   = (*stub.Service)(nil)
	_ StubStore = (*stub.Service)(nil)
)
