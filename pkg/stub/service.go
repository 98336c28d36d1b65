package stub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getmockd/stubby/pkg/logging"
	"github.com/google/uuid"
)

// DefaultMaxRequests bounds the request journal when no limit is given.
const DefaultMaxRequests = 1000

// ErrInvalidExchange is returned when an exchange cannot be stored.
var ErrInvalidExchange = errors.New("invalid exchange")

// NotFoundError is returned when an index does not refer to a stored item.
type NotFoundError struct {
	What  string
	Index int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.What, e.Index)
}

// Service is a thread-safe in-memory stub store and request journal.
//
// Exchanges and requests are addressed by their index in the list returned
// by Responses and FindRequests with an empty filter. New exchanges are
// inserted at index 0; recorded requests are appended.
type Service struct {
	mu          sync.Mutex
	responses   []*Exchange
	requests    []*Request
	maxRequests int
	recorded    chan struct{} // closed and replaced whenever a request is recorded
	log         *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxRequests bounds the request journal. Oldest entries are evicted first.
func WithMaxRequests(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxRequests = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates an empty Service.
func NewService(opts ...ServiceOption) *Service {
	s := &Service{
		maxRequests: DefaultMaxRequests,
		recorded:    make(chan struct{}),
		log:         logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddResponse stores an exchange ahead of all existing ones.
func (s *Service) AddResponse(ex *Exchange) error {
	if ex == nil {
		return fmt.Errorf("%w: missing exchange", ErrInvalidExchange)
	}
	if err := ex.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExchange, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append([]*Exchange{ex}, s.responses...)
	return nil
}

// Responses returns a snapshot of the stored exchanges.
func (s *Service) Responses() []*Exchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Exchange, len(s.responses))
	copy(out, s.responses)
	return out
}

// Response returns the exchange at index.
func (s *Service) Response(index int) (*Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.responses) {
		return nil, &NotFoundError{What: "response", Index: index}
	}
	return s.responses[index], nil
}

// DeleteResponse removes the exchange at index.
func (s *Service) DeleteResponse(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.responses) {
		return &NotFoundError{What: "response", Index: index}
	}
	s.responses = append(s.responses[:index], s.responses[index+1:]...)
	return nil
}

// DeleteResponses removes all exchanges.
func (s *Service) DeleteResponses() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = nil
}

// FindMatch records req and returns the response of the first matching exchange.
func (s *Service) FindMatch(_ context.Context, req *Request) (*Result, bool) {
	s.RecordRequest(req)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.responses {
		if ex.Request.Matches(req) {
			resp := ex.Response
			return &Result{
				Response: &resp,
				Delay:    time.Duration(ex.Delay) * time.Millisecond,
			}, true
		}
	}
	s.log.Debug("no stub matched", "id", req.ID, "method", req.Method, "path", req.Path)
	return nil, false
}

// RecordRequest appends req to the journal and wakes pending waiters.
func (s *Service) RecordRequest(req *Request) {
	if req == nil {
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = time.Now()
	}

	s.mu.Lock()
	if len(s.requests) >= s.maxRequests {
		s.requests = s.requests[1:]
	}
	s.requests = append(s.requests, req)
	close(s.recorded)
	s.recorded = make(chan struct{})
	s.mu.Unlock()
}

// FindRequests returns the recorded requests matching filter. With a
// positive wait it blocks until at least one request matches, the wait
// elapses or ctx is done, whichever comes first.
func (s *Service) FindRequests(ctx context.Context, filter *Filter, wait time.Duration) []*Request {
	var deadline <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		s.mu.Lock()
		found := s.filterLocked(filter)
		recorded := s.recorded
		s.mu.Unlock()

		if len(found) > 0 || deadline == nil {
			return found
		}

		select {
		case <-recorded:
		case <-deadline:
			return found
		case <-ctx.Done():
			return found
		}
	}
}

func (s *Service) filterLocked(filter *Filter) []*Request {
	found := make([]*Request, 0, len(s.requests))
	for _, req := range s.requests {
		if filter == nil || filter.Matches(req) {
			found = append(found, req)
		}
	}
	return found
}

// Request returns the recorded request at index.
func (s *Service) Request(index int) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.requests) {
		return nil, &NotFoundError{What: "request", Index: index}
	}
	return s.requests[index], nil
}

// DeleteRequest removes the recorded request at index.
func (s *Service) DeleteRequest(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.requests) {
		return &NotFoundError{What: "request", Index: index}
	}
	s.requests = append(s.requests[:index], s.requests[index+1:]...)
	return nil
}

// DeleteRequests clears the journal.
func (s *Service) DeleteRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}
