// Package server runs a stubby instance: it binds the listener, serves the
// control router on a background goroutine and lets the owner wait for or
// request its termination.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/getmockd/stubby/pkg/control"
	"github.com/getmockd/stubby/pkg/logging"
)

// State is the lifecycle state of a server.
type State int32

// Lifecycle states.
const (
	StateStarting State = iota
	StateRunning
	StateShuttingDown
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting down"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// startupOutcome is handed from the server goroutine to Start exactly once.
type startupOutcome struct {
	addr net.Addr
	err  error
}

// Trigger requests a server shutdown. It is safe for concurrent use and is
// shared by the control router and the owner of the Handle.
type Trigger struct {
	ch   chan<- struct{}
	done <-chan struct{}
}

// Fire enqueues a shutdown request without blocking. Requests made while
// one is already pending are merged into it. Once the server has exited
// Fire returns ErrNotDelivered.
func (t *Trigger) Fire() error {
	select {
	case <-t.done:
		return ErrNotDelivered
	default:
	}

	select {
	case t.ch <- struct{}{}:
	default:
	}
	return nil
}

// Handle is a running server. It is owned by the caller of Start, which must
// eventually call exactly one of Shutdown, Join or JoinTimeout.
type Handle struct {
	addr     net.Addr
	trigger  *Trigger
	shutdown <-chan struct{}
	done     chan struct{}
	result   error
	state    atomic.Int32
	consumed atomic.Bool
	log      *slog.Logger
	opts     options
}

func newHandle(o options) *Handle {
	shutdown := make(chan struct{}, 1)
	done := make(chan struct{})
	return &Handle{
		trigger:  &Trigger{ch: shutdown, done: done},
		shutdown: shutdown,
		done:     done,
		log:      o.log,
		opts:     o,
	}
}

// Start binds addr (host:port, port may be 0) and serves on a background
// goroutine. It returns once the listener is bound, with the resolved
// address available from Addr. If binding fails, or ctx ends before the
// address is handed over, the goroutine is joined before Start returns.
func Start(ctx context.Context, addr string, opts ...Option) (*Handle, error) {
	o := options{
		log:          logging.Nop(),
		drainTimeout: DefaultDrainTimeout,
		readTimeout:  DefaultReadTimeout,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	h := newHandle(o)
	startup := make(chan startupOutcome)
	startCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go h.run(startCtx, addr, startup)

	select {
	case out := <-startup:
		if out.err != nil {
			<-h.done
			return nil, out.err
		}
		h.addr = out.addr
		h.log.Info("listening", "addr", out.addr.String())
		return h, nil

	case <-h.done:
		if h.result != nil {
			return nil, h.result
		}
		return nil, &Error{Kind: KindAssertion, Msg: "server exited before reporting its address"}

	case <-ctx.Done():
		cancel()
		_ = h.trigger.Fire()
		<-h.done
		if h.result != nil {
			h.log.Warn("server stopped during startup", "error", h.result)
		}
		return nil, fmt.Errorf("server start aborted: %w", ctx.Err())
	}
}

// run is the body of the server goroutine. Its result is stored in h.result
// before h.done is closed.
func (h *Handle) run(ctx context.Context, addr string, startup chan<- startupOutcome) {
	defer func() {
		if v := recover(); v != nil {
			h.result = &Error{Kind: KindAssertion, Msg: "server goroutine panicked", Err: fmt.Errorf("%v", v)}
		}
		h.state.Store(int32(StateTerminated))
		close(h.done)
	}()

	h.result = h.serve(ctx, addr, startup)
}

func (h *Handle) serve(ctx context.Context, addr string, startup chan<- startupOutcome) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		bindErr := &Error{Kind: KindBind, Msg: "could not bind to " + addr, Err: err}
		h.log.Error("could not bind", "addr", addr, "error", err)
		select {
		case startup <- startupOutcome{err: bindErr}:
		case <-ctx.Done():
		}
		return bindErr
	}

	// Running is visible before Start returns the handle.
	h.state.Store(int32(StateRunning))
	select {
	case startup <- startupOutcome{addr: ln.Addr()}:
	case <-ctx.Done():
		_ = ln.Close()
		return &Error{Kind: KindAssertion, Msg: "could not return address to starter", Err: ctx.Err()}
	}

	router := control.NewRouter(h.trigger,
		control.WithMatcher(h.opts.matcher),
		control.WithStore(h.opts.store),
		control.WithVersion(h.opts.version),
		control.WithLogger(h.log),
	)
	srv := &http.Server{
		Handler:           router,
		ReadTimeout:       h.opts.readTimeout,
		ReadHeaderTimeout: h.opts.readTimeout,
		WriteTimeout:      h.opts.writeTimeout,
		ErrorLog:          slog.NewLogLogger(h.log.Handler(), slog.LevelWarn),
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case <-h.shutdown:
		h.state.Store(int32(StateShuttingDown))
		h.log.Info("shutting down", "addr", ln.Addr().String())

		drainCtx, cancel := context.WithTimeout(context.Background(), h.opts.drainTimeout)
		defer cancel()
		if err := srv.Shutdown(drainCtx); err != nil {
			_ = srv.Close()
			<-serveErr
			return &Error{Kind: KindProtocol, Msg: "graceful shutdown incomplete", Err: err}
		}
		if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return &Error{Kind: KindProtocol, Msg: "serve", Err: err}
		}
		h.log.Info("server stopped", "addr", ln.Addr().String())
		return nil

	case err := <-serveErr:
		h.state.Store(int32(StateShuttingDown))
		_ = srv.Close()
		h.log.Error("server failed", "addr", ln.Addr().String(), "error", err)
		return &Error{Kind: KindProtocol, Msg: "serve", Err: err}
	}
}

// Addr returns the address the server is bound to.
func (h *Handle) Addr() net.Addr {
	return h.addr
}

// URL returns the base URL of the server, e.g. "http://127.0.0.1:41234".
func (h *Handle) URL() string {
	return "http://" + h.addr.String()
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Trigger returns the shutdown sender shared with the control router.
func (h *Handle) Trigger() *Trigger {
	return h.trigger
}

// Done is closed once the server goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Shutdown requests termination and waits for the server to stop.
func (h *Handle) Shutdown() error {
	if err := h.trigger.Fire(); err != nil {
		h.log.Warn("error queueing shutdown request", "error", err)
	}
	return h.Join()
}

// Join blocks until the server goroutine exits and returns its result.
func (h *Handle) Join() error {
	if !h.consumed.CompareAndSwap(false, true) {
		return ErrHandleConsumed
	}
	return h.join()
}

func (h *Handle) join() error {
	<-h.done
	return h.result
}

// JoinTimeout waits up to d for the server to exit. On timeout it returns
// a KindTimeout error and leaves the server running; the handle stays usable
// so the caller may wait again or call Shutdown.
func (h *Handle) JoinTimeout(d time.Duration) error {
	if !h.consumed.CompareAndSwap(false, true) {
		return ErrHandleConsumed
	}

	waiter := make(chan error, 1)
	go func() {
		waiter <- h.join()
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case err := <-waiter:
		return err
	case <-timer.C:
		h.consumed.Store(false)
		return &Error{Kind: KindTimeout, Msg: fmt.Sprintf("server still running after %s", d)}
	}
}
