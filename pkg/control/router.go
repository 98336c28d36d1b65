package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/stubby/pkg/httputil"
	"github.com/getmockd/stubby/pkg/logging"
	"github.com/getmockd/stubby/pkg/stub"
	"github.com/getmockd/stubby/pkg/version"
)

// Marker is the first path segment reserved for the control plane.
const Marker = "_control"

// Response messages.
const (
	MsgNotFound            = "Not found"
	MsgMethodNotAllowed    = "Method not allowed"
	MsgInternalServerError = "Internal server error"
	MsgBadRequest          = "Bad request"
	MsgNoStubFound         = "No stubbed response found"
)

// shutdownBody is the exact 202 body of POST /_control/shutdown.
const shutdownBody = `{"message": "Shutdown triggered"}`

// maxBodySize limits request bodies read by the router.
const maxBodySize = 10 << 20

// VersionResponse is the body of GET /_control/version.
type VersionResponse struct {
	Version string `json:"version"`
}

// Router dispatches requests to the control plane or the stub matcher.
type Router struct {
	shutdown ShutdownTrigger
	matcher  Matcher
	store    StubStore
	version  string
	log      *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithMatcher sets the collaborator used for non-control requests.
func WithMatcher(m Matcher) Option {
	return func(rt *Router) {
		rt.matcher = m
	}
}

// WithStore sets the collaborator behind the responses and requests endpoints.
func WithStore(s StubStore) Option {
	return func(rt *Router) {
		rt.store = s
	}
}

// WithVersion overrides the version reported by /_control/version.
func WithVersion(v string) Option {
	return func(rt *Router) {
		if v != "" {
			rt.version = v
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(rt *Router) {
		if log != nil {
			rt.log = log
		}
	}
}

// NewRouter creates a Router. shutdown may be nil, in which case shutdown
// requests are accepted but only logged.
func NewRouter(shutdown ShutdownTrigger, opts ...Option) *Router {
	rt := &Router{
		shutdown: shutdown,
		version:  version.Version,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// ServeHTTP implements http.Handler.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w}

	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			rt.log.Error("panic while handling request", "method", r.Method, "path", r.URL.Path, "panic", v)
			if !sw.wroteHeader {
				internalServerError(sw)
			}
		}
		rt.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start))
	}()

	rt.handle(sw, r, NewPath(r))
}

func (rt *Router) handle(w http.ResponseWriter, r *http.Request, p Path) {
	if len(p.Segments) > 0 && p.Segments[0] == Marker {
		rt.handleControl(w, r, p.Method, p.Segments[1:])
		return
	}
	rt.handleStub(w, r)
}

func (rt *Router) handleControl(w http.ResponseWriter, r *http.Request, method string, segments []string) {
	if len(segments) == 0 {
		notFound(w)
		return
	}

	switch segments[0] {
	case "version":
		if len(segments) != 1 {
			notFound(w)
			return
		}
		rt.handleVersion(w, method)
	case "shutdown":
		if len(segments) != 1 {
			notFound(w)
			return
		}
		rt.handleShutdown(w, method)
	case "responses":
		if rt.store == nil {
			notFound(w)
			return
		}
		rt.handleResponses(w, r, method, segments[1:])
	case "requests":
		if rt.store == nil {
			notFound(w)
			return
		}
		rt.handleRequests(w, r, method, segments[1:])
	default:
		notFound(w)
	}
}

func (rt *Router) handleVersion(w http.ResponseWriter, method string) {
	if method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	rt.writeJSON(w, http.StatusOK, VersionResponse{Version: rt.version})
}

func (rt *Router) handleShutdown(w http.ResponseWriter, method string) {
	if method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	if rt.shutdown == nil {
		rt.log.Warn("shutdown requested but no shutdown trigger is configured")
	} else if err := rt.shutdown.Fire(); err != nil {
		rt.log.Warn("error queueing shutdown request", "error", err)
	}
	rt.log.Debug("shutdown endpoint called, triggering shutdown")

	httputil.WriteBytes(w, http.StatusAccepted, httputil.ContentTypeJSON, []byte(shutdownBody))
}

func (rt *Router) handleResponses(w http.ResponseWriter, r *http.Request, method string, rest []string) {
	switch len(rest) {
	case 0:
		switch method {
		case http.MethodGet:
			rt.writeJSON(w, http.StatusOK, rt.store.Responses())
		case http.MethodDelete:
			rt.store.DeleteResponses()
			httputil.WriteEmpty(w, http.StatusOK)
		case http.MethodPost:
			rt.addResponse(w, r)
		default:
			methodNotAllowed(w)
		}
	case 1:
		switch method {
		case http.MethodGet:
			index, ok := parseIndex(w, rest[0])
			if !ok {
				return
			}
			ex, err := rt.store.Response(index)
			if err != nil {
				rt.storeError(w, err)
				return
			}
			rt.writeJSON(w, http.StatusOK, ex)
		case http.MethodDelete:
			index, ok := parseIndex(w, rest[0])
			if !ok {
				return
			}
			if err := rt.store.DeleteResponse(index); err != nil {
				rt.storeError(w, err)
				return
			}
			httputil.WriteEmpty(w, http.StatusOK)
		default:
			methodNotAllowed(w)
		}
	default:
		notFound(w)
	}
}

func (rt *Router) addResponse(w http.ResponseWriter, r *http.Request) {
	var ex stub.Exchange
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&ex); err != nil {
		rt.log.Debug("invalid exchange body", "error", err)
		httputil.WriteText(w, http.StatusBadRequest, MsgBadRequest)
		return
	}
	if err := rt.store.AddResponse(&ex); err != nil {
		if errors.Is(err, stub.ErrInvalidExchange) {
			httputil.WriteText(w, http.StatusBadRequest, err.Error())
			return
		}
		rt.storeError(w, err)
		return
	}
	httputil.WriteEmpty(w, http.StatusOK)
}

func (rt *Router) handleRequests(w http.ResponseWriter, r *http.Request, method string, rest []string) {
	switch len(rest) {
	case 0:
		switch method {
		case http.MethodGet:
			filter, wait := parseRequestQuery(r)
			rt.writeJSON(w, http.StatusOK, rt.store.FindRequests(r.Context(), filter, wait))
		case http.MethodDelete:
			rt.store.DeleteRequests()
			httputil.WriteEmpty(w, http.StatusOK)
		default:
			methodNotAllowed(w)
		}
	case 1:
		switch method {
		case http.MethodGet:
			index, ok := parseIndex(w, rest[0])
			if !ok {
				return
			}
			req, err := rt.store.Request(index)
			if err != nil {
				rt.storeError(w, err)
				return
			}
			rt.writeJSON(w, http.StatusOK, req)
		case http.MethodDelete:
			index, ok := parseIndex(w, rest[0])
			if !ok {
				return
			}
			if err := rt.store.DeleteRequest(index); err != nil {
				rt.storeError(w, err)
				return
			}
			httputil.WriteEmpty(w, http.StatusOK)
		default:
			methodNotAllowed(w)
		}
	default:
		notFound(w)
	}
}

func (rt *Router) handleStub(w http.ResponseWriter, r *http.Request) {
	if rt.matcher == nil {
		httputil.WriteText(w, http.StatusNotFound, MsgNoStubFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	req, err := stub.NewRequest(r)
	if err != nil {
		rt.log.Warn("failed to read request body", "path", r.URL.Path, "error", err)
		httputil.WriteText(w, http.StatusBadRequest, MsgBadRequest)
		return
	}

	result, ok := rt.matcher.FindMatch(r.Context(), req)
	if !ok || result == nil || result.Response == nil {
		httputil.WriteText(w, http.StatusNotFound, MsgNoStubFound)
		return
	}

	if result.Delay > 0 {
		timer := time.NewTimer(result.Delay)
		select {
		case <-timer.C:
		case <-r.Context().Done():
			timer.Stop()
			return
		}
	}

	rt.writeStub(w, result.Response)
}

func (rt *Router) writeStub(w http.ResponseWriter, resp *stub.Response) {
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	var (
		body        []byte
		contentType = httputil.ContentTypeText
	)
	switch b := resp.Body.(type) {
	case nil:
	case string:
		body = []byte(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			rt.log.Error("error serialising stub response body", "error", err)
			internalServerError(w)
			return
		}
		body = encoded
		contentType = httputil.ContentTypeJSON
	}
	if ct, ok := resp.GetHeader("Content-Type"); ok {
		contentType = ct
	}

	h := w.Header()
	for _, p := range resp.Headers {
		if strings.EqualFold(p.Name, "Content-Type") || strings.EqualFold(p.Name, "Content-Length") {
			continue
		}
		h.Add(p.Name, p.Value)
	}
	httputil.WriteBytes(w, status, contentType, body)
}

func (rt *Router) writeJSON(w http.ResponseWriter, status int, data any) {
	if err := httputil.WriteJSON(w, status, data); err != nil {
		rt.log.Error("error serialising JSON response", "error", err)
		internalServerError(w)
	}
}

func (rt *Router) storeError(w http.ResponseWriter, err error) {
	var nf *stub.NotFoundError
	if errors.As(err, &nf) {
		httputil.WriteText(w, http.StatusNotFound, nf.Error())
		return
	}
	rt.log.Error("stub store error", "error", err)
	internalServerError(w)
}

// parseIndex parses an id path segment, writing a 404 when it is not an index.
func parseIndex(w http.ResponseWriter, segment string) (int, bool) {
	index, err := strconv.Atoi(segment)
	if err != nil || index < 0 {
		httputil.WriteText(w, http.StatusNotFound, fmt.Sprintf("%s: %s", MsgNotFound, segment))
		return 0, false
	}
	return index, true
}

// parseRequestQuery builds the filter for GET /_control/requests.
//
// Recognised parameters: method, path, body, bodyType, wait (milliseconds,
// positive integers only), param.<name> and header.<name>.
func parseRequestQuery(r *http.Request) (*stub.Filter, time.Duration) {
	q := r.URL.Query()
	filter := &stub.Filter{
		Method:   q.Get("method"),
		Path:     q.Get("path"),
		Body:     q.Get("body"),
		BodyType: q.Get("bodyType"),
	}
	if filter.Validate() != nil {
		filter.Path = ""
	}

	var wait time.Duration
	if ms, err := strconv.Atoi(q.Get("wait")); err == nil && ms > 0 {
		wait = time.Duration(ms) * time.Millisecond
	}

	for key, values := range q {
		switch {
		case strings.HasPrefix(key, "param."):
			for _, v := range values {
				filter.Params = append(filter.Params, stub.Param{Name: strings.TrimPrefix(key, "param."), Value: v})
			}
		case strings.HasPrefix(key, "header."):
			for _, v := range values {
				filter.Headers = append(filter.Headers, stub.Param{Name: strings.TrimPrefix(key, "header."), Value: v})
			}
		}
	}
	return filter, wait
}

func notFound(w http.ResponseWriter) {
	httputil.WriteText(w, http.StatusNotFound, MsgNotFound)
}

func methodNotAllowed(w http.ResponseWriter) {
	httputil.WriteText(w, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
}

func internalServerError(w http.ResponseWriter) {
	httputil.WriteText(w, http.StatusInternalServerError, MsgInternalServerError)
}

// statusWriter records the status written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

// WriteHeader marks the header written only once the wrapped writer has
// accepted code, so a rejected status still leaves room for a 500.
func (w *statusWriter) WriteHeader(code int) {
	w.ResponseWriter.WriteHeader(code)
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
