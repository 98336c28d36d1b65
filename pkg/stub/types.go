package stub

import (
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Param is a name/value pair used for query parameters and headers.
type Param struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Request is either an incoming request as recorded by the service, or the
// request pattern of an Exchange. Empty fields in a pattern match anything.
type Request struct {
	Method   string  `json:"method,omitempty" yaml:"method,omitempty"`
	Path     string  `json:"path,omitempty" yaml:"path,omitempty"`
	Params   []Param `json:"params,omitempty" yaml:"params,omitempty"`
	Headers  []Param `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body     string  `json:"body,omitempty" yaml:"body,omitempty"`
	BodyType string  `json:"bodyType,omitempty" yaml:"bodyType,omitempty"`

	// ID and ReceivedAt are set on recorded requests only.
	ID         string    `json:"id,omitempty" yaml:"-"`
	ReceivedAt time.Time `json:"receivedAt,omitzero" yaml:"-"`
}

// Response is the stubbed response. Body may be a string, written as-is, or
// any other JSON-serialisable value, written as JSON.
type Response struct {
	Status  int     `json:"status,omitempty" yaml:"status,omitempty"`
	Headers []Param `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body    any     `json:"body,omitempty" yaml:"body,omitempty"`
}

// Exchange pairs a request pattern with the response to send back.
type Exchange struct {
	Request  Request  `json:"request" yaml:"request"`
	Response Response `json:"response" yaml:"response"`

	// Delay is the artificial latency in milliseconds applied before responding.
	Delay int64 `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// Result is the outcome of a successful match.
type Result struct {
	Response *Response
	Delay    time.Duration
}

// GetParam returns the first query parameter with the given name.
func (r *Request) GetParam(name string) (string, bool) {
	return lookup(r.Params, name)
}

// GetParams returns all values of the query parameter with the given name.
func (r *Request) GetParams(name string) []string {
	return lookupAll(r.Params, name)
}

// GetHeader returns the first header with the given name.
func (r *Request) GetHeader(name string) (string, bool) {
	return lookup(r.Headers, name)
}

// GetHeader returns the first response header with the given name.
func (r *Response) GetHeader(name string) (string, bool) {
	return lookup(r.Headers, name)
}

func lookup(params []Param, name string) (string, bool) {
	for _, p := range params {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

func lookupAll(params []Param, name string) []string {
	var values []string
	for _, p := range params {
		if strings.EqualFold(p.Name, name) {
			values = append(values, p.Value)
		}
	}
	return values
}

// NewRequest converts an incoming HTTP request into a Request, reading the
// whole body. Parameters and headers are sorted by name so recorded requests
// are stable.
func NewRequest(r *http.Request) (*Request, error) {
	req := &Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Params:     toParams(r.URL.Query()),
		Headers:    toParams(r.Header),
		BodyType:   r.Header.Get("Content-Type"),
		ReceivedAt: time.Now(),
	}

	if r.Body != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		req.Body = string(body)
	}
	return req, nil
}

func toParams(values map[string][]string) []Param {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	var params []Param
	for _, name := range names {
		for _, v := range values[name] {
			params = append(params, Param{Name: name, Value: v})
		}
	}
	return params
}
