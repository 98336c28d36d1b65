package control

import (
	"net/http"
	"strings"
)

// Path is the normalised form of a request used for dispatch.
type Path struct {
	Method   string
	Segments []string
}

// NewPath builds the dispatch path of r.
func NewPath(r *http.Request) Path {
	return Path{Method: r.Method, Segments: SplitPath(r.URL.Path)}
}

// SplitPath trims leading and trailing slashes and splits the rest into
// segments, dropping the empty ones produced by repeated slashes.
func SplitPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
