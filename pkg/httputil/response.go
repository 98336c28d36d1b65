// Package httputil provides shared HTTP utilities for consistent response handling.
//
// Every writer here sets the status, a Content-Type header, an explicit
// Content-Length and the body, so error paths are as well-formed as success
// paths.
package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Content types written by stubby.
const (
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeJSON = "application/json"
)

// WriteBytes writes body with the given status and content type.
// A nil body is written as an empty body with Content-Length 0.
func WriteBytes(w http.ResponseWriter, status int, contentType string, body []byte) {
	h := w.Header()
	h.Set("Content-Type", contentType)
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.Write(body)
	}
}

// WriteText writes a plain-text response.
func WriteText(w http.ResponseWriter, status int, message string) {
	WriteBytes(w, status, ContentTypeText, []byte(message))
}

// WriteJSON marshals data and writes it with the given status.
// Nothing is written when marshalling fails, so the caller can still choose
// a different response.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	WriteBytes(w, status, ContentTypeJSON, body)
	return nil
}

// WriteEmpty writes a response with no body.
func WriteEmpty(w http.ResponseWriter, status int) {
	WriteBytes(w, status, ContentTypeText, nil)
}
