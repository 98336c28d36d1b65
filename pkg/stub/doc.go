// Package stub holds the stub data model and the default in-memory stub
// service used by the control plane.
//
// A stub is an Exchange: a request pattern paired with the response to
// return when an incoming request satisfies it, optionally after a delay.
// The Service keeps the configured exchanges and a journal of the requests
// it has seen, so tests driving a stubby server can both program responses
// and verify what their code sent.
//
// Matching is intentionally simple. An exchange matches when every
// constraint it sets holds:
//   - Method is empty or equal to the request method (case-insensitive)
//   - Path is empty or matches the request path as a doublestar pattern
//   - every stubbed query parameter and header is present with the same value
//   - Body is empty or equal to the request body
//
// The most recently added exchange wins when several match.
package stub
