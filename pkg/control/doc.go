// Package control implements the stubby request router.
//
// Requests whose first path segment is "_control" are served by the control
// plane (version, shutdown, stored responses, recorded requests). Every other
// request is handed to a Matcher, which decides whether a stub applies.
//
// The router never returns a Go error to net/http: unknown paths become 404,
// known paths with the wrong method 405, and internal failures 500. Every
// response carries a Content-Type, an explicit Content-Length and a body.
package control
