// Package httputil provides shared HTTP response/request utilities for
// handlers.
//
// Handlers should use these helpers instead of writing raw
// http.ResponseWriter calls so JSON formatting, error envelopes, and
// server-side error logging stay consistent across endpoints. 5xx responses
// never include internal error text; the real error is logged instead.
package httputil
