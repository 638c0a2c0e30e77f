// Package workerurl builds and inspects worker resource identifiers.
//
// The main side has no channel to the worker at spawn time, so debug mode is
// handed over as a query marker on the identifier the worker is created from.
package workerurl

import (
	"net/url"
	"strings"
)

const (
	// DebugParam is the query parameter that marks a debug-mode worker.
	DebugParam = "debugWorker"

	debugQuery = DebugParam + "=true"
)

// WithDebugMarker returns raw with the debug marker appended when debug is
// true. An existing query component is preserved: the marker is joined with
// '&' if raw already carries a query, and starts one with '?' otherwise.
func WithDebugMarker(raw string, debug bool) string {
	if !debug {
		return raw
	}

	if strings.Index(raw, "?") > 0 {
		return raw + "&" + debugQuery
	}

	return raw + "?" + debugQuery
}

// IsDebug reports whether raw carries the debug marker.
func IsDebug(raw string) bool {
	_, query, ok := strings.Cut(raw, "?")
	if !ok {
		return false
	}

	// A bare '?' base gets the marker appended with a second '?'.
	query = strings.ReplaceAll(query, "?", "&")

	// ParseQuery keeps every well-formed pair even when another is malformed.
	values, _ := url.ParseQuery(query)

	return values.Get(DebugParam) == "true"
}

// Path returns the identifier without its query component.
func Path(raw string) string {
	path, _, _ := strings.Cut(raw, "?")

	return path
}
