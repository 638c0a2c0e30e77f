// Package errors defines error types for workerlink.
//
// This package provides sentinel errors for the conditions a dispatch caller
// is expected to branch on (closed transport, closed channel, unsupported
// host, unknown action) and structured error types for failures that carry
// context. All error types support unwrapping and can be checked using
// errors.Is, errors.As, and errors.AsType.
package errors
