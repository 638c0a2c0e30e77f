// Package subprocess provides process-based worker hosting.
//
// Host spawns a worker as a child process and talks to it over
// newline-delimited frames on stdin/stdout. The child's stderr is buffered
// and attached to the ProcessError raised when the child exits abnormally.
//
// StdioTransport is the worker-side counterpart: it serves the same framing
// on the child's own stdin/stdout.
package subprocess
