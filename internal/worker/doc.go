// Package worker implements the worker-side controller. It is the mirror of
// the main-side controller: it owns no spawn logic, only the Channel over
// the transport it was started with.
package worker
