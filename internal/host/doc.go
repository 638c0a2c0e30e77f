// Package host implements the main-side controller: it creates the worker
// through the injected host capability, binds a Channel to it, and
// classifies failures into spawn errors, uncaught worker errors and action
// handler errors before handing them to the reporting sink.
package host
