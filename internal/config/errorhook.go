package config

import "sync"

// ErrorHook holds a Transport's OnError observer. Errors fired before an
// observer is set are queued and replayed by Set.
type ErrorHook struct {
	mu     sync.Mutex
	fn     func(error)
	queued []error
}

// Set installs fn, replacing any previous observer, and replays queued errors.
func (h *ErrorHook) Set(fn func(error)) {
	h.mu.Lock()
	h.fn = fn
	queued := h.queued
	h.queued = nil
	h.mu.Unlock()

	if fn == nil {
		return
	}

	for _, err := range queued {
		fn(err)
	}
}

// Fire delivers err to the observer, or queues it if none is set.
func (h *ErrorHook) Fire(err error) {
	h.mu.Lock()

	fn := h.fn
	if fn == nil {
		h.queued = append(h.queued, err)
	}

	h.mu.Unlock()

	if fn != nil {
		fn(err)
	}
}
