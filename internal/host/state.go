package host

// State is the lifecycle state of a main-side Controller.
type State int

const (
	// StateUnsupported means the environment cannot create workers.
	StateUnsupported State = iota
	// StateSpawnFailed means the host failed to create the worker.
	StateSpawnFailed
	// StateReady means the worker and its Channel exist.
	StateReady
	// StateTerminated is terminal and reached only through Terminate.
	StateTerminated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUnsupported:
		return "unsupported"
	case StateSpawnFailed:
		return "spawn_failed"
	case StateReady:
		return "ready"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}
