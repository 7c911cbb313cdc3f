package ipc

// State is the broadcaster's lifecycle state.
type State int32

const (
	// StateCreated means the endpoint is allocated but not yet listening.
	StateCreated State = iota
	// StateListening means the broadcaster is blocked awaiting a consumer.
	StateListening
	// StateStreaming means a consumer is attached and receiving statuses.
	StateStreaming
	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateListening:
		return "listening"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Serving reports whether the endpoint exists and can take a consumer.
func (s State) Serving() bool {
	return s == StateListening || s == StateStreaming
}
