package sandbox

// EventKind identifies what a sandbox observed
type EventKind int

const (
	// EventLoaded fires once the target page finished loading
	EventLoaded EventKind = iota + 1
	// EventReady fires once the printable content is present
	EventReady
	// EventLoadFailed fires when navigation fails
	EventLoadFailed
)

// String returns the string representation of the kind
func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventReady:
		return "ready"
	case EventLoadFailed:
		return "load_failed"
	default:
		return "unknown"
	}
}

// Event is delivered to a Sink, always tagged with the id of the sandbox
// that produced it.
type Event struct {
	SandboxID string
	Kind      EventKind
	// Payload carries the tagged console line in console ready mode
	Payload string
	// Reason carries the navigation error for EventLoadFailed
	Reason string
}

// Sink receives sandbox events. It is never called with sandbox locks
// held, but a blocking sink delays later events of the same sandbox.
type Sink func(Event)
