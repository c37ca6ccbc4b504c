package printing

// DocumentKind identifies which receipt a URL or payload describes
type DocumentKind string

const (
	DocumentKindKOT  DocumentKind = "kot"  // Kitchen order ticket
	DocumentKindBill DocumentKind = "bill" // Customer bill
)

// IsValid checks if the DocumentKind is a valid value
func (k DocumentKind) IsValid() bool {
	switch k {
	case DocumentKindKOT, DocumentKindBill:
		return true
	}
	return false
}

// String returns the string representation of DocumentKind
func (k DocumentKind) String() string {
	return string(k)
}

// Strategy selects how a ready sandbox is turned into printer output
type Strategy string

const (
	// StrategyNative rasterizes the page and hands it to the host print facility
	StrategyNative Strategy = "native"
	// StrategyESCPOS decodes a tagged document and spools encoded bytes
	StrategyESCPOS Strategy = "escpos"
	// StrategyImage captures the printable element and spools the bitmap
	StrategyImage Strategy = "image"
)

// IsValid checks if the Strategy is a valid value
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyNative, StrategyESCPOS, StrategyImage:
		return true
	}
	return false
}

// String returns the string representation of Strategy
func (s Strategy) String() string {
	return string(s)
}

// AllStrategies returns all valid Strategy values
func AllStrategies() []Strategy {
	return []Strategy{StrategyNative, StrategyESCPOS, StrategyImage}
}

// JobState represents the state of a print job
type JobState string

const (
	JobStateCreated       JobState = "created"
	JobStateLoading       JobState = "loading"
	JobStateAwaitingReady JobState = "awaiting_ready"
	JobStatePrinting      JobState = "printing"
	JobStateCompleted     JobState = "completed"
	JobStateFailed        JobState = "failed"
	JobStateTimedOut      JobState = "timed_out"
)

// IsValid checks if the JobState is a valid value
func (s JobState) IsValid() bool {
	switch s {
	case JobStateCreated, JobStateLoading, JobStateAwaitingReady, JobStatePrinting,
		JobStateCompleted, JobStateFailed, JobStateTimedOut:
		return true
	}
	return false
}

// String returns the string representation of JobState
func (s JobState) String() string {
	return string(s)
}

// IsTerminal returns true if this is a terminal state (no further transitions)
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed || s == JobStateTimedOut
}

// CanTransitionTo checks if the state can transition to the target state.
// Every live state may fail or time out.
func (s JobState) CanTransitionTo(target JobState) bool {
	if s.IsTerminal() || !target.IsValid() {
		return false
	}
	if target == JobStateFailed || target == JobStateTimedOut {
		return true
	}
	switch s {
	case JobStateCreated:
		return target == JobStateLoading
	case JobStateLoading:
		return target == JobStateAwaitingReady
	case JobStateAwaitingReady:
		return target == JobStatePrinting
	case JobStatePrinting:
		return target == JobStateCompleted
	}
	return false
}
