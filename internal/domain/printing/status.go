package printing

import "time"

// Status channels understood by the UI
const (
	ChannelPrintStatus  = "print-status"
	ChannelUpdateStatus = "update-status"
)

// Messages reported to the UI
const (
	MessagePrintSent     = "Print job sent! 👍"
	MessagePrintFailed   = "Print failed: "
	MessagePrintTimedOut = "Print timed out"
)

// Status is the {success, message} record sent to the UI when a job
// finishes, plus routing metadata.
type Status struct {
	Channel   string    `json:"channel"`
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	JobID     string    `json:"job_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPrintSentStatus returns the status for a delivered job
func NewPrintSentStatus(jobID string) Status {
	return Status{
		Channel:   ChannelPrintStatus,
		Success:   true,
		Message:   MessagePrintSent,
		JobID:     jobID,
		Timestamp: time.Now(),
	}
}

// NewPrintFailedStatus returns the status for a failed job; reason is shown verbatim
func NewPrintFailedStatus(jobID, reason string) Status {
	return Status{
		Channel:   ChannelPrintStatus,
		Success:   false,
		Message:   MessagePrintFailed + reason,
		JobID:     jobID,
		Timestamp: time.Now(),
	}
}

// NewUpdateStatus returns an update-check status in the same shape
func NewUpdateStatus(success bool, message string) Status {
	return Status{
		Channel:   ChannelUpdateStatus,
		Success:   success,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewPrintTimedOutStatus returns the status for a job that never became ready
func NewPrintTimedOutStatus(jobID string) Status {
	return Status{
		Channel:   ChannelPrintStatus,
		Success:   false,
		Message:   MessagePrintTimedOut,
		JobID:     jobID,
		Timestamp: time.Now(),
	}
}
