package printing

import (
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
)

// Navigation actions returned to the shell
const (
	ActionAllow = "allow"
	ActionDeny  = "deny"
)

// NavigationRequest is a window-open or navigation the shell intercepted
type NavigationRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// NavigationResult tells the shell whether to open the URL itself
type NavigationResult struct {
	Action string `json:"action"`
	JobID  string `json:"job_id,omitempty"`
}

// JobResponse is an in-flight job
type JobResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Kind      string    `json:"kind"`
	Strategy  string    `json:"strategy"`
	State     string    `json:"state"`
	SandboxID string    `json:"sandbox_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryRequest filters the job history
type HistoryRequest struct {
	Limit int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Kind  string `form:"kind" binding:"omitempty,oneof=kot bill"`
	State string `form:"state" binding:"omitempty,oneof=completed failed timed_out"`
}

// HistoryResponse is one finished job
type HistoryResponse struct {
	ID            string    `json:"id"`
	URL           string    `json:"url"`
	Kind          string    `json:"kind"`
	Strategy      string    `json:"strategy"`
	State         string    `json:"state"`
	Success       bool      `json:"success"`
	FailureCode   string    `json:"failure_code,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// SettingsResponse mirrors the persisted settings document
type SettingsResponse struct {
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	ScaleFactor    float64 `json:"scaleFactor"`
	SilentPrinting bool    `json:"silentPrinting"`
	DeviceName     *string `json:"deviceName"`
}

// UpdateStatusRequest is an update-checker notification to relay to the UI
type UpdateStatusRequest struct {
	Success bool   `json:"success"`
	Message string `json:"message" binding:"required,max=500"`
}

func toJobResponse(v JobView) JobResponse {
	return JobResponse{
		ID:        v.ID.String(),
		URL:       v.URL,
		Kind:      v.Kind.String(),
		Strategy:  v.Strategy.String(),
		State:     v.State.String(),
		SandboxID: v.SandboxID,
		CreatedAt: v.CreatedAt,
	}
}

func toHistoryResponse(r printing.JobRecord) HistoryResponse {
	return HistoryResponse{
		ID:            r.ID.String(),
		URL:           r.URL,
		Kind:          r.Kind.String(),
		Strategy:      r.Strategy.String(),
		State:         r.State.String(),
		Success:       r.Succeeded(),
		FailureCode:   r.FailureCode,
		FailureReason: r.FailureReason,
		DurationMS:    r.Duration.Milliseconds(),
		CreatedAt:     r.CreatedAt,
		FinishedAt:    r.FinishedAt,
	}
}

func toSettingsResponse(s printing.PrintSettings) SettingsResponse {
	return SettingsResponse{
		Width:          s.Width,
		Height:         s.Height,
		ScaleFactor:    s.ScaleFactor,
		SilentPrinting: s.SilentPrinting,
		DeviceName:     s.DeviceName,
	}
}
