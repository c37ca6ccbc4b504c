package printing

import (
	"math"
	"strings"
)

// Default physical settings
const (
	DefaultWidthMM        = 88.0
	DefaultHeightMM       = 279.0
	DefaultScaleFactor    = 1.0
	DefaultSilentPrinting = true
)

// PrintSettings is the physical print configuration.
// A nil DeviceName means the system default printer.
type PrintSettings struct {
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	ScaleFactor    float64 `json:"scaleFactor"`
	SilentPrinting bool    `json:"silentPrinting"`
	DeviceName     *string `json:"deviceName"`
}

// DefaultPrintSettings returns the factory settings
func DefaultPrintSettings() PrintSettings {
	return PrintSettings{
		Width:          DefaultWidthMM,
		Height:         DefaultHeightMM,
		ScaleFactor:    DefaultScaleFactor,
		SilentPrinting: DefaultSilentPrinting,
	}
}

// Normalize replaces each invalid field with its default, field by field
func (s PrintSettings) Normalize() PrintSettings {
	out := s
	if !validDimension(out.Width) {
		out.Width = DefaultWidthMM
	}
	if !validDimension(out.Height) {
		out.Height = DefaultHeightMM
	}
	if !validDimension(out.ScaleFactor) {
		out.ScaleFactor = DefaultScaleFactor
	}
	out.DeviceName = normalizeDeviceName(out.DeviceName)
	return out
}

// HasDevice returns true when a specific printer is targeted
func (s PrintSettings) HasDevice() bool {
	return s.DeviceName != nil && *s.DeviceName != ""
}

// Device returns the target printer name, or "" for the system default
func (s PrintSettings) Device() string {
	if !s.HasDevice() {
		return ""
	}
	return *s.DeviceName
}

// PageSizeMicrons returns the page size in micrometers
func (s PrintSettings) PageSizeMicrons() (width, height int64) {
	return int64(math.Round(s.Width * 1000)), int64(math.Round(s.Height * 1000))
}

// Clone returns a deep copy so a job snapshot never aliases the store
func (s PrintSettings) Clone() PrintSettings {
	out := s
	if s.DeviceName != nil {
		name := *s.DeviceName
		out.DeviceName = &name
	}
	return out
}

func validDimension(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func normalizeDeviceName(name *string) *string {
	if name == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*name)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
