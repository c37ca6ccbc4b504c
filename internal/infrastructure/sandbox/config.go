package sandbox

import (
	"fmt"
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
)

// ReadyMode selects how a sandbox decides the printable content is present
type ReadyMode string

const (
	// ReadyHandshake waits for the printable container element to be visible
	ReadyHandshake ReadyMode = "handshake"
	// ReadyConsole waits for a console line carrying a document marker
	ReadyConsole ReadyMode = "console"
)

// IsValid returns true if the mode is known
func (m ReadyMode) IsValid() bool {
	return m == ReadyHandshake || m == ReadyConsole
}

const (
	// DefaultSelector is the container the receipt pages render into
	DefaultSelector   = "#printable-content"
	defaultNavTimeout = 15 * time.Second
)

// Config contains configuration for the sandbox manager
type Config struct {
	// ReadyMode is handshake or console
	ReadyMode ReadyMode
	// Selector is the printable element for handshake readiness and capture
	Selector string
	// Markers are the console prefixes that signal readiness
	Markers []string
	// ChromePath overrides the browser binary (optional)
	ChromePath string
	// RemoteURL is a remote debugging endpoint. When set no browser is launched.
	RemoteURL string
	// Headless mode (default: true)
	Headless bool
	// NoSandbox runs Chrome without its own sandbox (required for Docker/root)
	NoSandbox bool
	// NavigationTimeout bounds the initial page load
	NavigationTimeout time.Duration
}

// DefaultConfig returns the handshake configuration used by receipt pages
func DefaultConfig() Config {
	return Config{
		ReadyMode:         ReadyHandshake,
		Selector:          DefaultSelector,
		Markers:           []string{printing.MarkerKOT, printing.MarkerBill},
		Headless:          true,
		NavigationTimeout: defaultNavTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.ReadyMode == "" {
		c.ReadyMode = ReadyHandshake
	}
	if c.Selector == "" {
		c.Selector = DefaultSelector
	}
	if len(c.Markers) == 0 {
		c.Markers = []string{printing.MarkerKOT, printing.MarkerBill}
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = defaultNavTimeout
	}
	return c
}

// Validate checks the configuration
func (c Config) Validate() error {
	if !c.ReadyMode.IsValid() {
		return fmt.Errorf("invalid ready mode: %q", c.ReadyMode)
	}
	return nil
}
