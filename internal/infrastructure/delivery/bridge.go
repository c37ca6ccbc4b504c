package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
	"go.uber.org/zap"
)

const (
	defaultBridgeBinary  = "rawprint"
	defaultBridgeTimeout = 15 * time.Second
	bridgeSuccess        = "Success"
)

// BridgeConfig contains configuration for the spooling bridge
type BridgeConfig struct {
	// Binary is the bridge executable, absolute or looked up in PATH
	Binary string
	// Timeout bounds a single invocation
	Timeout time.Duration
	// Logger for debug output
	Logger *zap.Logger
}

// Bridge runs the external raw spooling executable
type Bridge struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewBridge creates a bridge client. A missing binary is not an error here;
// it surfaces as a launch failure on the first send.
func NewBridge(config BridgeConfig) *Bridge {
	if config.Binary == "" {
		config.Binary = defaultBridgeBinary
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultBridgeTimeout
	}
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		binary:  config.Binary,
		timeout: config.Timeout,
		logger:  log,
	}
}

// resolveBinaryPath finds the full path to the binary
func resolveBinaryPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	}
	return exec.LookPath(path)
}

// Send hands the file at path to the bridge. Launch errors and non-zero
// exits are BRIDGE_LAUNCH_FAILURE; a clean exit without "Success" on
// stdout is PRINT_FAILURE.
func (b *Bridge) Send(ctx context.Context, path string) error {
	binary, err := resolveBinaryPath(b.binary)
	if err != nil {
		return printing.NewJobError(printing.ErrCodeBridgeLaunchFailure,
			fmt.Sprintf("print bridge not found: %s", b.binary), err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	out := strings.TrimSpace(stdout.String())

	jobLogger(ctx, b.logger).Debug("Print bridge finished",
		zap.String("binary", binary),
		zap.String("file", path),
		zap.String("stdout", out),
		zap.Duration("duration", time.Since(start)))

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return printing.NewJobError(printing.ErrCodeBridgeLaunchFailure,
				fmt.Sprintf("print bridge timed out after %v", b.timeout), err)
		}
		msg := "print bridge failed"
		if detail := firstLine(stderr.String(), out); detail != "" {
			msg += ": " + detail
		}
		return printing.NewJobError(printing.ErrCodeBridgeLaunchFailure, msg, err)
	}

	if !strings.Contains(out, bridgeSuccess) {
		reason := out
		if reason == "" {
			reason = "no response"
		}
		return printing.NewJobError(printing.ErrCodePrintFailure,
			"printer rejected job: "+reason, nil)
	}
	return nil
}

func firstLine(candidates ...string) string {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if i := strings.IndexByte(c, '\n'); i >= 0 {
			c = c[:i]
		}
		return strings.TrimSpace(c)
	}
	return ""
}
