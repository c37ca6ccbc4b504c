// Package rawprinter writes pre-encoded receipt bytes straight to a printer,
// bypassing any page layout.
package rawprinter

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"
)

// Printer types
const (
	TypeUSB     = "usb"
	TypeNetwork = "network"
	TypeNone    = "none"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultWriteTimeout = 10 * time.Second
)

// Printer sends raw bytes to a thermal printer
type Printer interface {
	// Print writes data verbatim
	Print(ctx context.Context, data []byte) error
	// IsConnected reports whether the printer looks reachable
	IsConnected(ctx context.Context) bool
	// Describe returns a human readable target for logs
	Describe() string
}

// Config selects and addresses a printer
type Config struct {
	// Type is usb, network or none
	Type string
	// Device is the device file for usb printers, e.g. /dev/usb/lp0
	Device string
	// Address is host:port for network printers, e.g. 192.168.1.100:9100
	Address string
	// Timeout bounds connecting and writing
	Timeout time.Duration
}

// New creates the printer described by config
func New(config Config) (Printer, error) {
	switch config.Type {
	case TypeUSB:
		if config.Device == "" {
			return nil, fmt.Errorf("rawprinter: device path is required for usb printers")
		}
		return &usbPrinter{path: config.Device}, nil
	case TypeNetwork:
		if config.Address == "" {
			return nil, fmt.Errorf("rawprinter: address is required for network printers")
		}
		address := config.Address
		if _, _, err := net.SplitHostPort(address); err != nil {
			address = net.JoinHostPort(address, "9100")
		}
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultDialTimeout
		}
		return &networkPrinter{address: address, timeout: timeout}, nil
	case TypeNone, "":
		return nullPrinter{}, nil
	default:
		return nil, fmt.Errorf("rawprinter: unknown printer type %q (use usb, network, or none)", config.Type)
	}
}

type usbPrinter struct {
	path string
}

func (p *usbPrinter) Print(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.OpenFile(p.path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("rawprinter: failed to open device %s: %w", p.path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("rawprinter: failed to write to device %s: %w", p.path, err)
	}
	return nil
}

func (p *usbPrinter) IsConnected(context.Context) bool {
	_, err := os.Stat(p.path)
	return err == nil
}

func (p *usbPrinter) Describe() string {
	return "usb:" + p.path
}

type networkPrinter struct {
	address string
	timeout time.Duration
}

func (p *networkPrinter) Print(ctx context.Context, data []byte) error {
	dialer := net.Dialer{Timeout: p.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("rawprinter: failed to connect to %s: %w", p.address, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetWriteDeadline(deadline)

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("rawprinter: failed to write to %s: %w", p.address, err)
	}
	return nil
}

func (p *networkPrinter) IsConnected(ctx context.Context) bool {
	dialer := net.Dialer{Timeout: 2 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (p *networkPrinter) Describe() string {
	return "network:" + p.address
}

type nullPrinter struct{}

func (nullPrinter) Print(context.Context, []byte) error { return nil }
func (nullPrinter) IsConnected(context.Context) bool    { return false }
func (nullPrinter) Describe() string                    { return "none" }
