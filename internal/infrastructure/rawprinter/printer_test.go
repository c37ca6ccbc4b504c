package rawprinter

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		describe string
		wantErr  bool
	}{
		{"usb", Config{Type: TypeUSB, Device: "/dev/usb/lp0"}, "usb:/dev/usb/lp0", false},
		{"usb without device", Config{Type: TypeUSB}, "", true},
		{"network with port", Config{Type: TypeNetwork, Address: "10.0.0.5:9101"}, "network:10.0.0.5:9101", false},
		{"network default port", Config{Type: TypeNetwork, Address: "10.0.0.5"}, "network:10.0.0.5:9100", false},
		{"network without address", Config{Type: TypeNetwork}, "", true},
		{"none", Config{Type: TypeNone}, "none", false},
		{"empty type", Config{}, "none", false},
		{"unknown", Config{Type: "serial"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.describe, p.Describe())
		})
	}
}

func TestUSBPrinter_WritesVerbatim(t *testing.T) {
	device := filepath.Join(t.TempDir(), "lp0")
	require.NoError(t, os.WriteFile(device, nil, 0644))

	p, err := New(Config{Type: TypeUSB, Device: device})
	require.NoError(t, err)
	assert.True(t, p.IsConnected(context.Background()))

	data := []byte{0x1B, 0x40, 'h', 'i', 0x0A, 0x1D, 0x56, 0x00}
	require.NoError(t, p.Print(context.Background(), data))

	got, err := os.ReadFile(device)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestUSBPrinter_MissingDevice(t *testing.T) {
	p, err := New(Config{Type: TypeUSB, Device: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)
	assert.False(t, p.IsConnected(context.Background()))
	assert.Error(t, p.Print(context.Background(), []byte("x")))
}

func TestNetworkPrinter_WritesVerbatim(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	p, err := New(Config{Type: TypeNetwork, Address: ln.Addr().String()})
	require.NoError(t, err)

	data := []byte{0x1B, 0x40, 0x1D, 0x28, 0x6B}
	require.NoError(t, p.Print(context.Background(), data))
	assert.Equal(t, data, <-received)
}

func TestNetworkPrinter_Unreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	p, err := New(Config{Type: TypeNetwork, Address: addr})
	require.NoError(t, err)
	assert.False(t, p.IsConnected(context.Background()))
	assert.Error(t, p.Print(context.Background(), []byte("x")))
}

func TestNullPrinter(t *testing.T) {
	p, err := New(Config{})
	require.NoError(t, err)
	assert.NoError(t, p.Print(context.Background(), []byte("x")))
	assert.False(t, p.IsConnected(context.Background()))
}
