// Package settings persists the physical print settings as a small JSON
// document and holds the process-wide current value.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// FileName is the settings document inside the data directory
const FileName = "print-settings.json"

// Store loads and saves PrintSettings. Reads are lock-free snapshots; a
// save swaps the whole value.
type Store struct {
	path    string
	logger  *zap.Logger
	current atomic.Pointer[printing.PrintSettings]
	saveMu  sync.Mutex
}

// StoreOption is a functional option for configuring the store
type StoreOption func(*Store)

// WithStoreLogger sets the logger for the store
func WithStoreLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a store backed by dir/print-settings.json. The current
// value starts at the defaults until Load is called.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{
		path:   filepath.Join(dir, FileName),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	defaults := printing.DefaultPrintSettings()
	s.current.Store(&defaults)
	return s
}

// Path returns the settings file location
func (s *Store) Path() string {
	return s.path
}

// Current returns a snapshot of the settings in effect
func (s *Store) Current() printing.PrintSettings {
	return s.current.Load().Clone()
}

// Load reads the settings file and makes it current. A missing or
// unreadable file yields the defaults; a bad field falls back on its own.
func (s *Store) Load() printing.PrintSettings {
	loaded, _ := s.read()
	s.current.Store(&loaded)
	return loaded.Clone()
}

// reload swaps in the file contents only when they parse, so a file caught
// mid-write by an external editor does not reset the settings.
func (s *Store) reload() (printing.PrintSettings, bool) {
	loaded, ok := s.read()
	if !ok {
		return s.Current(), false
	}
	s.current.Store(&loaded)
	return loaded.Clone(), true
}

func (s *Store) read() (printing.PrintSettings, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to read print settings, using defaults",
				zap.String("path", s.path),
				zap.Error(err))
		}
		return printing.DefaultPrintSettings(), false
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("Print settings file is corrupt, using defaults",
			zap.String("path", s.path),
			zap.Error(err))
		return printing.DefaultPrintSettings(), false
	}
	return FromRecord(raw), true
}

// FromRecord coerces a loosely typed record into settings, field by field
func FromRecord(raw map[string]any) printing.PrintSettings {
	out := printing.DefaultPrintSettings()
	if v, ok := parsePositive(raw["width"]); ok {
		out.Width = v
	}
	if v, ok := parsePositive(raw["height"]); ok {
		out.Height = v
	}
	if v, ok := parsePositive(raw["scaleFactor"]); ok {
		out.ScaleFactor = v
	}
	if v, ok := raw["silentPrinting"].(bool); ok {
		out.SilentPrinting = v
	}
	if v, ok := raw["deviceName"].(string); ok && v != "" {
		out.DeviceName = &v
	}
	return out.Normalize()
}

// FromSubmission coerces a settings form submission. Unlike FromRecord,
// silentPrinting is true only when it is exactly boolean true.
func FromSubmission(raw map[string]any) printing.PrintSettings {
	out := FromRecord(raw)
	silent, _ := raw["silentPrinting"].(bool)
	out.SilentPrinting = silent
	return out
}

// SaveRecord normalizes a submission and saves it
func (s *Store) SaveRecord(raw map[string]any) (printing.PrintSettings, error) {
	return s.Save(FromSubmission(raw))
}

// Save normalizes settings, persists them atomically and makes them current.
// Jobs already holding a snapshot are unaffected.
func (s *Store) Save(settings printing.PrintSettings) (printing.PrintSettings, error) {
	normalized := settings.Normalize()

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if err := s.write(normalized); err != nil {
		s.logger.Error("Failed to save print settings",
			zap.String("path", s.path),
			zap.Error(err))
		return s.Current(), err
	}
	s.current.Store(&normalized)

	s.logger.Info("Print settings saved",
		zap.String("path", s.path),
		zap.Float64("width", normalized.Width),
		zap.Float64("height", normalized.Height),
		zap.Float64("scale_factor", normalized.ScaleFactor),
		zap.Bool("silent", normalized.SilentPrinting),
		zap.String("device", normalized.Device()))

	return normalized.Clone(), nil
}

func (s *Store) write(settings printing.PrintSettings) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}

func parsePositive(v any) (float64, bool) {
	switch v.(type) {
	case nil, bool:
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}
