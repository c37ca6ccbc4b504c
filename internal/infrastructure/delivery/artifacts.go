package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ArtifactDirName is the folder created under the resolved base directory
const ArtifactDirName = "printagent"

// ArtifactStore writes the files handed to the spooler and the bridge
type ArtifactStore struct {
	dir       string
	logger    *zap.Logger
	onCleanup func(deleted int)
}

// ResolveArtifactDir picks the artifact directory: the configured one if
// any, else the user cache dir, else the system temp dir.
func ResolveArtifactDir(configured string) string {
	if configured != "" {
		return configured
	}
	if cache, err := os.UserCacheDir(); err == nil && cache != "" {
		return filepath.Join(cache, ArtifactDirName)
	}
	return filepath.Join(os.TempDir(), ArtifactDirName)
}

// NewArtifactStore creates the store and its directory
func NewArtifactStore(configured string, logger *zap.Logger) (*ArtifactStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := ResolveArtifactDir(configured)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}
	return &ArtifactStore{dir: dir, logger: logger}, nil
}

// OnCleanup registers fn to be called after a sweep that removed files
func (s *ArtifactStore) OnCleanup(fn func(deleted int)) {
	s.onCleanup = fn
}

// Dir returns the artifact directory
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Name returns the artifact file name for a job: {kind}-{id}.{ext}
func Name(kind, id, ext string) string {
	return fmt.Sprintf("%s-%s.%s", safeComponent(kind), safeComponent(id), strings.TrimPrefix(ext, "."))
}

// Path returns where the artifact for kind/id/ext lives
func (s *ArtifactStore) Path(kind, id, ext string) string {
	return filepath.Join(s.dir, Name(kind, id, ext))
}

// Write stores data under name, replacing any previous artifact of the same
// name, and returns the full path.
func (s *ArtifactStore) Write(name string, data []byte) (string, error) {
	if name == "" || name != filepath.Base(name) || containsDotDot(name) {
		return "", fmt.Errorf("invalid artifact name: %q", name)
	}
	if len(data) == 0 {
		return "", errors.New("artifact is empty")
	}
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	s.logger.Debug("Artifact written",
		zap.String("path", path),
		zap.Int("size", len(data)))
	return path, nil
}

// CleanupOlderThan removes artifacts older than age
func (s *ArtifactStore) CleanupOlderThan(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age)
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list artifacts: %w", err)
	}

	deleted := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return deleted, nil
		}
		if entry.IsDir() || !isArtifact(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
				deleted++
			}
		}
	}

	if deleted > 0 {
		s.logger.Info("Artifact cleanup completed",
			zap.Int("deleted", deleted),
			zap.Duration("age", age))
		if s.onCleanup != nil {
			s.onCleanup(deleted)
		}
	}
	return deleted, nil
}

// RunCleanup removes stale artifacts every interval until ctx is done
func (s *ArtifactStore) RunCleanup(ctx context.Context, interval, age time.Duration) {
	if interval <= 0 || age <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.CleanupOlderThan(ctx, age); err != nil {
				s.logger.Warn("Artifact cleanup failed", zap.Error(err))
			}
		}
	}
}

func isArtifact(name string) bool {
	switch filepath.Ext(name) {
	case ".pdf", ".bin", ".png":
		return true
	}
	return false
}

func safeComponent(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "unknown"
	}
	return s
}

func containsDotDot(name string) bool {
	return strings.Contains(name, "..")
}
