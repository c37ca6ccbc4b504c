package logger

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrorLogName is the durable error log file name
const ErrorLogName = "cravings-log.txt"

// ErrorLog appends failed jobs to a plain-text file, one record per
// failure: "<RFC3339 UTC> - ERROR: <message>" followed by a blank line.
type ErrorLog struct {
	path   string
	file   *os.File
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// ErrorLogPath resolves the error log location. An explicit path wins;
// otherwise the file lives in dataDir.
func ErrorLogPath(configured, dataDir string) string {
	if configured != "" {
		return configured
	}
	return filepath.Join(dataDir, ErrorLogName)
}

// NewErrorLog opens (or creates) the error log at path
func NewErrorLog(path string) (*ErrorLog, error) {
	file, err := openAppend(path)
	if err != nil {
		return nil, err
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "msg",
		LineEnding:       "\n\n",
		ConsoleSeparator: " - ERROR: ",
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.UTC().Format(time.RFC3339))
		},
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(file), zapcore.ErrorLevel)

	return &ErrorLog{path: path, file: file, logger: zap.New(core)}, nil
}

// Path returns the log file location
func (l *ErrorLog) Path() string {
	return l.path
}

// Record appends one failure. A nil or closed ErrorLog drops the record.
func (l *ErrorLog) Record(message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.logger.Error(message)
	_ = l.logger.Sync()
}

// Close flushes and closes the file. Closing twice is a no-op.
func (l *ErrorLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	_ = l.logger.Sync()
	return l.file.Close()
}
