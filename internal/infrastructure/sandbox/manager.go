// Package sandbox opens invisible browser tabs that load a receipt page,
// report when its printable content is present and print or capture it.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrManagerClosed is returned by Open after Close
var ErrManagerClosed = errors.New("sandbox manager is closed")

// Manager owns the browser shared by all sandboxes. Each sandbox is a tab
// of that browser.
type Manager struct {
	config      Config
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu            sync.Mutex
	closed        bool
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewManager creates a manager. The browser itself starts with the first
// Open, which blocks until it is up.
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		config: config,
		logger: logger,
	}
	m.initAllocator()

	logger.Info("Sandbox manager initialized",
		zap.String("ready_mode", string(config.ReadyMode)),
		zap.String("selector", config.Selector),
		zap.Bool("remote", config.RemoteURL != ""))

	return m, nil
}

func (m *Manager) initAllocator() {
	if m.config.RemoteURL != "" {
		m.allocCtx, m.allocCancel = chromedp.NewRemoteAllocator(context.Background(), m.config.RemoteURL)
		return
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", m.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if m.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	if m.config.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(m.config.ChromePath))
	}
	m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
}

// Config returns the effective configuration
func (m *Manager) Config() Config {
	return m.config
}

// Open creates a sandbox tab and starts loading url into it without waiting
// for the page. Progress is reported to sink.
func (m *Manager) Open(ctx context.Context, url string, sink Sink) (*Sandbox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}

	browserCtx, err := m.browser()
	if err != nil {
		return nil, err
	}
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)

	sb := newSandbox(uuid.New().String(), url, sink, tabCancel, m.logger)
	sb.ctx = tabCtx
	sb.selector = m.config.Selector

	if m.config.ReadyMode == ReadyConsole {
		chromedp.ListenTarget(tabCtx, sb.consoleListener(m.config.Markers))
	}

	go sb.run(m.config)

	m.logger.Debug("Sandbox opened",
		zap.String("sandbox_id", sb.ID()),
		zap.String("url", url))

	return sb, nil
}

// browser returns the shared browser context, starting the browser on first
// use. A failed start is not cached. Callers hold m.mu.
func (m *Manager) browser() (context.Context, error) {
	if m.browserCtx != nil && m.browserCtx.Err() == nil {
		return m.browserCtx, nil
	}
	ctx, cancel := chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			m.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	m.browserCtx, m.browserCancel = ctx, cancel
	m.logger.Info("Browser started")
	return ctx, nil
}

// Close stops the browser. Open sandboxes are torn down with it.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if m.browserCancel != nil {
		m.browserCancel()
	}
	if m.allocCancel != nil {
		m.allocCancel()
	}
	m.logger.Info("Sandbox manager closed")
	return nil
}
