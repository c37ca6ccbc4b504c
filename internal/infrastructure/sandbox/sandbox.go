package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a closed sandbox
var ErrClosed = errors.New("sandbox is closed")

// Sandbox is one invisible tab bound to one URL
type Sandbox struct {
	id       string
	url      string
	selector string
	sink     Sink
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	emitMu       sync.Mutex
	mu           sync.Mutex
	loaded       bool
	failed       bool
	ready        bool
	pendingReady *string
	closed       bool
	closeOnce    sync.Once
}

func newSandbox(id, url string, sink Sink, cancel context.CancelFunc, logger *zap.Logger) *Sandbox {
	if sink == nil {
		sink = func(Event) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sandbox{
		id:       id,
		url:      url,
		selector: DefaultSelector,
		sink:     sink,
		cancel:   cancel,
		logger:   logger,
	}
}

// ID returns the opaque identity that tags every event of this sandbox
func (s *Sandbox) ID() string {
	return s.id
}

// URL returns the page loaded into the sandbox
func (s *Sandbox) URL() string {
	return s.url
}

func (s *Sandbox) run(config Config) {
	navCtx, cancel := context.WithTimeout(s.ctx, config.NavigationTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx, runtime.Enable(), chromedp.Navigate(s.url)); err != nil {
		if s.isClosed() {
			return
		}
		s.markFailed(err.Error())
		return
	}
	s.markLoaded()

	if config.ReadyMode != ReadyHandshake {
		return
	}
	if err := chromedp.Run(s.ctx, chromedp.WaitVisible(s.selector, chromedp.ByQuery)); err != nil {
		if !s.isClosed() {
			s.logger.Debug("Printable content never appeared",
				zap.String("sandbox_id", s.id),
				zap.Error(err))
		}
		return
	}
	s.markReady("")
}

func (s *Sandbox) consoleListener(markers []string) func(ev any) {
	return func(ev any) {
		e, ok := ev.(*runtime.EventConsoleAPICalled)
		if !ok {
			return
		}
		for _, arg := range e.Args {
			if arg == nil || arg.Type != runtime.TypeString {
				continue
			}
			text, ok := consoleText(arg.Value)
			if !ok {
				continue
			}
			if payload, ok := MatchMarker(text, markers); ok {
				s.markReady(payload)
				return
			}
		}
	}
}

// MatchMarker reports whether a console line starts with one of the markers.
// The line is returned untouched so the decoder can tell the kinds apart.
func MatchMarker(text string, markers []string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	for _, marker := range markers {
		if marker != "" && strings.HasPrefix(trimmed, marker) {
			return trimmed, true
		}
	}
	return "", false
}

func consoleText(raw []byte) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", false
	}
	return text, true
}

// update runs step under mu and hands the events it returns to the sink
// after mu is released, so a slow sink never holds up Close. emitMu keeps
// events in order across the navigation and console goroutines.
func (s *Sandbox) update(step func() []Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	events := step()
	s.mu.Unlock()

	for _, ev := range events {
		s.sink(ev)
	}
}

func (s *Sandbox) markLoaded() {
	s.update(func() []Event {
		if s.closed || s.loaded || s.failed {
			return nil
		}
		s.loaded = true
		events := []Event{{SandboxID: s.id, Kind: EventLoaded}}
		if s.pendingReady != nil {
			events = append(events, Event{SandboxID: s.id, Kind: EventReady, Payload: *s.pendingReady})
			s.pendingReady = nil
			s.ready = true
		}
		return events
	})
}

// markReady fires readiness at most once, and never ahead of EventLoaded
func (s *Sandbox) markReady(payload string) {
	s.update(func() []Event {
		if s.closed || s.ready || s.failed {
			return nil
		}
		if !s.loaded {
			if s.pendingReady == nil {
				s.pendingReady = &payload
			}
			return nil
		}
		s.ready = true
		return []Event{{SandboxID: s.id, Kind: EventReady, Payload: payload}}
	})
}

func (s *Sandbox) markFailed(reason string) {
	s.update(func() []Event {
		if s.closed || s.loaded || s.failed {
			return nil
		}
		s.failed = true
		s.pendingReady = nil
		return []Event{{SandboxID: s.id, Kind: EventLoadFailed, Reason: reason}}
	})
}

func (s *Sandbox) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// PDFOptions describes the page the native strategy prints
type PDFOptions struct {
	WidthMM         float64
	HeightMM        float64
	Scale           float64
	PrintBackground bool
}

type pdfParams struct {
	paperWidth  float64
	paperHeight float64
	scale       float64
	background  bool
}

func buildPDFParams(opts PDFOptions) pdfParams {
	scale := opts.Scale
	if scale <= 0 {
		scale = 1.0
	}
	return pdfParams{
		paperWidth:  mmToInches(opts.WidthMM),
		paperHeight: mmToInches(opts.HeightMM),
		scale:       scale,
		background:  opts.PrintBackground,
	}
}

// PrintPDF prints the loaded page with zero margins
func (s *Sandbox) PrintPDF(ctx context.Context, opts PDFOptions) ([]byte, error) {
	runCtx, cancel, err := s.runContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	params := buildPDFParams(opts)
	var pdf []byte
	err = chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		data, _, err := page.PrintToPDF().
			WithPrintBackground(params.background).
			WithPaperWidth(params.paperWidth).
			WithPaperHeight(params.paperHeight).
			WithMarginTop(0).
			WithMarginRight(0).
			WithMarginBottom(0).
			WithMarginLeft(0).
			WithScale(params.scale).
			WithPreferCSSPageSize(false).
			Do(ctx)
		if err != nil {
			return err
		}
		pdf = data
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("print to pdf: %w", err)
	}
	if len(pdf) == 0 {
		return nil, errors.New("generated PDF is empty")
	}
	return pdf, nil
}

// Capture returns a PNG of the element matched by selector
func (s *Sandbox) Capture(ctx context.Context, selector string) ([]byte, error) {
	if selector == "" {
		selector = s.selector
	}
	runCtx, cancel, err := s.runContext(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	var png []byte
	if err := chromedp.Run(runCtx, chromedp.Screenshot(selector, &png, chromedp.NodeVisible, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("capture %s: %w", selector, err)
	}
	if len(png) == 0 {
		return nil, errors.New("captured image is empty")
	}
	return png, nil
}

// runContext derives a context that runs actions in this tab and is
// cancelled with either the caller's ctx or the sandbox itself.
func (s *Sandbox) runContext(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if s.isClosed() || s.ctx == nil {
		return nil, nil, ErrClosed
	}
	runCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}, nil
}

// Close tears the tab down. Closing twice is a no-op.
func (s *Sandbox) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pendingReady = nil
		s.mu.Unlock()

		if s.cancel != nil {
			s.cancel()
		}
		s.logger.Debug("Sandbox closed", zap.String("sandbox_id", s.id))
	})
	return nil
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}
