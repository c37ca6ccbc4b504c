// Package printing runs intercepted receipt URLs through the print
// pipeline: open a sandbox, wait for readiness, deliver, clean up.
package printing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cravings/printagent/internal/domain/printing"
	"github.com/cravings/printagent/internal/infrastructure/delivery"
	"github.com/cravings/printagent/internal/infrastructure/logger"
	"github.com/cravings/printagent/internal/infrastructure/metrics"
	infra "github.com/cravings/printagent/internal/infrastructure/sandbox"
	"github.com/cravings/printagent/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Orchestrator defaults
const (
	DefaultJobTimeout   = 20 * time.Second
	DefaultCleanupDelay = 1500 * time.Millisecond
	historyWriteTimeout = 5 * time.Second
)

var (
	// ErrNotReceiptURL is returned by Submit for URLs that should open normally
	ErrNotReceiptURL = errors.New("not a receipt URL")
	// ErrOrchestratorClosed is returned once Shutdown has been called
	ErrOrchestratorClosed = errors.New("print orchestrator is shut down")
)

// Config holds the orchestrator settings
type Config struct {
	Strategy        printing.Strategy
	Timeout         time.Duration
	CleanupDelay    time.Duration
	NotifyOnTimeout bool
	WidthHint       int
}

// Deps carries the orchestrator collaborators. Deliverer, Opener and
// Settings are required.
type Deps struct {
	Opener    SandboxOpener
	Deliverer delivery.Deliverer
	Settings  SettingsSource
	Status    StatusPublisher
	ErrorLog  ErrorRecorder
	History   printing.HistoryRepository
	Metrics   *metrics.PrintMetrics
	Logger    *zap.Logger
}

// Outcome is the terminal result of one job
type Outcome struct {
	JobID  uuid.UUID
	State  printing.JobState
	Code   string
	Reason string
}

// Succeeded reports whether the job reached the printer
func (o Outcome) Succeeded() bool {
	return o.State == printing.JobStateCompleted
}

// Ticket tracks a submitted job. Done receives exactly one Outcome.
type Ticket struct {
	JobID uuid.UUID
	Done  <-chan Outcome
}

// JobView is a read-only snapshot of an in-flight job
type JobView struct {
	ID        uuid.UUID
	URL       string
	Kind      printing.DocumentKind
	Strategy  printing.Strategy
	State     printing.JobState
	SandboxID string
	CreatedAt time.Time
}

type jobEntry struct {
	job      *printing.PrintJob
	handle   SandboxHandle
	timer    *time.Timer
	pending  []infra.Event
	cancel   context.CancelFunc
	ctx      context.Context
	span     trace.Span
	done     chan Outcome
	logger   *zap.Logger
	released bool
}

// Loop messages. Every state change happens on the control goroutine.
type (
	msgRegister struct {
		entry *jobEntry
		reply chan error
	}
	msgBound struct {
		jobID  uuid.UUID
		handle SandboxHandle
		err    error
	}
	msgSandbox struct {
		jobID uuid.UUID
		event infra.Event
	}
	msgTimeout struct {
		jobID uuid.UUID
	}
	msgDelivered struct {
		jobID uuid.UUID
		err   error
	}
	msgCleanup struct {
		jobID uuid.UUID
		reply chan bool
	}
	msgClosed struct {
		sandboxID string
	}
	msgSnapshot struct {
		reply chan []JobView
	}
	msgShutdown struct {
		reply chan struct{}
	}
)

// Orchestrator owns every in-flight print job
type Orchestrator struct {
	config Config
	deps   Deps
	logger *zap.Logger

	events   chan any
	inbox    *sandboxInbox
	stopped  chan struct{}
	stopOnce sync.Once
	baseCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// owned by the control goroutine
	jobs      map[uuid.UUID]*jobEntry
	bySandbox map[string]*jobEntry
	closers   map[string]*pendingClose
}

// pendingClose is a sandbox close deferred by the cleanup delay
type pendingClose struct {
	timer  *time.Timer
	handle SandboxHandle
}

// NewOrchestrator validates deps and starts the control goroutine
func NewOrchestrator(config Config, deps Deps) (*Orchestrator, error) {
	if deps.Opener == nil {
		return nil, fmt.Errorf("sandbox opener is required")
	}
	if deps.Deliverer == nil {
		return nil, fmt.Errorf("deliverer is required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("settings source is required")
	}
	if config.Strategy == "" {
		config.Strategy = printing.StrategyNative
	}
	if !config.Strategy.IsValid() {
		return nil, fmt.Errorf("invalid print strategy: %q", config.Strategy)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultJobTimeout
	}
	if config.CleanupDelay < 0 {
		config.CleanupDelay = 0
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		config:    config,
		deps:      deps,
		logger:    deps.Logger.Named("orchestrator"),
		events:    make(chan any, 64),
		inbox:     newSandboxInbox(),
		stopped:   make(chan struct{}),
		baseCtx:   ctx,
		cancel:    cancel,
		jobs:      make(map[uuid.UUID]*jobEntry),
		bySandbox: make(map[string]*jobEntry),
		closers:   make(map[string]*pendingClose),
	}
	go o.run()
	return o, nil
}

// Config returns the effective configuration
func (o *Orchestrator) Config() Config {
	return o.config
}

// post hands a message to the control goroutine. It never blocks once the
// loop has stopped.
func (o *Orchestrator) post(msg any) bool {
	select {
	case <-o.stopped:
		return false
	default:
	}
	select {
	case o.events <- msg:
		return true
	case <-o.stopped:
		return false
	}
}

// Submit starts a print job for a receipt URL. The job runs in the
// background; the returned ticket resolves when it reaches a terminal state.
func (o *Orchestrator) Submit(ctx context.Context, url string) (*Ticket, error) {
	if !printing.IsReceiptURL(url) {
		return nil, ErrNotReceiptURL
	}

	job, err := printing.NewPrintJob(url, o.config.Strategy, o.deps.Settings.Current())
	if err != nil {
		return nil, err
	}

	jobCtx, span := telemetry.StartSpan(o.baseCtx, "print.job",
		telemetry.WithAttribute(telemetry.SpanAttrJobID, job.ID.String()),
		telemetry.WithAttribute(telemetry.SpanAttrKind, job.Kind.String()),
		telemetry.WithAttribute(telemetry.SpanAttrStrategy, job.Strategy.String()))

	entry := &jobEntry{
		job:    job,
		ctx:    jobCtx,
		span:   span,
		done:   make(chan Outcome, 1),
		logger: o.logger.With(zap.String("job_id", job.ID.String()), zap.String("kind", job.Kind.String())),
	}

	reply := make(chan error, 1)
	if !o.post(msgRegister{entry: entry, reply: reply}) {
		span.End()
		return nil, ErrOrchestratorClosed
	}
	select {
	case err := <-reply:
		if err != nil {
			span.End()
			return nil, err
		}
	case <-o.stopped:
		span.End()
		return nil, ErrOrchestratorClosed
	}

	jobID := job.ID
	sink := func(ev infra.Event) {
		select {
		case <-o.stopped:
		default:
			o.inbox.push(msgSandbox{jobID: jobID, event: ev})
		}
	}
	handle, openErr := o.deps.Opener.Open(ctx, printing.SandboxURL(url, o.config.WidthHint), sink)
	if !o.post(msgBound{jobID: jobID, handle: handle, err: openErr}) && handle != nil {
		_ = handle.Close()
	}

	return &Ticket{JobID: jobID, Done: entry.done}, nil
}

// Cleanup releases a job early. It is idempotent and reports whether the
// job was still live.
func (o *Orchestrator) Cleanup(jobID uuid.UUID) bool {
	reply := make(chan bool, 1)
	if !o.post(msgCleanup{jobID: jobID, reply: reply}) {
		return false
	}
	select {
	case live := <-reply:
		return live
	case <-o.stopped:
		return false
	}
}

// Jobs returns a snapshot of the in-flight jobs
func (o *Orchestrator) Jobs() []JobView {
	reply := make(chan []JobView, 1)
	if !o.post(msgSnapshot{reply: reply}) {
		return nil
	}
	select {
	case views := <-reply:
		return views
	case <-o.stopped:
		return nil
	}
}

// Shutdown times out all live jobs, closes every sandbox and stops the loop.
// It waits for in-flight deliveries and history writes until ctx is done.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	reply := make(chan struct{})
	if o.post(msgShutdown{reply: reply}) {
		select {
		case <-reply:
		case <-o.stopped:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	waited := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) run() {
	for {
		var msg any
		select {
		case msg = <-o.events:
		case <-o.inbox.ready:
			for _, m := range o.inbox.drain() {
				o.handleSandboxEvent(m.jobID, m.event)
			}
			continue
		}

		switch m := msg.(type) {
		case msgRegister:
			o.handleRegister(m)
		case msgBound:
			o.handleBound(m)
		case msgTimeout:
			o.handleTimeout(m.jobID)
		case msgDelivered:
			o.handleDelivered(m)
		case msgCleanup:
			m.reply <- o.handleCleanup(m.jobID)
		case msgClosed:
			delete(o.closers, m.sandboxID)
		case msgSnapshot:
			m.reply <- o.snapshot()
		case msgShutdown:
			o.handleShutdown()
			close(m.reply)
			return
		}
	}
}

func (o *Orchestrator) handleRegister(m msgRegister) {
	entry := m.entry
	id := entry.job.ID
	o.jobs[id] = entry
	entry.timer = time.AfterFunc(o.config.Timeout, func() {
		o.post(msgTimeout{jobID: id})
	})
	o.deps.Metrics.JobSubmitted(entry.job.Kind.String(), entry.job.Strategy.String())
	entry.logger.Info("Print job created",
		zap.String("url", entry.job.URL),
		zap.String("strategy", entry.job.Strategy.String()),
		zap.Duration("timeout", o.config.Timeout))
	m.reply <- nil
}

func (o *Orchestrator) handleBound(m msgBound) {
	entry, ok := o.jobs[m.jobID]
	if !ok {
		// Job ended before its sandbox opened.
		if m.handle != nil {
			o.closeAsync(m.handle)
		}
		return
	}

	if m.err != nil {
		entry.logger.Error("Failed to open sandbox", zap.Error(m.err))
		o.fail(entry, printing.NewJobError(printing.ErrCodeLoadFailure, m.err.Error(), nil), 0)
		return
	}

	entry.handle = m.handle
	o.deps.Metrics.SandboxOpened()
	if err := entry.job.StartLoading(m.handle.ID()); err != nil {
		entry.logger.Error("Invalid job transition", zap.Error(err))
		o.fail(entry, printing.NewJobError(printing.ErrCodeLoadFailure, err.Error(), nil), 0)
		return
	}
	o.bySandbox[m.handle.ID()] = entry
	telemetry.SetAttributes(entry.span, telemetry.SpanAttrSandboxID, m.handle.ID())
	entry.logger.Debug("Sandbox opened", zap.String("sandbox_id", m.handle.ID()))

	pending := entry.pending
	entry.pending = nil
	for _, ev := range pending {
		if entry.released {
			return
		}
		o.applySandboxEvent(entry, ev)
	}
}

func (o *Orchestrator) handleSandboxEvent(jobID uuid.UUID, ev infra.Event) {
	entry, ok := o.bySandbox[ev.SandboxID]
	if !ok {
		// The sandbox may emit before Open has returned to Submit.
		if pendingEntry, live := o.jobs[jobID]; live && pendingEntry.handle == nil {
			pendingEntry.pending = append(pendingEntry.pending, ev)
			return
		}
		o.deps.Metrics.LateEventDropped()
		o.logger.Debug("Ignoring event for released sandbox",
			zap.String("sandbox_id", ev.SandboxID),
			zap.String("event", ev.Kind.String()))
		return
	}
	o.applySandboxEvent(entry, ev)
}

func (o *Orchestrator) applySandboxEvent(entry *jobEntry, ev infra.Event) {
	if ev.SandboxID != entry.job.SandboxID {
		return
	}
	switch ev.Kind {
	case infra.EventLoaded:
		if entry.job.State != printing.JobStateLoading {
			return
		}
		if err := entry.job.MarkLoaded(); err != nil {
			entry.logger.Warn("Ignoring load event", zap.Error(err))
			return
		}
		telemetry.AddEvent(entry.span, "sandbox_loaded")
		entry.logger.Debug("Sandbox loaded")

	case infra.EventLoadFailed:
		if entry.job.IsTerminal() {
			return
		}
		entry.logger.Error("Print window failed to load", zap.String("reason", ev.Reason))
		o.fail(entry, printing.NewJobError(printing.ErrCodeLoadFailure, ev.Reason, nil), 0)

	case infra.EventReady:
		// Readiness is one-shot; repeats and early signals are ignored.
		if entry.job.State != printing.JobStateAwaitingReady {
			return
		}
		if err := entry.job.StartPrinting(); err != nil {
			entry.logger.Warn("Ignoring ready event", zap.Error(err))
			return
		}
		telemetry.AddEvent(entry.span, "sandbox_ready")
		o.startDelivery(entry, ev.Payload)
	}
}

func (o *Orchestrator) startDelivery(entry *jobEntry, payload string) {
	ctx, cancel := context.WithCancel(entry.ctx)
	entry.cancel = cancel

	surface := &jobSurface{
		jobID:   entry.job.ID.String(),
		kind:    entry.job.Kind,
		payload: payload,
		handle:  entry.handle,
	}
	settings := entry.job.Settings.Clone()
	jobID := entry.job.ID
	strategy := entry.job.Strategy.String()

	entry.logger.Info("Delivering print job", zap.Bool("silent", settings.SilentPrinting))

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, span := telemetry.StartSpan(ctx, "print.deliver",
			telemetry.WithAttribute(telemetry.SpanAttrStrategy, strategy))
		ctx, _ = logger.WithJobID(ctx, o.logger, jobID.String())
		err := o.deps.Deliverer.Deliver(ctx, surface, settings)
		if err != nil {
			telemetry.RecordError(span, err)
		}
		span.End()
		o.post(msgDelivered{jobID: jobID, err: err})
	}()
}

func (o *Orchestrator) handleDelivered(m msgDelivered) {
	entry, ok := o.jobs[m.jobID]
	if !ok || entry.job.State != printing.JobStatePrinting {
		o.deps.Metrics.LateEventDropped()
		o.logger.Debug("Ignoring late delivery result", zap.String("job_id", m.jobID.String()))
		return
	}

	if m.err != nil {
		o.fail(entry, m.err, o.config.CleanupDelay)
		return
	}

	if err := entry.job.Complete(); err != nil {
		entry.logger.Error("Invalid job transition", zap.Error(err))
		return
	}
	entry.logger.Info("Print job sent", zap.Duration("elapsed", entry.job.Duration()))
	telemetry.SetOK(entry.span)
	o.publish(entry, printing.NewPrintSentStatus(entry.job.ID.String()))
	o.release(entry, metrics.OutcomeSuccess, o.config.CleanupDelay)
}

func (o *Orchestrator) handleTimeout(jobID uuid.UUID) {
	entry, ok := o.jobs[jobID]
	if !ok || entry.job.IsTerminal() {
		return
	}
	o.timeOut(entry, true)
}

// timeOut ends a live job. expired marks a real deadline miss, which is
// written to the error log; shutdown and external cleanup are not.
func (o *Orchestrator) timeOut(entry *jobEntry, expired bool) {
	previous := entry.job.State
	if err := entry.job.TimeOut(); err != nil {
		entry.logger.Error("Invalid job transition", zap.Error(err))
		return
	}
	entry.logger.Warn("Print job timed out",
		zap.String("state", previous.String()),
		zap.Duration("timeout", o.config.Timeout))
	telemetry.SetAttributes(entry.span, telemetry.SpanAttrErrorCode, printing.ErrCodeReadyTimeout)
	if expired && o.deps.ErrorLog != nil {
		o.deps.ErrorLog.Record(fmt.Sprintf("Print job %s (%s) failed [%s]: no response within %s (last state %s)",
			entry.job.ID, entry.job.Kind, printing.ErrCodeReadyTimeout, o.config.Timeout, previous))
	}
	if o.config.NotifyOnTimeout {
		o.publish(entry, printing.NewPrintTimedOutStatus(entry.job.ID.String()))
	}
	o.release(entry, metrics.OutcomeTimeout, 0)
}

// fail moves a job to failed, reports it and releases it. Cancellation is
// reported but not written to the error log.
func (o *Orchestrator) fail(entry *jobEntry, err error, closeDelay time.Duration) {
	code := printing.ErrorCode(err)
	reason := err.Error()
	cancelled := printing.IsCancelled(err)
	if cancelled {
		reason = printing.ErrCancelled.Error()
	}

	if transitionErr := entry.job.Fail(code, reason); transitionErr != nil {
		entry.logger.Error("Invalid job transition", zap.Error(transitionErr))
		return
	}

	outcome := metrics.OutcomeFailure
	if cancelled {
		outcome = metrics.OutcomeCancelled
		entry.logger.Info("Print cancelled by user")
	} else {
		entry.logger.Error("Print job failed", zap.String("code", code), zap.String("reason", reason))
		telemetry.RecordError(entry.span, err)
		o.deps.Metrics.DeliveryFailed(entry.job.Strategy.String(), code)
		if o.deps.ErrorLog != nil {
			o.deps.ErrorLog.Record(fmt.Sprintf("Print job %s (%s) failed [%s]: %s",
				entry.job.ID, entry.job.Kind, code, reason))
		}
	}
	telemetry.SetAttributes(entry.span, telemetry.SpanAttrErrorCode, code)

	o.publish(entry, printing.NewPrintFailedStatus(entry.job.ID.String(), reason))
	o.release(entry, outcome, closeDelay)
}

func (o *Orchestrator) handleCleanup(jobID uuid.UUID) bool {
	entry, ok := o.jobs[jobID]
	if !ok {
		return false
	}
	o.timeOut(entry, false)
	return true
}

// release is the single cleanup path for every terminal state. It runs at
// most once per job.
func (o *Orchestrator) release(entry *jobEntry, outcome string, closeDelay time.Duration) {
	if entry.released {
		return
	}
	entry.released = true

	if entry.timer != nil {
		entry.timer.Stop()
	}
	if entry.cancel != nil {
		entry.cancel()
	}

	delete(o.jobs, entry.job.ID)
	if entry.handle != nil {
		delete(o.bySandbox, entry.handle.ID())
		o.scheduleClose(entry, closeDelay)
	}

	job := entry.job
	o.deps.Metrics.JobFinished(job.Strategy.String(), outcome, job.Duration())
	telemetry.SetAttributes(entry.span, telemetry.SpanAttrOutcome, outcome)
	entry.span.End()

	o.recordHistory(entry)

	entry.done <- Outcome{
		JobID:  job.ID,
		State:  job.State,
		Code:   job.FailureCode,
		Reason: job.FailureReason,
	}
	close(entry.done)
}

func (o *Orchestrator) scheduleClose(entry *jobEntry, delay time.Duration) {
	handle := entry.handle
	if delay <= 0 {
		o.closeAsync(handle)
		return
	}
	id := handle.ID()
	o.closers[id] = &pendingClose{
		handle: handle,
		timer: time.AfterFunc(delay, func() {
			o.closeSandbox(handle)
			o.post(msgClosed{sandboxID: id})
		}),
	}
	entry.logger.Debug("Sandbox close scheduled", zap.Duration("delay", delay))
}

// closeAsync closes handle off the control goroutine. Tearing a browser
// tab down can take seconds.
func (o *Orchestrator) closeAsync(handle SandboxHandle) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.closeSandbox(handle)
	}()
}

func (o *Orchestrator) closeSandbox(handle SandboxHandle) {
	if err := handle.Close(); err != nil {
		o.logger.Warn("Failed to close sandbox", zap.String("sandbox_id", handle.ID()), zap.Error(err))
	}
	o.deps.Metrics.SandboxClosed()
}

func (o *Orchestrator) recordHistory(entry *jobEntry) {
	if o.deps.History == nil {
		return
	}
	record := printing.NewJobRecord(entry.job)
	log := entry.logger
	ctx := entry.ctx

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
		defer cancel()
		if err := o.deps.History.Save(saveCtx, record); err != nil {
			log.Warn("Failed to record job history", zap.Error(err))
		}
	}()
}

func (o *Orchestrator) publish(entry *jobEntry, status printing.Status) {
	if o.deps.Status == nil {
		return
	}
	o.deps.Status.Publish(entry.ctx, status)
}

func (o *Orchestrator) snapshot() []JobView {
	views := make([]JobView, 0, len(o.jobs))
	for _, entry := range o.jobs {
		views = append(views, JobView{
			ID:        entry.job.ID,
			URL:       entry.job.URL,
			Kind:      entry.job.Kind,
			Strategy:  entry.job.Strategy,
			State:     entry.job.State,
			SandboxID: entry.job.SandboxID,
			CreatedAt: entry.job.CreatedAt,
		})
	}
	return views
}

func (o *Orchestrator) handleShutdown() {
	for _, entry := range o.jobs {
		o.timeOut(entry, false)
	}
	for _, pending := range o.closers {
		// A timer that already fired has closed its sandbox itself.
		if pending.timer.Stop() {
			o.closeAsync(pending.handle)
		}
	}
	o.closers = map[string]*pendingClose{}
	o.cancel()
	o.stopOnce.Do(func() { close(o.stopped) })
}
