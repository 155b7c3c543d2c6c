// Package session owns one capture flow: it gates captures behind a
// single-flight guard, routes each photo through quality analysis, drives the
// flash retry timer, and hands successful recognitions to a ResultSink.
package session

import (
	"context"
	"crypto/rand"
	"log"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/medscan/internal/config"
	"github.com/hpungsan/medscan/internal/drug"
	"github.com/hpungsan/medscan/internal/feedback"
)

// DefaultMaxFlashRetries bounds automatic flash re-captures per user capture.
const DefaultMaxFlashRetries = 3

// maxTrail is how many transitions Transitions keeps.
const maxTrail = 64

// Backend is the recognition service as seen by a session.
// *backend.Client satisfies it.
type Backend interface {
	Health(ctx context.Context) error
	AnalyzeImage(ctx context.Context, img drug.Image) (drug.QualityGuidance, error)
	Recognize(ctx context.Context, img drug.Image) (*drug.RecognitionResult, error)
}

// Camera produces one image per call. flash reports whether the torch
// should fire.
type Camera interface {
	Capture(ctx context.Context, flash bool) (drug.Image, error)
}

// ResultSink receives each successful recognition.
type ResultSink interface {
	Deliver(result *drug.RecognitionResult)
}

// ResultSinkFunc adapts a function to ResultSink.
type ResultSinkFunc func(result *drug.RecognitionResult)

// Deliver calls f(result).
func (f ResultSinkFunc) Deliver(result *drug.RecognitionResult) { f(result) }

// Reachability is the outcome of CheckHealth.
type Reachability string

const (
	Reachable   Reachability = "reachable"
	Unreachable Reachability = "unreachable"
)

// Options configures a Session. Backend and Camera are required.
type Options struct {
	Backend   Backend
	Camera    Camera
	Notifier  feedback.Notifier
	Sink      ResultSink
	Scheduler Scheduler
	Logger    *log.Logger

	SkipPreCaptureProbe          bool
	MaxFlashRetries              int
	FallbackOnRecognitionFailure bool
	Locale                       string

	// Now is used for placeholder timestamps. Defaults to time.Now.
	Now func() time.Time
}

// ApplyConfig copies the session-related settings from cfg.
func (o *Options) ApplyConfig(cfg *config.Config) {
	o.SkipPreCaptureProbe = cfg.SkipPreCaptureProbe
	o.MaxFlashRetries = cfg.MaxFlashRetries
	o.FallbackOnRecognitionFailure = cfg.FallbackOnRecognitionFailure
	o.Locale = cfg.Locale
}

// Transition is one recorded state change.
type Transition struct {
	From  Status    `json:"from"`
	To    Status    `json:"to"`
	Event Event     `json:"event"`
	At    time.Time `json:"at"`
}

// Snapshot is a point-in-time view of the session.
type Snapshot struct {
	ID             string `json:"id"`
	Status         Status `json:"status"`
	Processing     bool   `json:"processing"`
	FlashEnabled   bool   `json:"flash_enabled"`
	Attempts       int    `json:"attempts"`
	FlashRetries   int    `json:"flash_retries"`
	CaptureEnabled bool   `json:"capture_enabled"`
	Closed         bool   `json:"closed"`
}

// Session is a single capture flow. All methods are safe for concurrent use.
type Session struct {
	id        string
	backend   Backend
	camera    Camera
	notifier  feedback.Notifier
	sink      ResultSink
	scheduler Scheduler
	logger    *log.Logger
	now       func() time.Time
	msg       messages

	probe      bool
	maxRetries int
	fallback   bool
	locale     string

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	status         Status
	flash          bool
	attempts       int
	flashRetries   int
	captureEnabled bool
	closed         bool
	pending        Timer
	pendingGen     uint64
	settled        chan struct{}
	settledClosed  bool
	last           *drug.RecognitionResult
	lastErr        error
	trail          []Transition
}

// New creates an Idle session. The session's own context derives from
// parent; Close cancels it.
func New(parent context.Context, opts Options) *Session {
	if opts.Notifier == nil {
		opts.Notifier = feedback.Discard
	}
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxFlashRetries <= 0 {
		opts.MaxFlashRetries = DefaultMaxFlashRetries
	}

	ctx, cancel := context.WithCancel(parent)
	settled := make(chan struct{})
	close(settled)

	return &Session{
		id:             newID(),
		backend:        opts.Backend,
		camera:         opts.Camera,
		notifier:       opts.Notifier,
		sink:           opts.Sink,
		scheduler:      opts.Scheduler,
		logger:         opts.Logger,
		now:            opts.Now,
		msg:            messagesFor(opts.Locale),
		probe:          !opts.SkipPreCaptureProbe,
		maxRetries:     opts.MaxFlashRetries,
		fallback:       opts.FallbackOnRecognitionFailure,
		locale:         opts.Locale,
		ctx:            ctx,
		cancel:         cancel,
		status:         StatusIdle,
		captureEnabled: true,
		settled:        settled,
		settledClosed:  true,
	}
}

func newID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ID returns the session's ULID.
func (s *Session) ID() string { return s.id }

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Processing reports whether the single-flight guard is held.
func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Busy(s.status)
}

// FlashEnabled reports whether the next capture fires the flash.
func (s *Session) FlashEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flash
}

// SetFlash sets the flash for subsequent captures.
func (s *Session) SetFlash(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = on
}

// ToggleFlash flips the flash and returns the new value.
func (s *Session) ToggleFlash() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flash = !s.flash
	return s.flash
}

// Attempts returns how many photos were successfully acquired.
func (s *Session) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// CaptureEnabled is false after a failed probe until a later probe succeeds.
func (s *Session) CaptureEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.captureEnabled
}

// Result returns the last delivered result, or nil.
func (s *Session) Result() *drug.RecognitionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Err returns the error that ended the most recent pipeline run, or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Snapshot returns the observable session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:             s.id,
		Status:         s.status,
		Processing:     Busy(s.status),
		FlashEnabled:   s.flash,
		Attempts:       s.attempts,
		FlashRetries:   s.flashRetries,
		CaptureEnabled: s.captureEnabled,
		Closed:         s.closed,
	}
}

// Transitions returns the most recent state changes, oldest first.
func (s *Session) Transitions() []Transition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Transition(nil), s.trail...)
}

// CheckHealth probes the backend. Unreachable disables capture and notifies
// the advisory; it never schedules a retry.
func (s *Session) CheckHealth(ctx context.Context) Reachability {
	err := s.backend.Health(ctx)

	s.mu.Lock()
	s.captureEnabled = err == nil
	s.mu.Unlock()

	if err != nil {
		s.logf("health check failed: %v", err)
		s.notify(s.msg.serviceUnavailable)
		return Unreachable
	}
	s.notify(s.msg.serviceConnected)
	return Reachable
}

// WaitSettled blocks until the guard is released (including any pending
// flash retry) or ctx is done.
func (s *Session) WaitSettled(ctx context.Context) error {
	s.mu.Lock()
	ch := s.settled
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retake discards the delivered result and returns Done to Idle.
func (s *Session) Retake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusDone {
		return
	}
	s.last = nil
	s.transitionLocked(EventReset)
}

// CancelRetry stops a pending flash retry and releases the guard. It
// reports whether a retry was pending.
func (s *Session) CancelRetry() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusAwaitingFlash {
		return false
	}
	s.stopPendingLocked()
	s.transitionLocked(EventReset)
	s.releaseLocked()
	s.logf("flash retry cancelled")
	return true
}

// Close tears the session down: the pending retry is stopped, in-flight
// calls are cancelled, and later captures fail with SESSION_CLOSED.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stopPendingLocked()
	if s.status != StatusIdle {
		s.transitionLocked(EventReset)
	}
	s.releaseLocked()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.logf("closed")
}

// releaseLocked wakes WaitSettled callers once the guard is free. Pipeline
// runs call it only after recording their outcome.
func (s *Session) releaseLocked() {
	if Busy(s.status) || s.settledClosed {
		return
	}
	s.settledClosed = true
	close(s.settled)
}

func (s *Session) stopPendingLocked() {
	s.pendingGen++
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}

// transitionLocked applies e. It returns false, leaving the state untouched,
// when the session is closed or e is not valid from the current state.
func (s *Session) transitionLocked(e Event) bool {
	if s.closed {
		return false
	}
	from := s.status
	to, ok := Next(from, e)
	if !ok {
		s.logf("ignored event %s in state %s", e, from)
		return false
	}
	s.status = to

	if !Busy(from) && Busy(to) {
		s.settled = make(chan struct{})
		s.settledClosed = false
	}

	s.trail = append(s.trail, Transition{From: from, To: to, Event: e, At: s.now()})
	if len(s.trail) > maxTrail {
		s.trail = s.trail[len(s.trail)-maxTrail:]
	}
	s.logf("%s: %s -> %s", e, from, to)

	if Transient(to) {
		return s.transitionLocked(EventSettle)
	}
	return true
}

func (s *Session) notify(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	s.notifier.Notify(text)
}

func (s *Session) logf(format string, args ...any) {
	s.logger.Printf("[session %s] "+format, append([]any{s.id}, args...)...)
}
