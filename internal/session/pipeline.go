package session

import (
	"context"

	"github.com/hpungsan/medscan/internal/drug"
	"github.com/hpungsan/medscan/internal/errors"
)

// CapturePhoto starts one capture pipeline and runs it to its first
// resting point: a delivered result, a retake request, a scheduled flash
// retry, or a failure. It is a no-op while a pipeline is in flight.
//
// A pipeline failure is notified to the user and also returned.
func (s *Session) CapturePhoto(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.NewSessionClosed(s.id)
	}
	if Busy(s.status) {
		status := s.status
		s.mu.Unlock()
		s.logf("capture ignored while %s", status)
		return nil
	}
	s.flashRetries = 0
	s.last = nil
	s.transitionLocked(EventCapture)
	s.mu.Unlock()

	ctx, cancel := s.pipelineContext(ctx)
	defer cancel()
	return s.run(ctx)
}

// pipelineContext is cancelled when either ctx or the session ends.
func (s *Session) pipelineContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// run executes the pipeline from Capturing and records its outcome.
func (s *Session) run(ctx context.Context) error {
	err := s.pipeline(ctx)
	s.mu.Lock()
	s.lastErr = err
	s.releaseLocked()
	s.mu.Unlock()
	return err
}

func (s *Session) pipeline(ctx context.Context) error {
	s.mu.Lock()
	probe := s.probe || !s.captureEnabled
	s.mu.Unlock()

	if probe {
		if err := s.backend.Health(ctx); err != nil {
			s.mu.Lock()
			s.captureEnabled = false
			s.transitionLocked(EventProbeFailed)
			s.mu.Unlock()
			s.logf("pre-capture probe failed: %v", err)
			s.notify(s.msg.serviceUnavailable)
			return asMedError(err, errors.ErrConnectivity)
		}
		s.mu.Lock()
		s.captureEnabled = true
		s.mu.Unlock()
	}

	s.mu.Lock()
	flash := s.flash
	s.mu.Unlock()

	s.notify(s.msg.takingPhoto)
	img, err := s.camera.Capture(ctx, flash)
	if err != nil {
		s.fail(EventCaptureFailed)
		s.logf("capture failed: %v", err)
		s.notify(s.msg.captureFailed)
		return errors.NewCaptureFailed(err)
	}

	s.mu.Lock()
	s.attempts++
	ok := s.transitionLocked(EventPhotoTaken)
	s.mu.Unlock()
	if !ok {
		return errors.NewSessionClosed(s.id)
	}

	return s.analyze(ctx, img)
}

// analyze is the quality gate.
func (s *Session) analyze(ctx context.Context, img drug.Image) error {
	s.notify(s.msg.analyzing)
	guidance, err := s.backend.AnalyzeImage(ctx, img)
	if err != nil {
		s.fail(EventAnalysisFailed)
		s.logf("quality analysis failed: %v", err)
		s.notify(s.msg.analysisFailed)
		return asMedError(err, errors.ErrQualityAnalysisFailed)
	}

	switch guidance.Action {
	case drug.ActionRetake:
		s.mu.Lock()
		s.transitionLocked(EventGuidanceRetake)
		s.mu.Unlock()
		s.notify(orDefault(guidance.Message, s.msg.retake))
		return nil

	case drug.ActionIncreaseLightRetry:
		s.scheduleFlashRetry(guidance)
		return nil
	}

	s.mu.Lock()
	ok := s.transitionLocked(EventGuidanceProceed)
	s.mu.Unlock()
	if !ok {
		return errors.NewSessionClosed(s.id)
	}
	return s.recognize(ctx, img)
}

// scheduleFlashRetry turns the flash on and arms a single retry after the
// guidance wait, or gives up once the per-capture cap is reached.
func (s *Session) scheduleFlashRetry(guidance drug.QualityGuidance) {
	s.mu.Lock()
	s.flash = true
	if s.flashRetries >= s.maxRetries {
		s.transitionLocked(EventFlashExhausted)
		s.mu.Unlock()
		s.logf("flash retries exhausted after %d", s.maxRetries)
		s.notify(s.msg.tooDark)
		return
	}
	if !s.transitionLocked(EventGuidanceFlash) {
		s.mu.Unlock()
		return
	}
	s.flashRetries++
	s.stopPendingLocked()
	gen := s.pendingGen
	wait := guidance.Wait
	if wait <= 0 {
		wait = drug.DefaultWait
	}
	s.pending = s.scheduler.AfterFunc(wait, func() { s.fireFlashRetry(gen) })
	retry := s.flashRetries
	s.mu.Unlock()

	s.logf("flash retry %d/%d in %s", retry, s.maxRetries, wait)
	s.notify(orDefault(guidance.Message, s.msg.flashOn))
}

// fireFlashRetry re-enters the pipeline from the timer. A stale or
// cancelled timer does nothing.
func (s *Session) fireFlashRetry(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.pendingGen || s.status != StatusAwaitingFlash {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.transitionLocked(EventFlashTimerFired)
	s.mu.Unlock()

	if err := s.run(s.ctx); err != nil {
		s.logf("flash retry ended: %v", err)
	}
}

// recognize submits the accepted image and delivers the result.
func (s *Session) recognize(ctx context.Context, img drug.Image) error {
	s.notify(s.msg.recognizing)
	result, err := s.backend.Recognize(ctx, img)
	if err != nil {
		if !s.fallback {
			s.fail(EventRecognitionFailed)
			s.logf("recognition failed: %v", err)
			s.notify(s.msg.recognitionRetry)
			return asMedError(err, errors.ErrRecognitionFailed)
		}
		s.logf("recognition failed, using placeholder result: %v", err)
		result = drug.PlaceholderResult(s.locale, s.now())
	}

	if !result.Success {
		s.fail(EventRecognitionFailed)
		text := orDefault(result.Error, s.msg.recognitionFailed)
		s.logf("recognition rejected: %s (%s)", text, result.ErrorCode)
		s.notify(text)
		return errors.NewRecognitionFailed(text, nil)
	}

	s.mu.Lock()
	ok := s.transitionLocked(EventRecognized)
	if ok {
		s.last = result
	}
	s.mu.Unlock()
	if !ok {
		return errors.NewSessionClosed(s.id)
	}

	if s.sink != nil {
		s.sink.Deliver(result)
	}
	return nil
}

func (s *Session) fail(e Event) {
	s.mu.Lock()
	s.transitionLocked(e)
	s.mu.Unlock()
}

// asMedError keeps a structured error as is and wraps anything else
// under code.
func asMedError(err error, code errors.ErrorCode) error {
	if _, ok := err.(*errors.MedError); ok {
		return err
	}
	switch code {
	case errors.ErrConnectivity:
		return errors.NewConnectivity("", err)
	case errors.ErrQualityAnalysisFailed:
		return errors.NewQualityAnalysisFailed(err.Error(), err)
	case errors.ErrRecognitionFailed:
		return errors.NewRecognitionFailed(err.Error(), err)
	}
	return errors.NewInternal(err)
}
