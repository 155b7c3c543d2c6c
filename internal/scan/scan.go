// Package scan runs a capture session to completion without a live camera:
// image files stand in for shots, and the run waits out any flash retry.
// The CLI and the MCP server both drive recognition through it.
package scan

import (
	"context"
	"database/sql"
	"log"

	"github.com/hpungsan/medscan/internal/backend"
	"github.com/hpungsan/medscan/internal/camera"
	"github.com/hpungsan/medscan/internal/config"
	"github.com/hpungsan/medscan/internal/drug"
	"github.com/hpungsan/medscan/internal/errors"
	"github.com/hpungsan/medscan/internal/feedback"
	"github.com/hpungsan/medscan/internal/present"
	"github.com/hpungsan/medscan/internal/session"
)

// Deps are the collaborators shared by every run.
type Deps struct {
	DB        *sql.DB        // required when Input.Save is set
	Config    *config.Config // optional, default: config.DefaultConfig()
	Backend   session.Backend
	Notifier  feedback.Notifier // optional, mirrors every notification
	Scheduler session.Scheduler // optional, default: real timers
	Logger    *log.Logger
}

// Input contains parameters for Run.
type Input struct {
	Images   []string // required; one per user capture, flash retries re-shoot the current one
	Flash    bool     // optional, start with the flash on
	Fallback bool     // optional, force the placeholder fallback on
	Save     bool     // optional, append a successful result to history
	Debug    bool     // optional, include transitions and the raw result
}

// Output is the outcome of one run.
type Output struct {
	Session       session.Snapshot        `json:"session"`
	Result        *drug.RecognitionResult `json:"result,omitempty"`
	Narration     string                  `json:"narration,omitempty"`
	DisplayText   string                  `json:"display_text,omitempty"`
	Markdown      string                  `json:"markdown,omitempty"`
	Saved         *drug.HistoryRecord     `json:"saved,omitempty"`
	Notifications []string                `json:"notifications"`
	Transitions   []session.Transition    `json:"transitions,omitempty"`
	Raw           string                  `json:"raw,omitempty"`
}

// Recognized reports whether the run delivered a result.
func (o *Output) Recognized() bool {
	return o != nil && o.Result != nil
}

// NewBackend builds the HTTP backend client from cfg.
func NewBackend(cfg *config.Config, logger *log.Logger) *backend.Client {
	opts := []backend.Option{
		backend.WithDefaultWait(cfg.DefaultWait()),
		backend.WithMaxWait(cfg.MaxWait()),
	}
	if logger != nil {
		opts = append(opts, backend.WithLogger(logger))
	}
	return backend.New(cfg.BaseURL, cfg.RequestTimeout(), opts...)
}

// Run captures Images in order until one is recognized. A retake request
// moves on to the next image, while a flash retry re-shoots the current
// one. Any pipeline error ends the run and is returned. When every image
// was used without a result, Output has no Result and err is nil;
// Notifications say why.
//
// A save failure returns both the Output and the error.
func Run(ctx context.Context, deps Deps, input Input) (*Output, error) {
	if len(input.Images) == 0 {
		return nil, errors.NewInvalidRequest("at least one image path is required")
	}
	if deps.Backend == nil {
		return nil, errors.NewInvalidRequest("backend is required")
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	cam, err := camera.NewFiles(input.Images...)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	var notes feedback.Recorder
	opts := session.Options{
		Backend:   deps.Backend,
		Camera:    cam,
		Notifier:  feedback.Multi(&notes, deps.Notifier),
		Scheduler: deps.Scheduler,
		Logger:    logger,
	}
	opts.ApplyConfig(cfg)
	if input.Fallback {
		opts.FallbackOnRecognitionFailure = true
	}

	sess := session.New(ctx, opts)
	defer sess.Close()
	sess.SetFlash(input.Flash)

	for {
		// The pipeline error is re-read after settling so flash retries
		// that fail on the timer are reported too.
		_ = sess.CapturePhoto(ctx)
		if err := sess.WaitSettled(ctx); err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := sess.Err(); err != nil {
			return nil, err
		}
		if sess.Status() == session.StatusDone || !cam.Next() {
			break
		}
		logger.Printf("[session %s] retake requested, moving to the next image (%d after it)", sess.ID(), cam.Remaining())
	}

	out := &Output{
		Session:       sess.Snapshot(),
		Notifications: notes.Messages(),
	}
	if input.Debug {
		out.Transitions = sess.Transitions()
	}

	result := sess.Result()
	if result == nil {
		return out, nil
	}

	p := present.New(result, present.Options{
		DB:        deps.DB,
		Config:    cfg,
		Notifier:  feedback.Multi(&notes, deps.Notifier),
		Session:   sess,
		SessionID: sess.ID(),
		Logger:    logger,
	})
	out.Result = result
	out.Narration = p.Narration()
	out.DisplayText = p.DisplayText()
	out.Markdown = p.Markdown()
	if input.Debug {
		out.Raw = p.DebugDump()
	}

	if input.Save {
		saved, err := p.Save(ctx)
		out.Notifications = notes.Messages()
		if err != nil {
			return out, err
		}
		out.Saved = &saved.Record
	}
	return out, nil
}

// HealthOutput is the outcome of Health.
type HealthOutput struct {
	BaseURL   string `json:"base_url"`
	Reachable bool   `json:"reachable"`
	Message   string `json:"message"`
}

// Health probes the backend the way a session does on startup.
func Health(ctx context.Context, deps Deps, baseURL string) *HealthOutput {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	var notes feedback.Recorder
	opts := session.Options{
		Backend:  deps.Backend,
		Notifier: feedback.Multi(&notes, deps.Notifier),
		Logger:   deps.Logger,
	}
	opts.ApplyConfig(cfg)

	sess := session.New(ctx, opts)
	defer sess.Close()

	out := &HealthOutput{
		BaseURL:   baseURL,
		Reachable: sess.CheckHealth(ctx) == session.Reachable,
	}
	if msgs := notes.Messages(); len(msgs) > 0 {
		out.Message = msgs[len(msgs)-1]
	}
	return out
}
