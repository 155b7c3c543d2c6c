// Package present turns a delivered recognition result into what the user
// hears and sees, and offers save and retake.
package present

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"

	"github.com/hpungsan/medscan/internal/config"
	"github.com/hpungsan/medscan/internal/drug"
	"github.com/hpungsan/medscan/internal/errors"
	"github.com/hpungsan/medscan/internal/feedback"
	"github.com/hpungsan/medscan/internal/history"
)

// Retaker returns a capture session to Idle. *session.Session satisfies it.
type Retaker interface {
	Retake()
}

// Options configures a Presenter. All fields are optional; Save needs DB.
type Options struct {
	DB        *sql.DB
	Config    *config.Config
	Notifier  feedback.Notifier
	Session   Retaker
	SessionID string
	Logger    *log.Logger
}

type texts struct {
	saved      string
	noDrugInfo string
	saveFailed string
}

var localized = map[string]texts{
	"en": {saved: "Saved", noDrugInfo: "No drug information to save", saveFailed: "Save failed"},
	"zh": {saved: "已保存", noDrugInfo: "没有可保存的药品信息", saveFailed: "保存失败"},
}

// Presenter owns one result for the lifetime of the result view.
type Presenter struct {
	result *drug.RecognitionResult
	opts   Options
	locale string
	text   texts
}

// New wraps result. The result is not modified.
func New(result *drug.RecognitionResult, opts Options) *Presenter {
	if opts.Notifier == nil {
		opts.Notifier = feedback.Discard
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	locale := "en"
	if opts.Config != nil && opts.Config.Locale != "" {
		locale = opts.Config.Locale
	}
	t, ok := localized[locale]
	if !ok {
		t = localized["en"]
	}
	return &Presenter{result: result, opts: opts, locale: locale, text: t}
}

// Result returns the wrapped result.
func (p *Presenter) Result() *drug.RecognitionResult { return p.result }

func (p *Presenter) info() *drug.DrugInfo {
	if p.result == nil {
		return nil
	}
	return p.result.DrugInfo
}

// Narration is the backend's voice guidance when present, otherwise the
// locally composed narration.
func (p *Presenter) Narration() string {
	if p.result != nil && p.result.VoiceGuidance != "" {
		return p.result.VoiceGuidance
	}
	return drug.Narrate(p.info(), p.locale)
}

// DisplayText is the one-line field summary.
func (p *Presenter) DisplayText() string {
	return drug.Summary(p.info(), p.locale)
}

// Markdown renders the result card.
func (p *Presenter) Markdown() string {
	var confidence float64
	var placeholder bool
	if p.result != nil {
		confidence = p.result.ConfidencePercent
		placeholder = p.result.Placeholder
	}
	return drug.Markdown(p.info(), confidence, placeholder, p.locale)
}

// ReadAloud sends the narration to the notifier.
func (p *Presenter) ReadAloud() {
	p.opts.Notifier.Notify(p.Narration())
}

// DebugDump is the raw result as indented JSON.
func (p *Presenter) DebugDump() string {
	data, err := json.MarshalIndent(p.result, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

// Save appends the result to history. A result without a drug name is
// rejected without touching storage. Failures are notified and returned;
// the capture session is not affected either way.
func (p *Presenter) Save(ctx context.Context) (*history.SaveOutput, error) {
	if !p.info().HasName() {
		p.opts.Notifier.Notify(p.text.noDrugInfo)
		return nil, errors.NewInvalidRequest(history.NoDrugInfoMessage)
	}
	if p.opts.DB == nil {
		p.opts.Notifier.Notify(p.text.saveFailed)
		return nil, errors.NewPersistenceFailed(nil)
	}

	out, err := history.Save(ctx, p.opts.DB, p.opts.Config, history.SaveInput{
		Result:        p.result,
		VoiceGuidance: p.Narration(),
		SessionID:     p.opts.SessionID,
	})
	if err != nil {
		p.opts.Logger.Printf("save history: %v", err)
		p.opts.Notifier.Notify(p.text.saveFailed)
		return nil, err
	}

	p.opts.Notifier.Notify(p.text.saved)
	return out, nil
}

// Retake discards the result and returns the session to Idle.
func (p *Presenter) Retake() {
	p.result = nil
	if p.opts.Session != nil {
		p.opts.Session.Retake()
	}
}
