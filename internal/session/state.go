package session

// Status is the capture session's position in the pipeline.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusCapturing        Status = "capturing"
	StatusAnalyzingQuality Status = "analyzing_quality"
	StatusAwaitingRetake   Status = "awaiting_retake"
	StatusAwaitingFlash    Status = "awaiting_flash"
	StatusRecognizing      Status = "recognizing"
	StatusDone             Status = "done"
	StatusFailed           Status = "failed"
)

// Event names a transition trigger.
type Event string

const (
	EventCapture           Event = "capture"
	EventProbeFailed       Event = "probe_failed"
	EventPhotoTaken        Event = "photo_taken"
	EventCaptureFailed     Event = "capture_failed"
	EventGuidanceProceed   Event = "guidance_proceed"
	EventGuidanceRetake    Event = "guidance_retake"
	EventGuidanceFlash     Event = "guidance_flash"
	EventFlashExhausted    Event = "flash_exhausted"
	EventAnalysisFailed    Event = "analysis_failed"
	EventFlashTimerFired   Event = "flash_timer_fired"
	EventRecognized        Event = "recognized"
	EventRecognitionFailed Event = "recognition_failed"
	EventSettle            Event = "settle"
	EventReset             Event = "reset"
)

// transitions is the complete table. EventReset is accepted from every
// state and is handled in Next.
var transitions = map[Status]map[Event]Status{
	StatusIdle: {
		EventCapture: StatusCapturing,
	},
	StatusCapturing: {
		EventProbeFailed:   StatusIdle,
		EventPhotoTaken:    StatusAnalyzingQuality,
		EventCaptureFailed: StatusFailed,
	},
	StatusAnalyzingQuality: {
		EventGuidanceProceed: StatusRecognizing,
		EventGuidanceRetake:  StatusAwaitingRetake,
		EventGuidanceFlash:   StatusAwaitingFlash,
		EventFlashExhausted:  StatusAwaitingRetake,
		EventAnalysisFailed:  StatusFailed,
	},
	StatusAwaitingFlash: {
		EventFlashTimerFired: StatusCapturing,
	},
	StatusAwaitingRetake: {
		EventSettle: StatusIdle,
	},
	StatusRecognizing: {
		EventRecognized:        StatusDone,
		EventRecognitionFailed: StatusFailed,
	},
	StatusFailed: {
		EventSettle: StatusIdle,
	},
	StatusDone: {
		EventCapture: StatusCapturing,
	},
}

// Next returns the state reached from s on e, and false if e is not valid in s.
func Next(s Status, e Event) (Status, bool) {
	if e == EventReset {
		return StatusIdle, true
	}
	to, ok := transitions[s][e]
	return to, ok
}

// Busy reports whether s holds the processing guard. While busy, a
// user-initiated capture is ignored.
func Busy(s Status) bool {
	switch s {
	case StatusCapturing, StatusAnalyzingQuality, StatusAwaitingFlash, StatusRecognizing:
		return true
	}
	return false
}

// Transient reports whether s is passed through on the way back to Idle.
func Transient(s Status) bool {
	return s == StatusFailed || s == StatusAwaitingRetake
}
