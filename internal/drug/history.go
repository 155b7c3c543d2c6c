package drug

import "time"

// TimestampLayout is the stored record timestamp: RFC 3339, UTC, milliseconds.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// HistoryRecord is one saved recognition. Records are never mutated after
// creation.
type HistoryRecord struct {
	ID                int64    `json:"id"`
	DrugInfo          DrugInfo `json:"drug_info"`
	Timestamp         string   `json:"timestamp"`
	ConfidencePercent float64  `json:"confidence"`
	VoiceGuidance     string   `json:"voice_guidance"`
	SessionID         string   `json:"session_id,omitempty"`
	Placeholder       bool     `json:"placeholder,omitempty"`
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Time parses Timestamp. The zero time is returned for malformed values.
func (r *HistoryRecord) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}
