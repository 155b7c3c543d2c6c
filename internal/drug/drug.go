// Package drug holds the values that flow through a capture session: the
// captured image, the quality guidance returned for it, and the recognition
// result with its nested DrugInfo.
package drug

import (
	"fmt"
	"strings"
	"time"
)

// Image is a captured photo ready for upload.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Action is the quality gate's decision for a captured image.
type Action string

const (
	ActionProceed            Action = "proceed"
	ActionRetake             Action = "retake"
	ActionIncreaseLightRetry Action = "flash"
)

// ParseAction maps the backend's guidance.action string to an Action.
// Anything other than "retake" or "flash" (including "continue") proceeds.
func ParseAction(s string) Action {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "retake":
		return ActionRetake
	case "flash":
		return ActionIncreaseLightRetry
	default:
		return ActionProceed
	}
}

// DefaultWait is the flash-retry delay when guidance carries no wait_time.
const DefaultWait = 3 * time.Second

// MaxWait caps a backend-supplied wait_time so a bogus value cannot hold
// the capture guard indefinitely.
const MaxWait = 30 * time.Second

// QualityGuidance is produced once per quality-analysis response.
type QualityGuidance struct {
	Action        Action        `json:"action"`
	Message       string        `json:"message,omitempty"`
	VoiceGuidance string        `json:"voice_guidance,omitempty"`
	Wait          time.Duration `json:"wait"`
}

// DrugInfo is the structured label content. Empty strings mean "not recognized".
type DrugInfo struct {
	Name         string `json:"drug_name,omitempty"`
	Dosage       string `json:"dosage,omitempty"`
	Usage        string `json:"usage,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	ExpiryDate   string `json:"expiry_date,omitempty"`
	BatchNumber  string `json:"batch_number,omitempty"`
	Storage      string `json:"storage,omitempty"`
}

// Normalize trims whitespace from every field.
func (d *DrugInfo) Normalize() {
	if d == nil {
		return
	}
	d.Name = strings.TrimSpace(d.Name)
	d.Dosage = strings.TrimSpace(d.Dosage)
	d.Usage = strings.TrimSpace(d.Usage)
	d.Manufacturer = strings.TrimSpace(d.Manufacturer)
	d.ExpiryDate = strings.TrimSpace(d.ExpiryDate)
	d.BatchNumber = strings.TrimSpace(d.BatchNumber)
	d.Storage = strings.TrimSpace(d.Storage)
}

// HasName reports whether the label name was recognized.
func (d *DrugInfo) HasName() bool {
	return d != nil && strings.TrimSpace(d.Name) != ""
}

// Field identifies one DrugInfo attribute.
type Field string

const (
	FieldName         Field = "drug_name"
	FieldDosage       Field = "dosage"
	FieldUsage        Field = "usage"
	FieldManufacturer Field = "manufacturer"
	FieldExpiryDate   Field = "expiry_date"
	FieldBatchNumber  Field = "batch_number"
	FieldStorage      Field = "storage"
)

// FieldOrder is the fixed order used for narration and display.
var FieldOrder = []Field{
	FieldName,
	FieldDosage,
	FieldUsage,
	FieldManufacturer,
	FieldExpiryDate,
	FieldBatchNumber,
	FieldStorage,
}

// FieldValue is a present field with its value.
type FieldValue struct {
	Field Field
	Value string
}

// Get returns the value of a single field.
func (d *DrugInfo) Get(f Field) string {
	if d == nil {
		return ""
	}
	switch f {
	case FieldName:
		return d.Name
	case FieldDosage:
		return d.Dosage
	case FieldUsage:
		return d.Usage
	case FieldManufacturer:
		return d.Manufacturer
	case FieldExpiryDate:
		return d.ExpiryDate
	case FieldBatchNumber:
		return d.BatchNumber
	case FieldStorage:
		return d.Storage
	}
	return ""
}

// Present returns the non-empty fields in FieldOrder.
func (d *DrugInfo) Present() []FieldValue {
	var out []FieldValue
	for _, f := range FieldOrder {
		if v := strings.TrimSpace(d.Get(f)); v != "" {
			out = append(out, FieldValue{Field: f, Value: v})
		}
	}
	return out
}

// RecognitionResult mirrors the /recognize response body.
//
// Invariant (see Check): Success implies DrugInfo != nil; !Success implies Error != "".
type RecognitionResult struct {
	Success           bool        `json:"success"`
	DrugInfo          *DrugInfo   `json:"drug_info,omitempty"`
	ConfidencePercent float64     `json:"ocr_confidence"`
	VoiceGuidance     string      `json:"voice_guidance,omitempty"`
	Error             string      `json:"error,omitempty"`
	ErrorCode         string      `json:"error_code,omitempty"`
	Validation        *Validation `json:"validation,omitempty"`
	ProcessingTime    string      `json:"processing_time,omitempty"`

	// Placeholder marks a synthesized result substituted after a failed call.
	Placeholder bool `json:"placeholder,omitempty"`
}

// Check enforces the success/drug_info and failure/error invariant.
func (r *RecognitionResult) Check() error {
	if r == nil {
		return fmt.Errorf("recognition result is nil")
	}
	if r.Success && r.DrugInfo == nil {
		return fmt.Errorf("success response without drug_info")
	}
	if !r.Success && strings.TrimSpace(r.Error) == "" {
		return fmt.Errorf("failure response without error")
	}
	return nil
}

// ClampConfidence bounds a confidence value to [0, 100].
func ClampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
