package drug

import "time"

// PlaceholderResult synthesizes the fixed sample result used when recognition
// fails and the fallback policy is enabled. The result is flagged Placeholder
// and its narration says it is sample data.
func PlaceholderResult(localeName string, now time.Time) *RecognitionResult {
	info := &DrugInfo{
		Name:         "Amoxicillin Capsules",
		Dosage:       "0.5 g per dose, 3 times daily",
		Usage:        "Oral",
		Manufacturer: "Sample Pharmaceutical Co., Ltd.",
		ExpiryDate:   "2025-12",
		BatchNumber:  "20241201",
	}
	return &RecognitionResult{
		Success:           true,
		DrugInfo:          info,
		ConfidencePercent: 95,
		VoiceGuidance:     lookupLocale(localeName).sampleNote + Narrate(info, localeName),
		Validation:        Validate(info),
		ProcessingTime:    now.UTC().Format(time.RFC3339),
		Placeholder:       true,
	}
}
