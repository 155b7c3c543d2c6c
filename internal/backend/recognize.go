package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hpungsan/medscan/internal/drug"
	"github.com/hpungsan/medscan/internal/errors"
)

// GenericRecognitionError is used when the backend reports failure without a message.
const GenericRecognitionError = "recognition failed"

// Recognize uploads img to {base}/recognize.
//
// A well-formed body is returned as a result even when it reports
// success:false (the backend pairs those with 4xx/5xx statuses). Transport
// failures, unparsable bodies, and success:true without drug_info return a
// RECOGNITION_FAILED error instead; callers may apply a fallback policy to those.
func (c *Client) Recognize(ctx context.Context, img drug.Image) (*drug.RecognitionResult, error) {
	status, body, err := c.upload(ctx, PathRecognize, img)
	if err != nil {
		return nil, errors.NewRecognitionFailed("recognition request failed", err)
	}
	return parseRecognizeResponse(status, body)
}

func parseRecognizeResponse(status int, body []byte) (*drug.RecognitionResult, error) {
	var result drug.RecognitionResult
	if err := json.Unmarshal(body, &result); err != nil {
		if !isSuccessStatus(status) {
			return nil, errors.NewRecognitionFailed(fmt.Sprintf("recognition returned HTTP %d", status), err)
		}
		return nil, errors.NewRecognitionFailed("recognition response is not valid JSON", err)
	}

	// Fields the backend may set that a client never trusts from the wire.
	result.Placeholder = false

	if !result.Success {
		result.DrugInfo = nil
		result.Error = strings.TrimSpace(result.Error)
		if result.Error == "" {
			result.Error = GenericRecognitionError
		}
		return &result, nil
	}

	if result.DrugInfo == nil {
		return nil, errors.NewRecognitionFailed("recognition response missing drug_info", nil)
	}
	result.DrugInfo.Normalize()
	result.ConfidencePercent = drug.ClampConfidence(result.ConfidencePercent)
	result.VoiceGuidance = strings.TrimSpace(result.VoiceGuidance)
	if result.Validation == nil {
		result.Validation = drug.Validate(result.DrugInfo)
	}
	return &result, nil
}
