package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hpungsan/medscan/internal/drug"
	"github.com/hpungsan/medscan/internal/errors"
)

// analyzeResponse accepts both observed shapes:
// {analysis:{guidance}} and {success, analysis:{guidance}}.
type analyzeResponse struct {
	Success  *bool            `json:"success"`
	Error    string           `json:"error"`
	Analysis *analysisPayload `json:"analysis"`
}

type analysisPayload struct {
	Guidance *guidancePayload `json:"guidance"`
}

type guidancePayload struct {
	Action        string   `json:"action"`
	Message       string   `json:"message"`
	VoiceGuidance string   `json:"voice_guidance"`
	WaitTime      *float64 `json:"wait_time"`
}

// AnalyzeImage uploads img to {base}/analyze-image and interprets the guidance.
// Transport failures, unparsable bodies, success:false, and a missing
// analysis block are all QUALITY_ANALYSIS_FAILED.
func (c *Client) AnalyzeImage(ctx context.Context, img drug.Image) (drug.QualityGuidance, error) {
	status, body, err := c.upload(ctx, PathAnalyzeImage, img)
	if err != nil {
		return drug.QualityGuidance{}, errors.NewQualityAnalysisFailed("image analysis request failed", err)
	}
	return parseAnalyzeResponse(status, body, c.defaultWait, c.maxWait)
}

// parseAnalyzeResponse interprets an analyze-image body. A positive
// wait_time replaces defaultWait and is clamped to maxWait.
func parseAnalyzeResponse(status int, body []byte, defaultWait, maxWait time.Duration) (drug.QualityGuidance, error) {
	var resp analyzeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if !isSuccessStatus(status) {
			return drug.QualityGuidance{}, errors.NewQualityAnalysisFailed(
				fmt.Sprintf("image analysis returned HTTP %d", status), err)
		}
		return drug.QualityGuidance{}, errors.NewQualityAnalysisFailed("image analysis response is not valid JSON", err)
	}

	if resp.Success != nil && !*resp.Success {
		msg := strings.TrimSpace(resp.Error)
		if msg == "" {
			msg = "image analysis failed"
		}
		return drug.QualityGuidance{}, errors.NewQualityAnalysisFailed(msg, nil)
	}
	if resp.Analysis == nil {
		msg := "image analysis result missing"
		if !isSuccessStatus(status) {
			msg = fmt.Sprintf("%s (HTTP %d)", msg, status)
		}
		return drug.QualityGuidance{}, errors.NewQualityAnalysisFailed(msg, nil)
	}

	g := drug.QualityGuidance{Action: drug.ActionProceed, Wait: defaultWait}
	if p := resp.Analysis.Guidance; p != nil {
		g.Action = drug.ParseAction(p.Action)
		g.Message = strings.TrimSpace(p.Message)
		g.VoiceGuidance = strings.TrimSpace(p.VoiceGuidance)
		if p.WaitTime != nil && *p.WaitTime > 0 {
			g.Wait = waitDuration(*p.WaitTime, maxWait)
		}
	}
	return g, nil
}

// waitDuration converts seconds to a duration no longer than limit. The
// comparison happens in seconds so huge values never overflow Duration.
func waitDuration(seconds float64, limit time.Duration) time.Duration {
	if seconds >= limit.Seconds() {
		return limit
	}
	return time.Duration(seconds * float64(time.Second))
}
