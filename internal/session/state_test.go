package session

import "testing"

func TestNext(t *testing.T) {
	tests := []struct {
		from   Status
		event  Event
		want   Status
		wantOK bool
	}{
		{StatusIdle, EventCapture, StatusCapturing, true},
		{StatusDone, EventCapture, StatusCapturing, true},
		{StatusCapturing, EventPhotoTaken, StatusAnalyzingQuality, true},
		{StatusCapturing, EventProbeFailed, StatusIdle, true},
		{StatusCapturing, EventCaptureFailed, StatusFailed, true},
		{StatusAnalyzingQuality, EventGuidanceProceed, StatusRecognizing, true},
		{StatusAnalyzingQuality, EventGuidanceRetake, StatusAwaitingRetake, true},
		{StatusAnalyzingQuality, EventGuidanceFlash, StatusAwaitingFlash, true},
		{StatusAnalyzingQuality, EventFlashExhausted, StatusAwaitingRetake, true},
		{StatusAnalyzingQuality, EventAnalysisFailed, StatusFailed, true},
		{StatusAwaitingFlash, EventFlashTimerFired, StatusCapturing, true},
		{StatusRecognizing, EventRecognized, StatusDone, true},
		{StatusRecognizing, EventRecognitionFailed, StatusFailed, true},
		{StatusFailed, EventSettle, StatusIdle, true},
		{StatusAwaitingRetake, EventSettle, StatusIdle, true},

		{StatusCapturing, EventCapture, "", false},
		{StatusAwaitingFlash, EventCapture, "", false},
		{StatusRecognizing, EventCapture, "", false},
		{StatusIdle, EventFlashTimerFired, "", false},
		{StatusIdle, EventRecognized, "", false},
		{StatusDone, EventSettle, "", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.event), func(t *testing.T) {
			got, ok := Next(tt.from, tt.event)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Next(%s, %s) = %s, %v; want %s, %v", tt.from, tt.event, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNext_ResetFromEveryState(t *testing.T) {
	for from := range transitions {
		got, ok := Next(from, EventReset)
		if !ok || got != StatusIdle {
			t.Errorf("Next(%s, reset) = %s, %v", from, got, ok)
		}
	}
}

func TestBusy(t *testing.T) {
	busy := map[Status]bool{
		StatusIdle:             false,
		StatusCapturing:        true,
		StatusAnalyzingQuality: true,
		StatusAwaitingRetake:   false,
		StatusAwaitingFlash:    true,
		StatusRecognizing:      true,
		StatusDone:             false,
		StatusFailed:           false,
	}
	for s, want := range busy {
		if Busy(s) != want {
			t.Errorf("Busy(%s) = %v, want %v", s, !want, want)
		}
	}
}

// Every state can reach Idle, so no pipeline outcome strands the guard.
func TestTransitions_AllStatesReachIdle(t *testing.T) {
	for from := range transitions {
		seen := map[Status]bool{}
		queue := []Status{from}
		for len(queue) > 0 {
			s := queue[0]
			queue = queue[1:]
			if seen[s] {
				continue
			}
			seen[s] = true
			for e, to := range transitions[s] {
				if e != EventCapture {
					queue = append(queue, to)
				}
			}
		}
		if from != StatusDone && !seen[StatusIdle] {
			t.Errorf("%s cannot reach idle without a new capture", from)
		}
	}
}
