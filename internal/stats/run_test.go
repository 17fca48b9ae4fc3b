package stats

import (
	"errors"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		played bool
		want   Outcome
	}{
		{"played", nil, true, OutcomeCompleted},
		{"loaded only", nil, false, OutcomeNoPlayback},
		{"failed", errors.New("manifest 404"), false, OutcomeFailed},
		{"error wins", errors.New("late"), true, OutcomeFailed},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err, tc.played); got != tc.want {
				t.Errorf("Classify = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRunResult_SessionID(t *testing.T) {
	if got := (RunResult{}).SessionID(); got != NotAvailable {
		t.Errorf("empty SessionID = %q, want NA", got)
	}
	if got := (RunResult{CorrelationID: "abc"}).SessionID(); got != "abc" {
		t.Errorf("SessionID = %q", got)
	}
}

func TestRunResult_Duration(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := RunResult{Started: start, Finished: start.Add(61 * time.Second)}
	if r.Duration() != 61*time.Second {
		t.Errorf("Duration = %v", r.Duration())
	}
	r.Finished = start.Add(-time.Second)
	if r.Duration() != 0 {
		t.Errorf("negative duration should clamp to 0, got %v", r.Duration())
	}
}
