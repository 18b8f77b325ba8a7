package domain

import (
	"fmt"
	"math"
	"time"
)

// PeriodLayout is the monthly ledger bucket format (YYYY-MM)
const PeriodLayout = "2006-01"

// DefaultFailureMessage is stored when a worker reports failure without a message
const DefaultFailureMessage = "Processing failed"

// Segment is one speaker-attributed span of the transcript
type Segment struct {
	Speaker string  `json:"speaker"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
}

// Summary is the AI-generated meeting summary
type Summary struct {
	Overview    string   `json:"overview"`
	KeyPoints   []string `json:"key_points"`
	ActionItems []string `json:"action_items"`
	Decisions   []string `json:"decisions"`
}

// Result is the job payload: transcript segments plus an optional summary
type Result struct {
	Segments []Segment `json:"segments"`
	Summary  *Summary  `json:"summary,omitempty"`
}

// HasSegments reports whether the result carries transcript content
func (r *Result) HasSegments() bool {
	return r != nil && len(r.Segments) > 0
}

// Merge returns the union of r and next. Segments and summary from next win
// when present; otherwise the existing ones are kept, so a payload never shrinks.
func (r *Result) Merge(next *Result) *Result {
	if next == nil {
		return r
	}
	if r == nil {
		out := *next
		return &out
	}

	out := *r
	if len(next.Segments) > 0 {
		out.Segments = next.Segments
	}
	if next.Summary != nil {
		out.Summary = next.Summary
	}
	return &out
}

// RoundDuration rounds a worker-reported duration half-up to whole seconds.
// Non-finite values and anything that rounds to zero or below are treated
// as absent, so they never occupy the set-once duration.
func RoundDuration(seconds float64) (int, bool) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0, false
	}
	rounded := int(math.Floor(seconds + 0.5))
	if rounded <= 0 {
		return 0, false
	}
	return rounded, true
}

// UsageMinutes converts a stored duration into ledger minutes
func UsageMinutes(durationSeconds int) float64 {
	return float64(durationSeconds) / 60
}

// Period returns the ledger bucket for t in UTC
func Period(t time.Time) string {
	return t.UTC().Format(PeriodLayout)
}

// ParsePeriod validates a YYYY-MM ledger key
func ParsePeriod(s string) (string, error) {
	t, err := time.Parse(PeriodLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return t.Format(PeriodLayout), nil
}
