// Package summary generates meeting summaries from transcript segments.
//
// Summarization is best-effort. Generate never returns an error; callers get
// an Outcome that is Generated, Skipped or Failed, and only a Generated
// outcome carries a summary.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cuongbtq/transcribe-be/internal/api/domain"
)

// ErrEmptyResponse is reported when the model returns no text content
var ErrEmptyResponse = errors.New("summary response has no text content")

// Kind classifies a summarization outcome
type Kind int

const (
	KindGenerated Kind = iota
	KindSkipped
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindGenerated:
		return "generated"
	case KindSkipped:
		return "skipped"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the typed result of a summarization attempt. Reason explains a
// skip and Err holds an absorbed failure.
type Outcome struct {
	Kind    Kind
	Summary *domain.Summary
	Reason  string
	Err     error
}

// Generated wraps a successful summary
func Generated(s *domain.Summary) Outcome {
	return Outcome{Kind: KindGenerated, Summary: s}
}

// Skipped reports that summarization was not attempted
func Skipped(reason string) Outcome {
	return Outcome{Kind: KindSkipped, Reason: reason}
}

// Failed reports an absorbed summarization failure
func Failed(err error) Outcome {
	return Outcome{Kind: KindFailed, Err: err}
}

// Generator produces a summary for a transcript
type Generator interface {
	Generate(ctx context.Context, segments []domain.Segment) Outcome
}

// Noop skips every request. Used when no provider is configured.
type Noop struct {
	Reason string
}

func (n Noop) Generate(context.Context, []domain.Segment) Outcome {
	reason := n.Reason
	if reason == "" {
		reason = "summary provider disabled"
	}
	return Skipped(reason)
}

const promptTemplate = `You are analyzing a meeting transcript. Respond in the SAME LANGUAGE as the transcript (if it's in Mongolian, respond in Mongolian; if English, respond in English).

Return a JSON object with these fields:
- "overview": A 2-3 sentence summary of the meeting
- "key_points": Array of 3-7 key discussion points
- "action_items": Array of action items mentioned (empty array if none)
- "decisions": Array of decisions made (empty array if none)

Return ONLY valid JSON, no markdown fences or extra text.

Transcript:
%s`

// RenderTranscript formats segments as "[speaker]: text" lines
func RenderTranscript(segments []domain.Segment) string {
	lines := make([]string, 0, len(segments))
	for _, s := range segments {
		lines = append(lines, fmt.Sprintf("[%s]: %s", s.Speaker, s.Text))
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt returns the user prompt sent to the model
func BuildPrompt(segments []domain.Segment) string {
	return fmt.Sprintf(promptTemplate, RenderTranscript(segments))
}

// ParseResponse decodes the model's answer. Markdown code fences are tolerated.
func ParseResponse(text string) (*domain.Summary, error) {
	text = stripFences(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var s domain.Summary
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, fmt.Errorf("failed to parse summary response: %w", err)
	}
	if s.Overview == "" {
		return nil, fmt.Errorf("failed to parse summary response: missing overview")
	}

	if s.KeyPoints == nil {
		s.KeyPoints = []string{}
	}
	if s.ActionItems == nil {
		s.ActionItems = []string{}
	}
	if s.Decisions == nil {
		s.Decisions = []string{}
	}
	return &s, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	text = strings.TrimPrefix(text, "```")
	// drop the language tag on the opening fence
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	} else {
		text = ""
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
