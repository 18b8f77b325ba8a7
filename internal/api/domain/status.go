package domain

import "fmt"

// Status is the lifecycle state of a transcription job
type Status string

const (
	StatusPending      Status = "pending"
	StatusProcessing   Status = "processing"
	StatusConverting   Status = "converting"
	StatusDiarizing    Status = "diarizing"
	StatusTranscribing Status = "transcribing"
	StatusSummarizing  Status = "summarizing"
	StatusComplete     Status = "complete"
	StatusFailed       Status = "failed"
)

// stageRank orders the non-terminal stages. A job only moves forward along it.
var stageRank = map[Status]int{
	StatusPending:      0,
	StatusProcessing:   1,
	StatusConverting:   2,
	StatusDiarizing:    3,
	StatusTranscribing: 4,
	StatusSummarizing:  5,
}

// allowedFrom lists, per target status, the statuses a job may be in before
// moving to it. Terminal statuses never appear as predecessors.
var allowedFrom = buildTransitionTable()

func buildTransitionTable() map[Status][]Status {
	table := make(map[Status][]Status)

	nonTerminal := []Status{
		StatusPending,
		StatusProcessing,
		StatusConverting,
		StatusDiarizing,
		StatusTranscribing,
		StatusSummarizing,
	}

	for _, target := range nonTerminal {
		if target == StatusPending {
			// pending is only ever set at creation
			continue
		}
		for _, from := range nonTerminal {
			if stageRank[from] <= stageRank[target] {
				table[target] = append(table[target], from)
			}
		}
	}

	table[StatusComplete] = append([]Status(nil), nonTerminal...)
	table[StatusFailed] = append([]Status(nil), nonTerminal...)

	return table
}

// ParseStatus converts a wire string into a Status
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

// Valid reports whether s is a member of the enumeration
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusConverting, StatusDiarizing,
		StatusTranscribing, StatusSummarizing, StatusComplete, StatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further mutation is permitted
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}

// CanTransition reports whether a job in status from may move to status to.
// Repeating the current non-terminal stage is allowed so retried callbacks can
// merge fields.
func CanTransition(from, to Status) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}
