package domain

import "errors"

var (
	// ErrTranscriptionNotFound is returned when a job does not exist or is not visible to the caller
	ErrTranscriptionNotFound = errors.New("transcription not found")

	// ErrInvalidStatus is returned for status strings outside the enumeration
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidPeriod is returned for malformed ledger period keys
	ErrInvalidPeriod = errors.New("invalid usage period")
)
