package model

import "errors"

var (
	// ErrInsufficientHistory is returned when a series is too short to produce
	// any fully defined feature row.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrMissingFeature is returned when a required feature column is absent.
	ErrMissingFeature = errors.New("missing feature column")

	// ErrEmptyPartition is returned when training is attempted on an empty
	// train or test partition.
	ErrEmptyPartition = errors.New("empty train/test partition")

	// ErrInvalidFraction is returned for a test fraction outside (0, 1).
	ErrInvalidFraction = errors.New("test fraction must be in (0, 1)")

	// ErrArtifactNotFound is returned when a model artifact or metrics record
	// has not been written for a symbol.
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrArtifactUnreadable is returned when an artifact exists but cannot be
	// decoded, for example after a format change.
	ErrArtifactUnreadable = errors.New("artifact unreadable")
)
