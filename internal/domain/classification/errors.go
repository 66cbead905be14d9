package classification

import "errors"

var (
	// ErrNoTargetSpecified indicates a job was created with neither a dataset
	// nor an image reference.
	ErrNoTargetSpecified = errors.New("exactly one of dataset id or image id must be provided")

	// ErrAmbiguousTarget indicates a job was created with both a dataset and
	// an image reference.
	ErrAmbiguousTarget = errors.New("dataset id and image id are mutually exclusive")

	// ErrInvalidConfidence indicates a result confidence outside [0, 1].
	ErrInvalidConfidence = errors.New("confidence must be between 0 and 1")

	// ErrEmptyLabel indicates a result without a label.
	ErrEmptyLabel = errors.New("label must not be empty")

	// ErrJobNotFound indicates the referenced job does not exist.
	ErrJobNotFound = errors.New("classification job not found")

	// ErrImageNotFound indicates the referenced image does not exist.
	ErrImageNotFound = errors.New("image not found")
)
