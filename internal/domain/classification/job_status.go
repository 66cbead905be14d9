package classification

import "fmt"

// JobStatus represents the current state of a classification job. It enables
// tracking of the job lifecycle from creation through completion or failure.
type JobStatus string

const (
	// JobStatusPending indicates a job has been created and its description
	// handed to the broker, but no worker has picked it up yet.
	JobStatusPending JobStatus = "PENDING"

	// JobStatusRunning indicates a worker has started classifying. Reserved
	// for a worker-reported "started" signal; nothing drives it yet.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusCompleted indicates a result for the job was ingested.
	JobStatusCompleted JobStatus = "COMPLETED"

	// JobStatusFailed indicates the job's description could not be handed
	// off to the broker.
	JobStatusFailed JobStatus = "FAILED"
)

func (s JobStatus) String() string { return string(s) }

// ParseJobStatus converts a string to a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	switch s {
	case "PENDING":
		return JobStatusPending, nil
	case "RUNNING":
		return JobStatusRunning, nil
	case "COMPLETED":
		return JobStatusCompleted, nil
	case "FAILED":
		return JobStatusFailed, nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ValidateTransition checks if a status transition is valid and returns an
// error if not.
func (s JobStatus) ValidateTransition(target JobStatus) error {
	if !s.isValidTransition(target) {
		return fmt.Errorf("invalid job status transition from %s to %s", s, target)
	}
	return nil
}

// isValidTransition enforces the job lifecycle rules: status only ever moves
// forward, and terminal states are final.
func (s JobStatus) isValidTransition(target JobStatus) bool {
	switch s {
	case JobStatusPending:
		return target == JobStatusRunning || target == JobStatusCompleted || target == JobStatusFailed
	case JobStatusRunning:
		return target == JobStatusCompleted || target == JobStatusFailed
	case JobStatusCompleted, JobStatusFailed:
		// Terminal states - no further transitions allowed.
		return false
	default:
		return false
	}
}
