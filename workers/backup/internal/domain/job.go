// Package domain holds the backup job model, the stage records exchanged
// with the orchestrator and the error taxonomy.
package domain

import (
	"strings"
	"time"
)

// State is the lifecycle state of a backup job.
type State string

const (
	StateCreated    State = "Created"
	StateSubmitted  State = "Submitted"
	StateInProgress State = "InProgress"
	StateDownloaded State = "Downloaded"
	StateCompleted  State = "Completed"
	StateFailed     State = "Failed"
	StateSkipped    State = "Skipped"
	StateAborted    State = "Aborted"
)

// IsFinal reports whether external consumers may treat the job as done.
func (s State) IsFinal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanonicalState maps a remote job state onto the three states the
// pipeline branches on. Unknown values mean the job is still running.
func CanonicalState(remote string) State {
	switch strings.ToLower(strings.TrimSpace(remote)) {
	case "jobcomplete", "completed", "success":
		return StateCompleted
	case "aborted", "failed", "error":
		return StateFailed
	default:
		return StateInProgress
	}
}

// BackupJob is one export of one object.
type BackupJob struct {
	ObjectName  string    `json:"objectName"`
	JobID       string    `json:"jobId"`
	State       State     `json:"state"`
	S3Keys      []string  `json:"s3Keys,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CompletedAt time.Time `json:"completedAt,omitempty"`
	FailedAt    time.Time `json:"failedAt,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Key is the ledger identity of a job.
func Key(objectName, jobID string) string {
	return objectName + "#" + jobID
}

// Timestamp formats t the way every ledger attribute stores time.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
