package domain

import "time"

// RunStatus is the lifecycle state of a source's checkpoint.
type RunStatus string

const (
	RunStatusIdle    RunStatus = "idle"
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailure RunStatus = "failure"
)

// Checkpoint is the durable per-source run-state record.
// At most one checkpoint per source may be running at any time.
type Checkpoint struct {
	Source            Source
	Status            RunStatus
	LastRunStartedAt  time.Time
	LastRunFinishedAt *time.Time // nil until the first run completes
	RecordsProcessed  int
	DurationSeconds   float64
	ErrorMessage      string // non-empty iff Status == failure
}

// RunOutcome is the single atomic commit payload for finishing a run.
type RunOutcome struct {
	Status           RunStatus // success or failure
	RecordsProcessed int       // 0 on failure
	DurationSeconds  float64
	ErrorMessage     string // "" on success
}

// SuccessOutcome builds the commit payload for a successful run.
func SuccessOutcome(records int, durationSeconds float64) RunOutcome {
	return RunOutcome{
		Status:           RunStatusSuccess,
		RecordsProcessed: records,
		DurationSeconds:  durationSeconds,
	}
}

// FailureOutcome builds the commit payload for a failed run.
// Records processed is always zero on failure.
func FailureOutcome(err error, durationSeconds float64) RunOutcome {
	return RunOutcome{
		Status:          RunStatusFailure,
		DurationSeconds: durationSeconds,
		ErrorMessage:    err.Error(),
	}
}
