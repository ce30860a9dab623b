package jobstore

import "time"

// State is the lifecycle state of a job.
type State string

const (
	StatePending  State = "PENDING"
	StateRunning  State = "RUNNING"
	StateFinished State = "FINISHED"
)

// Filter selects a subset of jobs for List.
type Filter string

const (
	// FilterActive matches PENDING and RUNNING jobs — the default listing.
	FilterActive Filter = "ACTIVE"
	FilterPending Filter = "PENDING"
	FilterRunning Filter = "RUNNING"
)

// Job is the persistent job record.
type Job struct {
	JobID             string
	Version           string
	State             State
	CreatedTime       time.Time
	ClaimedTime       *time.Time
	FinishedTime      *time.Time
	LastHeartbeatTime *time.Time
}
