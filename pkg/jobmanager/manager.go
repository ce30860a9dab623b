// Package jobmanager implements the job lifecycle state machine described
// on top of a pkg/jobstore.Store and a pkg/clockid.Clock.
package jobmanager

import (
	"context"

	"github.com/3leaps/jobqueue/pkg/clockid"
	"github.com/3leaps/jobqueue/pkg/jobstore"
)

// Manager is the job lifecycle state machine. It holds no mutable
// state of its own; every operation is a thin, atomic pass-through to the
// Store, with the Clock supplying timestamps and ids.
type Manager struct {
	store jobstore.Store
	clock *clockid.Clock
}

// New builds a Manager over store, using clock for timestamps and ids.
func New(store jobstore.Store, clock *clockid.Clock) *Manager {
	return &Manager{store: store, clock: clock}
}

// Create inserts a new PENDING job carrying the given version tag and
// returns its id. It never fails except on storage failure; rejecting an
// empty or malformed version is the HTTP layer's job
// (internal/validation), not this method's.
func (m *Manager) Create(ctx context.Context, version string) (string, error) {
	id := clockid.NewID()
	job := jobstore.Job{
		JobID:       id,
		Version:     version,
		State:       jobstore.StatePending,
		CreatedTime: m.clock.Now(),
	}
	if err := m.store.Insert(ctx, job); err != nil {
		return "", err
	}
	return id, nil
}

// Claim atomically selects and runs one PENDING job, returning its id, or
// a KindNotFound error when none is available.
func (m *Manager) Claim(ctx context.Context) (string, error) {
	job, err := m.store.ClaimOnePending(ctx, m.clock.Now())
	if err != nil {
		return "", err
	}
	return job.JobID, nil
}

// Heartbeat records liveness for a RUNNING job.
func (m *Manager) Heartbeat(ctx context.Context, jobID string) error {
	return m.store.MarkHeartbeat(ctx, jobID, m.clock.Now())
}

// Complete transitions a RUNNING job to FINISHED.
func (m *Manager) Complete(ctx context.Context, jobID string) error {
	return m.store.Complete(ctx, jobID, m.clock.Now())
}

// Cancel transitions a non-FINISHED job to FINISHED, preserving
// claimed_time if the job had already been claimed.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	return m.store.Cancel(ctx, jobID, m.clock.Now())
}

// Status returns the full record for jobID.
func (m *Manager) Status(ctx context.Context, jobID string) (*jobstore.Job, error) {
	return m.store.Get(ctx, jobID)
}

// List returns the jobs matching filter. filter must be one of
// jobstore.FilterActive, FilterPending, FilterRunning.
func (m *Manager) List(ctx context.Context, filter jobstore.Filter) ([]jobstore.Job, error) {
	return m.store.List(ctx, filter)
}
