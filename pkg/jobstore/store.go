package jobstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/3leaps/jobqueue/internal/apperrors"
)

// Store is the transactional persistence contract the job manager requires:
// insert, lookup by id, filtered listing, and an atomic claim-one-pending
// primitive. SQLStore is the only implementation; the interface exists so
// pkg/jobmanager depends on behavior, not on database/sql.
type Store interface {
	Insert(ctx context.Context, job Job) error
	Get(ctx context.Context, jobID string) (*Job, error)
	List(ctx context.Context, filter Filter) ([]Job, error)
	ClaimOnePending(ctx context.Context, now time.Time) (*Job, error)
	MarkHeartbeat(ctx context.Context, jobID string, now time.Time) error
	Complete(ctx context.Context, jobID string, now time.Time) error
	Cancel(ctx context.Context, jobID string, now time.Time) error
	Ping(ctx context.Context) error
	Close() error
}

// SQLStore implements Store over database/sql, against either a local
// SQLite file or a remote libsql database (see dsn.go). mu serializes every
// mutating operation across goroutines: a process-wide mutex across the
// read-modify-write is sufficient because both backends are single-writer.
type SQLStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens the configured database, runs Migrate, and returns a ready
// SQLStore.
func Open(ctx context.Context, cfg Config) (*SQLStore, error) {
	db, err := OpenRaw(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

// FromDB wraps an already-open, already-migrated *sql.DB — used by tests
// that want an in-memory database without going through DSN resolution.
func FromDB(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Ping checks the database connection is reachable, for use as a health
// check dependency probe.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) Insert(ctx context.Context, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, version, state, created_time, claimed_time, finished_time, last_heartbeat_time)
		VALUES (?, ?, ?, ?, NULL, NULL, NULL)
	`, job.JobID, job.Version, string(job.State), formatTime(&job.CreatedTime))
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, "insert", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, version, state, created_time, claimed_time, finished_time, last_heartbeat_time
		FROM jobs WHERE job_id = ?
	`, jobID)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.KindNotFound, "get", "job not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "get", err)
	}
	return job, nil
}

func (s *SQLStore) List(ctx context.Context, filter Filter) ([]Job, error) {
	var query string
	switch filter {
	case FilterPending:
		query = `SELECT job_id, version, state, created_time, claimed_time, finished_time, last_heartbeat_time FROM jobs WHERE state = 'PENDING' ORDER BY created_time, job_id`
	case FilterRunning:
		query = `SELECT job_id, version, state, created_time, claimed_time, finished_time, last_heartbeat_time FROM jobs WHERE state = 'RUNNING' ORDER BY created_time, job_id`
	default: // FilterActive
		query = `SELECT job_id, version, state, created_time, claimed_time, finished_time, last_heartbeat_time FROM jobs WHERE state IN ('PENDING', 'RUNNING') ORDER BY created_time, job_id`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "list", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.KindStorage, "list", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "list", err)
	}
	return out, nil
}

// ClaimOnePending is the single critical section in this service: it
// selects the oldest PENDING job (ties broken by job_id) and transitions
// it to RUNNING atomically. The store-wide mutex
// plus a single-connection SQLite handle means no two concurrent callers
// can observe the same PENDING row before one of them claims it.
func (s *SQLStore) ClaimOnePending(ctx context.Context, now time.Time) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "claim", err)
	}
	defer func() { _ = tx.Rollback() }()

	var jobID string
	err = tx.QueryRowContext(ctx, `
		SELECT job_id FROM jobs WHERE state = 'PENDING' ORDER BY created_time, job_id LIMIT 1
	`).Scan(&jobID)
	if err == sql.ErrNoRows {
		return nil, apperrors.New(apperrors.KindNotFound, "claim", "no pending jobs")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "claim", err)
	}

	ts := formatTime(&now)
	if _, err := tx.ExecContext(ctx, `
		UPDATE jobs SET state = 'RUNNING', claimed_time = ? WHERE job_id = ?
	`, ts, jobID); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "claim", err)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT job_id, version, state, created_time, claimed_time, finished_time, last_heartbeat_time
		FROM jobs WHERE job_id = ?
	`, jobID)
	job, err := scanJob(row)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "claim", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindStorage, "claim", err)
	}
	return job, nil
}

func (s *SQLStore) MarkHeartbeat(ctx context.Context, jobID string, now time.Time) error {
	return s.transition(ctx, "heartbeat", jobID, func(j *Job) error {
		if j.State != StateRunning {
			return apperrors.New(apperrors.KindBadState, "heartbeat", "job is not running")
		}
		return nil
	}, `UPDATE jobs SET last_heartbeat_time = ? WHERE job_id = ?`, formatTime(&now))
}

func (s *SQLStore) Complete(ctx context.Context, jobID string, now time.Time) error {
	return s.transition(ctx, "complete", jobID, func(j *Job) error {
		if j.State != StateRunning {
			return apperrors.New(apperrors.KindBadState, "complete", "job is not running")
		}
		return nil
	}, `UPDATE jobs SET state = 'FINISHED', finished_time = ? WHERE job_id = ?`, formatTime(&now))
}

func (s *SQLStore) Cancel(ctx context.Context, jobID string, now time.Time) error {
	return s.transition(ctx, "cancel", jobID, func(j *Job) error {
		if j.State == StateFinished {
			return apperrors.New(apperrors.KindBadState, "cancel", "job is already finished")
		}
		return nil
	}, `UPDATE jobs SET state = 'FINISHED', finished_time = ? WHERE job_id = ?`, formatTime(&now))
}

// transition reads the current row, runs precondition against it, and
// applies stmt (a single-row UPDATE parameterized by ts then job_id) if
// the precondition passes — all inside one transaction guarded by mu so
// the check-then-act is atomic with respect to other mutations.
func (s *SQLStore) transition(ctx context.Context, op, jobID string, precondition func(*Job) error, stmt string, ts string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, op, err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT job_id, version, state, created_time, claimed_time, finished_time, last_heartbeat_time
		FROM jobs WHERE job_id = ?
	`, jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return apperrors.New(apperrors.KindNotFound, op, "job not found")
	}
	if err != nil {
		return apperrors.Wrap(apperrors.KindStorage, op, err)
	}

	if err := precondition(job); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, stmt, ts, jobID); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, op, err)
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.KindStorage, op, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*Job, error) {
	var (
		job          Job
		state        string
		created      string
		claimed      sql.NullString
		finished     sql.NullString
		lastHeartbeat sql.NullString
	)
	if err := row.Scan(&job.JobID, &job.Version, &state, &created, &claimed, &finished, &lastHeartbeat); err != nil {
		return nil, err
	}
	job.State = State(state)

	t, err := parseTime(created)
	if err != nil {
		return nil, fmt.Errorf("parse created_time: %w", err)
	}
	job.CreatedTime = t

	if claimed.Valid {
		t, err := parseTime(claimed.String)
		if err != nil {
			return nil, fmt.Errorf("parse claimed_time: %w", err)
		}
		job.ClaimedTime = &t
	}
	if finished.Valid {
		t, err := parseTime(finished.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_time: %w", err)
		}
		job.FinishedTime = &t
	}
	if lastHeartbeat.Valid {
		t, err := parseTime(lastHeartbeat.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_heartbeat_time: %w", err)
		}
		job.LastHeartbeatTime = &t
	}
	return &job, nil
}

// timeLayout is RFC 3339 with a fixed nine-digit fraction. Unlike
// time.RFC3339Nano it never trims trailing zeros, so for UTC values string
// order is time order and ORDER BY created_time is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
