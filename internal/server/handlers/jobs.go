package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/3leaps/jobqueue/internal/apperrors"
	"github.com/3leaps/jobqueue/internal/validation"
	"github.com/3leaps/jobqueue/pkg/jobmanager"
	"github.com/3leaps/jobqueue/pkg/jobstore"
)

const timestampLayout = "2006-01-02T15:04:05.000000"

// JobHandlers binds the HTTP dispatch table described in §4.4 of the job
// queue specification to a jobmanager.Manager.
type JobHandlers struct {
	manager *jobmanager.Manager
}

// NewJobHandlers builds JobHandlers over manager.
func NewJobHandlers(manager *jobmanager.Manager) *JobHandlers {
	return &JobHandlers{manager: manager}
}

type jobRecord struct {
	JobID             string  `json:"job_id"`
	Version           string  `json:"version"`
	State             string  `json:"state"`
	CreatedTime       string  `json:"created_time"`
	ClaimedTime       *string `json:"claimed_time"`
	FinishedTime      *string `json:"finished_time"`
	LastHeartbeatTime *string `json:"last_heartbeat_time"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatOptionalTimestamp(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTimestamp(*t)
	return &s
}

func toJobRecord(job jobstore.Job) jobRecord {
	return jobRecord{
		JobID:             job.JobID,
		Version:           job.Version,
		State:             string(job.State),
		CreatedTime:       formatTimestamp(job.CreatedTime),
		ClaimedTime:       formatOptionalTimestamp(job.ClaimedTime),
		FinishedTime:      formatOptionalTimestamp(job.FinishedTime),
		LastHeartbeatTime: formatOptionalTimestamp(job.LastHeartbeatTime),
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// NewJob handles POST /0.1.0/job/new.
func (h *JobHandlers) NewJob(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, r, apperrors.Wrap(apperrors.KindBadRequest, "job/new", err))
		return
	}
	if err := validation.ValidateJobNew(body); err != nil {
		respondWithError(w, r, apperrors.Wrap(apperrors.KindBadRequest, "job/new", err))
		return
	}

	version, _ := body["version"].(string)
	jobID, err := h.manager.Create(r.Context(), version)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})
}

// ListJobs handles GET /0.1.0/jobs[?state=PENDING|RUNNING].
func (h *JobHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	filter := jobstore.FilterActive
	if raw := r.URL.Query().Get("state"); raw != "" {
		switch jobstore.Filter(raw) {
		case jobstore.FilterPending, jobstore.FilterRunning:
			filter = jobstore.Filter(raw)
		default:
			respondWithError(w, r, apperrors.New(apperrors.KindBadRequest, "jobs", "unsupported state filter: "+raw))
			return
		}
	}

	jobs, err := h.manager.List(r.Context(), filter)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	records := make([]jobRecord, 0, len(jobs))
	for _, job := range jobs {
		records = append(records, toJobRecord(job))
	}
	writeJSON(w, http.StatusOK, records)
}

// ClaimJob handles POST /0.1.0/job/claim.
func (h *JobHandlers) ClaimJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := h.manager.Claim(r.Context())
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID})
}

// Status handles GET /0.1.0/job/<uuid>/status.
func (h *JobHandlers) Status(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, err := h.manager.Status(r.Context(), jobID)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobRecord(*job))
}

// Heartbeat handles POST /0.1.0/job/<uuid>/heartbeat.
func (h *JobHandlers) Heartbeat(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.manager.Heartbeat(r.Context(), jobID); err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// Complete handles POST /0.1.0/job/<uuid>/complete.
func (h *JobHandlers) Complete(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.manager.Complete(r.Context(), jobID); err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// Cancel handles POST /0.1.0/job/<uuid>/cancel.
func (h *JobHandlers) Cancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if err := h.manager.Cancel(r.Context(), jobID); err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
