package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/jobqueue/pkg/clockid"
	"github.com/3leaps/jobqueue/pkg/jobmanager"
	"github.com/3leaps/jobqueue/pkg/jobstore"

	_ "modernc.org/sqlite"
)

// newTestRouter wires the job routes the same way internal/server.New does,
// without pulling in the health/version endpoints this package's tests
// don't exercise.
func newTestRouter(t *testing.T) (chi.Router, *jobmanager.Manager) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, jobstore.Migrate(context.Background(), db))

	mgr := jobmanager.New(jobstore.FromDB(db), clockid.New())
	jh := NewJobHandlers(mgr)

	r := chi.NewRouter()
	r.Route("/0.1.0", func(r chi.Router) {
		r.Post("/job/new", jh.NewJob)
		r.Get("/jobs", jh.ListJobs)
		r.Post("/job/claim", jh.ClaimJob)
		r.Get("/job/{jobID}/status", jh.Status)
		r.Post("/job/{jobID}/heartbeat", jh.Heartbeat)
		r.Post("/job/{jobID}/complete", jh.Complete)
		r.Post("/job/{jobID}/cancel", jh.Cancel)
	})
	return r, mgr
}

func doRequest(t *testing.T, r chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reqBody *bytes.Reader
	if body != "" {
		reqBody = bytes.NewReader([]byte(body))
	} else {
		reqBody = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reqBody)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeJobID(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		JobID string `json:"job_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.JobID)
	return body.JobID
}

func decodeRecord(t *testing.T, rec *httptest.ResponseRecorder) jobRecord {
	t.Helper()
	var rec2 jobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rec2))
	return rec2
}

// TestHappyPath covers scenario S1.
func TestHappyPath(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/0.1.0/job/new", `{"version":"0.1.0"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeJobID(t, rec)

	rec = doRequest(t, r, http.MethodGet, "/0.1.0/job/"+id+"/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PENDING", decodeRecord(t, rec).State)

	rec = doRequest(t, r, http.MethodPost, "/0.1.0/job/claim", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, decodeJobID(t, rec))

	rec = doRequest(t, r, http.MethodGet, "/0.1.0/job/"+id+"/status", "")
	status := decodeRecord(t, rec)
	assert.Equal(t, "RUNNING", status.State)
	assert.NotNil(t, status.ClaimedTime)

	rec = doRequest(t, r, http.MethodPost, "/0.1.0/job/"+id+"/heartbeat", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/0.1.0/job/"+id+"/status", "")
	assert.NotNil(t, decodeRecord(t, rec).LastHeartbeatTime)

	rec = doRequest(t, r, http.MethodPost, "/0.1.0/job/"+id+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/0.1.0/job/"+id+"/status", "")
	assert.Equal(t, "FINISHED", decodeRecord(t, rec).State)
}

// TestEmptyClaimReturnsNotFound covers scenario S2.
func TestEmptyClaimReturnsNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := doRequest(t, r, http.MethodPost, "/0.1.0/job/claim", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestCancelPendingExcludesFromActiveListing covers scenario S3.
func TestCancelPendingExcludesFromActiveListing(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/0.1.0/job/new", `{"version":"0.1.0"}`)
	id := decodeJobID(t, rec)

	rec = doRequest(t, r, http.MethodPost, "/0.1.0/job/"+id+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/0.1.0/job/"+id+"/status", "")
	assert.Equal(t, "FINISHED", decodeRecord(t, rec).State)

	rec = doRequest(t, r, http.MethodGet, "/0.1.0/jobs", "")
	var active []jobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	for _, j := range active {
		assert.NotEqual(t, id, j.JobID)
	}
}

// TestCancelRunningJob covers scenario S4.
func TestCancelRunningJob(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/0.1.0/job/new", `{"version":"0.1.0"}`)
	id := decodeJobID(t, rec)
	doRequest(t, r, http.MethodPost, "/0.1.0/job/claim", "")

	rec = doRequest(t, r, http.MethodPost, "/0.1.0/job/"+id+"/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/0.1.0/job/"+id+"/status", "")
	assert.Equal(t, "FINISHED", decodeRecord(t, rec).State)
}

// TestBadStateReturnsForbidden covers scenario S5.
func TestBadStateReturnsForbidden(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/0.1.0/job/new", `{"version":"0.1.0"}`)
	id := decodeJobID(t, rec)

	rec = doRequest(t, r, http.MethodPost, "/0.1.0/job/"+id+"/complete", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	doRequest(t, r, http.MethodPost, "/0.1.0/job/claim", "")

	rec = doRequest(t, r, http.MethodPost, "/0.1.0/job/"+id+"/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodPost, "/0.1.0/job/"+id+"/complete", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// TestUnknownIDReturnsNotFound covers scenario S6.
func TestUnknownIDReturnsNotFound(t *testing.T) {
	r, _ := newTestRouter(t)
	const unknown = "00000000-0000-0000-0000-000000000000"

	for _, path := range []string{
		"/0.1.0/job/" + unknown + "/status",
	} {
		rec := doRequest(t, r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	for _, path := range []string{
		"/0.1.0/job/" + unknown + "/heartbeat",
		"/0.1.0/job/" + unknown + "/complete",
		"/0.1.0/job/" + unknown + "/cancel",
	} {
		rec := doRequest(t, r, http.MethodPost, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

// TestMethodEnforcement covers scenario S7.
func TestMethodEnforcement(t *testing.T) {
	r, _ := newTestRouter(t)

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/0.1.0/job/new"},
		{http.MethodPost, "/0.1.0/jobs"},
		{http.MethodGet, "/0.1.0/job/claim"},
		{http.MethodGet, "/0.1.0/job/some-id/cancel"},
		{http.MethodGet, "/0.1.0/job/some-id/heartbeat"},
		{http.MethodGet, "/0.1.0/job/some-id/complete"},
		{http.MethodPost, "/0.1.0/job/some-id/status"},
	}
	for _, c := range cases {
		rec := doRequest(t, r, c.method, c.path, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", c.method, c.path)
	}
}

// TestConcurrentClaimHTTP covers scenario S8 at the HTTP layer: 100 jobs,
// 20 concurrent claimers, no duplicate job ids handed out.
func TestConcurrentClaimHTTP(t *testing.T) {
	r, _ := newTestRouter(t)

	const totalJobs = 100
	const claimers = 20

	for i := 0; i < totalJobs; i++ {
		rec := doRequest(t, r, http.MethodPost, "/0.1.0/job/new", `{"version":"0.1.0"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed = make(map[string]int)
	)
	for c := 0; c < claimers; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				rec := doRequest(t, r, http.MethodPost, "/0.1.0/job/claim", "")
				if rec.Code != http.StatusOK {
					return
				}
				id := decodeJobID(t, rec)
				mu.Lock()
				claimed[id]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, claimed, totalJobs)
	for id, count := range claimed {
		assert.Equal(t, 1, count, "job %s claimed more than once", id)
	}
}

// TestMalformedBodyReturnsBadRequest exercises the job/new validation path.
func TestMalformedBodyReturnsBadRequest(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/0.1.0/job/new", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, r, http.MethodPost, "/0.1.0/job/new", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestListFilterByState exercises ?state= on /0.1.0/jobs.
func TestListFilterByState(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/0.1.0/job/new", `{"version":"0.1.0"}`)
	id := decodeJobID(t, rec)
	doRequest(t, r, http.MethodPost, "/0.1.0/job/claim", "")

	rec = doRequest(t, r, http.MethodGet, "/0.1.0/jobs?state=RUNNING", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var running []jobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &running))
	require.Len(t, running, 1)
	assert.Equal(t, id, running[0].JobID)

	rec = doRequest(t, r, http.MethodGet, "/0.1.0/jobs?state=PENDING", "")
	var pending []jobRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	assert.Len(t, pending, 0)
}
