package solver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListJobsSetsIdentityHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/interface/tests", r.URL.Path)
		assert.Equal(t, "alice@umich.edu", r.Header.Get("X-User-Email"))
		_ = json.NewEncoder(w).Encode([]Job{{ID: "t1", Type: "3sat", Name: "run", Status: "queued"}})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)
	jobs, err := c.ListJobs(context.Background(), "alice@umich.edu")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "t1", jobs[0].ID)
}

func TestSubmitJobStampsRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req JobRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.RequestID)
		assert.Equal(t, "ldpc", req.Type)
		_ = json.NewEncoder(w).Encode(Job{ID: "t2", Type: req.Type, Name: req.Name, Status: "queued"})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)
	job, err := c.SubmitJob(context.Background(), "alice@umich.edu", JobRequest{Type: "ldpc", Name: "decode"})
	require.NoError(t, err)
	assert.Equal(t, "t2", job.ID)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(QueueStatus{SolverStats: map[string]SolverStat{
			"3-SAT": {Status: "online", QueueSize: 2},
		}})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)
	st, err := c.QueueStatusNow(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, st.SolverStats["3-SAT"].QueueSize)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such test", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)
	_, err = c.GetJob(context.Background(), "alice@umich.edu", "missing")
	var se *ErrStatus
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestPollerCachesAndStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(QueueStatus{SolverStats: map[string]SolverStat{
			"LDPC": {Status: "online", QueueSize: 1},
		}})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, time.Second)
	require.NoError(t, err)
	p := NewPoller(c, 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go p.Run(ctx)

	deadline := time.After(2 * time.Second)
	for {
		if _, _, ok := p.Status(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("poller never cached a snapshot")
		case <-time.After(5 * time.Millisecond):
		}
	}
	st, fetched, ok := p.Status()
	require.True(t, ok)
	assert.False(t, fetched.IsZero())
	assert.Equal(t, "online", st.SolverStats["LDPC"].Status)
	assert.NoError(t, p.LastErr())

	cancel()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop on cancel")
	}
}
