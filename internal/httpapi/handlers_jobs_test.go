package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/session"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/solver"
)

func jobsRequest(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	tok := session.Token{ID: "u1", Email: "a@umich.edu", Name: "A"}
	return r.WithContext(context.WithValue(r.Context(), ctxToken, tok))
}

// TestHandleJobs_ListForwardsIdentity proxies the list call with the
// session email as the upstream identity header.
func TestHandleJobs_ListForwardsIdentity(t *testing.T) {
	var gotEmail, gotPath string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEmail = r.Header.Get("X-User-Email")
		gotPath = r.URL.Path
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"j1","type":"3sat","name":"run","status":"completed"}]`))
	}))
	defer backend.Close()

	sc, err := solver.NewClient(backend.URL, time.Second)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	s := testServer(newMemStore())
	s.Solver = sc

	w := httptest.NewRecorder()
	s.handleJobs(w, jobsRequest("GET", "/api/jobs", ""))

	if w.Code != 200 {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if gotEmail != "a@umich.edu" {
		t.Fatalf("identity header=%q", gotEmail)
	}
	if gotPath != "/interface/tests" {
		t.Fatalf("path=%q", gotPath)
	}
	var resp struct {
		Tests []solver.Job `json:"tests"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Tests) != 1 || resp.Tests[0].ID != "j1" {
		t.Fatalf("tests=%+v", resp.Tests)
	}
}

// TestHandleJobs_SubmitValidatesType rejects unknown job types before
// touching the hardware API.
func TestHandleJobs_SubmitValidatesType(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("backend must not be called for invalid submissions")
	}))
	defer backend.Close()

	sc, _ := solver.NewClient(backend.URL, time.Second)
	s := testServer(newMemStore())
	s.Solver = sc

	w := httptest.NewRecorder()
	s.handleJobs(w, jobsRequest("POST", "/api/jobs", `{"type":"quantum","name":"x"}`))

	if w.Code != 400 {
		t.Fatalf("status=%d", w.Code)
	}
}

// TestHandleJobByID_Share posts normalized share targets upstream.
func TestHandleJobByID_Share(t *testing.T) {
	var gotBody string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("content-type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer backend.Close()

	sc, _ := solver.NewClient(backend.URL, time.Second)
	s := testServer(newMemStore())
	s.Solver = sc

	w := httptest.NewRecorder()
	s.handleJobByID(w, jobsRequest("POST", "/api/jobs/j1/share", `{"sharedWith":["Peer@UMICH.edu"]}`))

	if w.Code != 200 {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(gotBody, "peer@umich.edu") {
		t.Fatalf("upstream body=%q", gotBody)
	}
}

// TestHandleJobByID_UpstreamNotFound relays the upstream 404.
func TestHandleJobByID_UpstreamNotFound(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such test", http.StatusNotFound)
	}))
	defer backend.Close()

	sc, _ := solver.NewClient(backend.URL, time.Second)
	s := testServer(newMemStore())
	s.Solver = sc

	w := httptest.NewRecorder()
	s.handleJobByID(w, jobsRequest("GET", "/api/jobs/missing", ""))

	if w.Code != 404 {
		t.Fatalf("status=%d", w.Code)
	}
}

// TestHandleJobs_BackendDown answers 502, not a raw failure.
func TestHandleJobs_BackendDown(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close() // connection refused from here on

	sc, _ := solver.NewClient(backend.URL, time.Second)
	s := testServer(newMemStore())
	s.Solver = sc

	w := httptest.NewRecorder()
	s.handleJobs(w, jobsRequest("GET", "/api/jobs", ""))

	if w.Code != 502 {
		t.Fatalf("status=%d", w.Code)
	}
}

// TestHandleQueueStatus_NotWarm answers 503 until the poller has a snapshot.
func TestHandleQueueStatus_NotWarm(t *testing.T) {
	sc, _ := solver.NewClient("http://127.0.0.1:0", time.Second)
	s := testServer(newMemStore())
	s.Solver = sc
	s.Poller = solver.NewPoller(sc, time.Second, testLogger())

	w := httptest.NewRecorder()
	s.handleQueueStatus(w, jobsRequest("GET", "/api/queue/status", ""))

	if w.Code != 503 {
		t.Fatalf("status=%d", w.Code)
	}
}
