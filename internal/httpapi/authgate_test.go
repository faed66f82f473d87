package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/session"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})
}

// TestAuthGate_RedirectLoopGuard fails closed on the fourth redirect.
func TestAuthGate_RedirectLoopGuard(t *testing.T) {
	s := testServer(newMemStore())
	h := s.withAuthGate(okHandler())

	r := httptest.NewRequest("GET", "/dashboard", nil)
	r.Header.Set("x-redirect-count", "3")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != 500 {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Too many redirects") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

// TestAuthGate_NoCookieRedirects sends anonymous users to the login page
// with the redirect counter incremented.
func TestAuthGate_NoCookieRedirects(t *testing.T) {
	s := testServer(newMemStore())
	h := s.withAuthGate(okHandler())

	r := httptest.NewRequest("GET", "/dashboard", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != 302 {
		t.Fatalf("status=%d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Fatalf("location=%q", loc)
	}
	if c := w.Header().Get("x-redirect-count"); c != "1" {
		t.Fatalf("x-redirect-count=%q", c)
	}
}

// TestAuthGate_PublicPaths never require a session.
func TestAuthGate_PublicPaths(t *testing.T) {
	s := testServer(newMemStore())
	h := s.withAuthGate(okHandler())

	for _, p := range []string{"/login", "/api/auth/session", "/api/auth/callback/google", "/static/app.css", "/favicon.ico"} {
		r := httptest.NewRequest("GET", p, nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		if w.Code != 200 {
			t.Fatalf("path %s: status=%d", p, w.Code)
		}
	}
}

// TestAuthGate_ExpiredCookieRedirects treats expiry as no session.
func TestAuthGate_ExpiredCookieRedirects(t *testing.T) {
	st := newMemStore()
	_, _ = st.AddUser(context.Background(), "a@umich.edu", "A", false)
	s := testServer(st)
	h := s.withAuthGate(okHandler())

	r := httptest.NewRequest("GET", "/dashboard", nil)
	r.AddCookie(cookieFor(userToken("a@umich.edu", false, time.Now().Add(-time.Minute).Unix())))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != 302 {
		t.Fatalf("status=%d", w.Code)
	}
}

// TestAuthGate_AllowlistedPasses lets a valid session through.
func TestAuthGate_AllowlistedPasses(t *testing.T) {
	st := newMemStore()
	_, _ = st.AddUser(context.Background(), "a@umich.edu", "A", false)
	s := testServer(st)
	h := s.withAuthGate(okHandler())

	r := httptest.NewRequest("GET", "/dashboard", nil)
	r.AddCookie(cookieFor(userToken("a@umich.edu", false, time.Now().Add(time.Hour).Unix())))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != 200 {
		t.Fatalf("status=%d", w.Code)
	}
}

// TestAuthGate_RemovedUserRedirects re-checks the allow-list per request.
func TestAuthGate_RemovedUserRedirects(t *testing.T) {
	s := testServer(newMemStore())
	h := s.withAuthGate(okHandler())

	r := httptest.NewRequest("GET", "/dashboard", nil)
	r.AddCookie(cookieFor(userToken("gone@umich.edu", false, time.Now().Add(time.Hour).Unix())))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != 302 {
		t.Fatalf("status=%d", w.Code)
	}
}

// TestAuthGate_DemoDashboardBypass lets the demo sentinel load the
// dashboard without an allow-list entry.
func TestAuthGate_DemoDashboardBypass(t *testing.T) {
	s := testServer(newMemStore())
	h := s.withAuthGate(okHandler())

	r := httptest.NewRequest("GET", "/dashboard", nil)
	r.AddCookie(cookieFor(session.Demo(time.Now())))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != 200 {
		t.Fatalf("status=%d", w.Code)
	}
}

// TestAuthGate_ForwardedProto downgrades non-http schemes in production.
func TestAuthGate_ForwardedProto(t *testing.T) {
	s := testServer(newMemStore())
	s.Production = true
	h := s.withAuthGate(okHandler())

	r := httptest.NewRequest("GET", "/dashboard", nil)
	r.Host = "dacroq.test"
	r.Header.Set("X-Forwarded-Proto", "ws")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Code != 301 {
		t.Fatalf("status=%d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "http://dacroq.test/dashboard" {
		t.Fatalf("location=%q", loc)
	}
	if c := w.Header().Get("x-redirect-count"); c != "1" {
		t.Fatalf("x-redirect-count=%q", c)
	}
}
