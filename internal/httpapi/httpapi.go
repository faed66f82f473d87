// Package httpapi exposes the dashboard HTTP API and handlers.
package httpapi

import (
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/oauth"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/session"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/solver"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/store"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/webui"
)

// Server wires the auth gateway together: allow-list store, OAuth client,
// solver proxy, and the embedded shell pages.
type Server struct {
	Store  store.Store
	OAuth  *oauth.Client
	Solver *solver.Client
	Poller *solver.Poller
	Logger *slog.Logger

	BindAddr   string
	Port       int
	BaseURL    string
	Production bool
	SessionTTL time.Duration
	DemoEnable bool

	authLimiter *fixedWindowLimiter
}

// Handler builds the full middleware/handler chain.
func (s *Server) Handler() (http.Handler, error) {
	if s.Store == nil {
		return nil, errors.New("store is required")
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.SessionTTL <= 0 {
		s.SessionTTL = session.DefaultTTL
	}
	if s.authLimiter == nil {
		// Generous: a human completes an OAuth dance a handful of times.
		s.authLimiter = newFixedWindowLimiter(30, time.Minute)
	}

	mux := http.NewServeMux()

	staticFS, err := fs.Sub(webui.StaticFS, "static")
	if err != nil {
		return nil, err
	}
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	mux.HandleFunc("/", s.servePage)

	mux.HandleFunc("/api/auth/login", s.withAuthLimit(s.handleLogin))
	mux.HandleFunc("/api/auth/callback/google", s.withAuthLimit(s.handleCallback))
	mux.HandleFunc("/api/auth/session", s.handleSession)
	mux.HandleFunc("/api/auth/logout", s.handleLogout)
	mux.HandleFunc("/api/auth/demo-login", s.withAuthLimit(s.handleDemoLogin))
	mux.HandleFunc("/api/auth/operator-login", s.withAuthLimit(s.handleOperatorLogin))

	mux.HandleFunc("/api/users", s.withAdmin(s.handleUsers))

	mux.HandleFunc("/api/jobs", s.withUser(s.handleJobs))
	mux.HandleFunc("/api/jobs/", s.withUser(s.handleJobByID))
	mux.HandleFunc("/api/queue/status", s.withUser(s.handleQueueStatus))

	var h http.Handler = mux
	h = s.withAuthGate(h)
	h = withSecurityHeaders(h)
	h = s.withRequestLog(h)
	h = s.withRecover(h)
	return h, nil
}

// ListenAndServe runs the HTTP server until it fails or is shut down.
func (s *Server) ListenAndServe() error {
	h, err := s.Handler()
	if err != nil {
		return err
	}
	addr := s.BindAddr + ":" + strconv.Itoa(s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.Logger.Info("http listening", "addr", addr)
	return srv.ListenAndServe()
}

// servePage dispatches the embedded shell pages.
func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	case "/login":
		s.serveStatic(w, "static/login.html")
	case "/dashboard":
		s.serveStatic(w, "static/dashboard.html")
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) serveStatic(w http.ResponseWriter, name string) {
	b, err := webui.StaticFS.ReadFile(name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "web ui missing"})
		return
	}
	w.Header().Set("content-type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

// absURL joins a path onto the configured public base URL.
func (s *Server) absURL(path string) string {
	return strings.TrimRight(s.BaseURL, "/") + path
}

// clientIP extracts the remote IP without a port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// readSessionCookie returns the raw session cookie value, if any.
func readSessionCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(session.CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// setSessionCookie installs the encoded token for the given lifetime.
// Secure is set only in production so local development over plain HTTP
// still works.
func (s *Server) setSessionCookie(w http.ResponseWriter, tok session.Token, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    session.Encode(tok),
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Production,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
	})
}

// clearSessionCookie instructs the browser to drop the session.
func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Production,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("x-content-type-options", "nosniff")
		w.Header().Set("x-frame-options", "DENY")
		w.Header().Set("referrer-policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
