package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/session"
)

const (
	// redirectCountHeader tracks gate-issued redirects so a misconfigured
	// deployment fails closed instead of cycling between /login and /.
	redirectCountHeader = "x-redirect-count"
	maxRedirects        = 3
)

// publicPath reports whether the gate lets the path through unauthenticated.
func publicPath(path string) bool {
	return strings.HasPrefix(path, "/login") ||
		strings.HasPrefix(path, "/api/auth/") ||
		strings.HasPrefix(path, "/demo") ||
		strings.HasPrefix(path, "/static/") ||
		path == "/favicon.ico"
}

// withAuthGate enforces the session check on every non-public route.
func (s *Server) withAuthGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		redirects, _ := strconv.Atoi(r.Header.Get(redirectCountHeader))
		if redirects >= maxRedirects {
			s.Logger.Error("maximum redirect count exceeded", "path", r.URL.Path)
			http.Error(w, "Too many redirects", http.StatusInternalServerError)
			return
		}

		// Legacy protocol enforcement: the department reverse proxy is the
		// only place a non-http scheme can appear, via X-Forwarded-Proto.
		if s.Production {
			if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" && !strings.HasPrefix(proto, "http") {
				target := "http://" + r.Host + r.URL.RequestURI()
				w.Header().Set(redirectCountHeader, strconv.Itoa(redirects+1))
				http.Redirect(w, r, target, http.StatusMovedPermanently)
				return
			}
		}

		if publicPath(r.URL.Path) || s.validDemoDashboard(r) {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := readSessionCookie(r)
		if !ok {
			s.redirectLogin(w, r, redirects)
			return
		}
		tok, err := session.Decode(raw)
		if err != nil {
			s.redirectLogin(w, r, redirects)
			return
		}
		if tok.Expired(time.Now()) {
			s.redirectLogin(w, r, redirects)
			return
		}
		if !tok.IsDemo() && !tok.IsOperator() {
			_, allowed, err := s.Store.GetUser(r.Context(), tok.Email)
			if err != nil {
				s.Logger.Error("allow-list lookup failed", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			if !allowed {
				s.redirectLogin(w, r, redirects)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) redirectLogin(w http.ResponseWriter, r *http.Request, redirects int) {
	w.Header().Set(redirectCountHeader, strconv.Itoa(redirects+1))
	http.Redirect(w, r, "/login", http.StatusFound)
}

// validDemoDashboard reports whether a sponsor-demo session is loading the
// dashboard, which bypasses the allow-list entirely.
func (s *Server) validDemoDashboard(r *http.Request) bool {
	if !strings.HasPrefix(r.URL.Path, "/dashboard") {
		return false
	}
	raw, ok := readSessionCookie(r)
	if !ok {
		return false
	}
	tok, err := session.Decode(raw)
	if err != nil {
		return false
	}
	return tok.IsDemo() && !tok.Expired(time.Now())
}
