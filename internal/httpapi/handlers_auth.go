package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/auth"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/session"
)

// Login error kinds carried back to /login as a query parameter.
const (
	errAuthFailed    = "auth_failed"
	errTokenExchange = "token_exchange_failed"
	errUserInfo      = "user_info_failed"
	errUnauthorized  = "unauthorized"
	errServer        = "server_error"
)

// redirectLoginError terminates the OAuth flow; the user must restart it.
func (s *Server) redirectLoginError(w http.ResponseWriter, r *http.Request, kind string) {
	http.Redirect(w, r, s.absURL("/login?error="+kind), http.StatusFound)
}

// handleLogin kicks off the authorization-code flow at Google.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, s.OAuth.AuthURL(""), http.StatusFound)
}

// handleCallback walks the authorization-code flow end to end. Every
// failure is terminal for the request and maps to one error kind.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	ctx := r.Context()

	code := r.URL.Query().Get("code")
	if code == "" {
		s.redirectLoginError(w, r, errAuthFailed)
		return
	}

	accessToken, err := s.OAuth.Exchange(ctx, code)
	if err != nil {
		s.Logger.Error("token exchange failed", "error", err)
		s.redirectLoginError(w, r, errTokenExchange)
		return
	}

	profile, err := s.OAuth.Userinfo(ctx, accessToken)
	if err != nil {
		s.Logger.Error("userinfo fetch failed", "error", err)
		s.redirectLoginError(w, r, errUserInfo)
		return
	}

	entry, allowed, err := s.Store.GetUser(ctx, profile.Email)
	if err != nil {
		s.Logger.Error("allow-list lookup failed", "error", err)
		s.redirectLoginError(w, r, errServer)
		return
	}
	if !allowed {
		s.Logger.Warn("unauthorized login attempt", "email", profile.Email)
		s.redirectLoginError(w, r, errUnauthorized)
		return
	}

	tok := session.Token{
		ID:      profile.Sub,
		Email:   profile.Email,
		Name:    profile.Name,
		Picture: profile.Picture,
		IsAdmin: entry.IsAdmin,
		Exp:     time.Now().Add(s.SessionTTL).Unix(),
	}
	s.setSessionCookie(w, tok, s.SessionTTL)
	s.Logger.Info("successful login", "email", profile.Email)
	http.Redirect(w, r, s.absURL("/dashboard"), http.StatusFound)
}

// sessionResponse is the profile shape returned to the UI; exp is
// deliberately stripped.
type sessionResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
}

// handleSession re-validates the cookie and returns the profile, or null.
// Every validation failure clears the cookie and reads as "no session";
// the client cannot distinguish why.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	raw, ok := readSessionCookie(r)
	if !ok {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	tok, err := session.Decode(raw)
	if err != nil {
		s.Logger.Warn("invalid session token", "error", err)
		s.clearSessionCookie(w)
		writeJSON(w, http.StatusOK, nil)
		return
	}
	if tok.Expired(time.Now()) {
		s.clearSessionCookie(w)
		writeJSON(w, http.StatusOK, nil)
		return
	}

	isAdmin := tok.IsAdmin
	if !tok.IsDemo() && !tok.IsOperator() {
		entry, allowed, err := s.Store.GetUser(r.Context(), tok.Email)
		if err != nil {
			s.Logger.Error("allow-list lookup failed", "error", err)
			s.clearSessionCookie(w)
			writeJSON(w, http.StatusOK, nil)
			return
		}
		if !allowed {
			s.Logger.Warn("user no longer authorized", "email", tok.Email)
			s.clearSessionCookie(w)
			writeJSON(w, http.StatusOK, nil)
			return
		}
		isAdmin = entry.IsAdmin
		s.touchLastLogin(tok.Email)
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		ID:      tok.ID,
		Email:   tok.Email,
		Name:    tok.Name,
		Picture: tok.Picture,
		IsAdmin: isAdmin,
	})
}

// touchLastLogin refreshes the lastLogin stamp off the request path.
// Failures are logged and swallowed; they must never fail the request.
func (s *Server) touchLastLogin(email string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Store.TouchLastLogin(ctx, email, time.Now()); err != nil {
			s.Logger.Warn("last login refresh failed", "email", email, "error", err)
		}
	}()
}

// handleLogout drops the session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleDemoLogin mints a sponsor-demo session without touching OAuth or
// the allow-list. Disabled deployments 404 so the route is undiscoverable.
func (s *Server) handleDemoLogin(w http.ResponseWriter, r *http.Request) {
	if !s.DemoEnable {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	tok := session.Demo(time.Now())
	s.setSessionCookie(w, tok, session.DefaultTTL)
	s.Logger.Info("demo login", "id", tok.ID)
	http.Redirect(w, r, s.absURL("/dashboard"), http.StatusFound)
}

// handleOperatorLogin authenticates the admin CLI with the passcode set
// during setup and mints a short-lived admin session.
func (s *Server) handleOperatorLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req struct {
		Passcode string `json:"passcode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Passcode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing credentials"})
		return
	}

	hash, ok, err := s.Store.GetConfig(r.Context(), "operator_passcode_hash")
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "operator login not configured"})
		return
	}
	match, err := auth.VerifyPasscode(req.Passcode, hash)
	if err != nil || !match {
		s.Logger.Warn("operator login rejected", "remote_ip", clientIP(r))
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	tok := session.Operator(time.Now())
	s.setSessionCookie(w, tok, session.OperatorTTL)
	s.Logger.Info("operator login", "remote_ip", clientIP(r))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
