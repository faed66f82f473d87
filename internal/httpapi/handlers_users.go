package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/session"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/store"
	"github.com/bendatsko/dacroq.eecs.umich.edu/internal/validate"
)

type ctxKey int

const ctxToken ctxKey = 1

// tokenFrom returns the session token installed by withUser/withAdmin.
func tokenFrom(ctx context.Context) (session.Token, bool) {
	tok, ok := ctx.Value(ctxToken).(session.Token)
	return tok, ok
}

// currentToken decodes and validates the caller's session cookie.
func (s *Server) currentToken(r *http.Request) (session.Token, bool) {
	raw, ok := readSessionCookie(r)
	if !ok {
		return session.Token{}, false
	}
	tok, err := session.Decode(raw)
	if err != nil || tok.Expired(time.Now()) {
		return session.Token{}, false
	}
	return tok, true
}

// withUser requires a valid session. Regular users are rechecked against
// the allow-list on every call so removals take effect immediately.
func (s *Server) withUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok, ok := s.currentToken(r)
		if !ok {
			s.clearSessionCookie(w)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
			return
		}
		if !tok.IsDemo() && !tok.IsOperator() {
			entry, allowed, err := s.Store.GetUser(r.Context(), tok.Email)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
				return
			}
			if !allowed {
				s.clearSessionCookie(w)
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
				return
			}
			tok.IsAdmin = entry.IsAdmin
		}
		ctx := context.WithValue(r.Context(), ctxToken, tok)
		next(w, r.WithContext(ctx))
	}
}

// withAdmin requires a valid admin session. Demo sessions are never
// admin regardless of what the cookie claims.
func (s *Server) withAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.withUser(func(w http.ResponseWriter, r *http.Request) {
		tok, _ := tokenFrom(r.Context())
		if tok.IsDemo() || !(tok.IsOperator() || tok.IsAdmin) {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "admin required"})
			return
		}
		next(w, r)
	})
}

// handleUsers implements allow-list CRUD. Every mutation responds with
// the updated list so the dashboard can refresh without a second call.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeUserList(w, r)
	case http.MethodPost:
		var req struct {
			Email   string `json:"email"`
			Name    string `json:"name"`
			IsAdmin bool   `json:"isAdmin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		email, err := validate.Email(req.Email)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		name, err := validate.DisplayName(req.Name)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if _, err := s.Store.AddUser(r.Context(), email, name, req.IsAdmin); err != nil {
			s.writeUserError(w, err)
			return
		}
		s.Logger.Info("allow-list user added", "email", email, "is_admin", req.IsAdmin)
		s.writeUserList(w, r)
	case http.MethodPatch:
		var req struct {
			Email   string `json:"email"`
			IsAdmin bool   `json:"isAdmin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		email, err := validate.Email(req.Email)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := s.Store.SetAdmin(r.Context(), email, req.IsAdmin); err != nil {
			s.writeUserError(w, err)
			return
		}
		s.Logger.Info("allow-list user updated", "email", email, "is_admin", req.IsAdmin)
		s.writeUserList(w, r)
	case http.MethodDelete:
		var req struct {
			Email string `json:"email"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
			return
		}
		email, err := validate.Email(req.Email)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := s.Store.RemoveUser(r.Context(), email); err != nil {
			s.writeUserError(w, err)
			return
		}
		s.Logger.Info("allow-list user removed", "email", email)
		s.writeUserList(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (s *Server) writeUserList(w http.ResponseWriter, r *http.Request) {
	users, err := s.Store.ListUsers(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// writeUserError maps store errors onto HTTP statuses.
func (s *Server) writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrExists):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "user already exists"})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "user not found"})
	case errors.Is(err, store.ErrLastAdmin):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "cannot remove the last admin"})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server error"})
	}
}
