package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(tokenURL, userinfoURL string) *Client {
	c := New("client-id", "client-secret", "http://127.0.0.1/api/auth/callback/google", time.Second)
	if tokenURL != "" {
		c.TokenURL = tokenURL
	}
	if userinfoURL != "" {
		c.UserinfoURL = userinfoURL
	}
	return c
}

func TestExchangeSendsForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		for k, want := range map[string]string{
			"code":       "valid-code",
			"client_id":  "client-id",
			"grant_type": "authorization_code",
		} {
			if got := r.PostForm.Get(k); got != want {
				t.Errorf("form[%s] = %q, want %q", k, got, want)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "ya29.token"})
	}))
	defer srv.Close()

	tok, err := newTestClient(srv.URL, "").Exchange(context.Background(), "valid-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if tok != "ya29.token" {
		t.Fatalf("token = %q", tok)
	}
}

func TestExchangeNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, "").Exchange(context.Background(), "bad-code")
	if !errors.Is(err, ErrTokenExchange) {
		t.Fatalf("expected ErrTokenExchange, got %v", err)
	}
}

func TestUserinfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer ya29.token" {
			t.Errorf("authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(Profile{Sub: "104", Email: "alice@umich.edu", Name: "Alice"})
	}))
	defer srv.Close()

	p, err := newTestClient("", srv.URL).Userinfo(context.Background(), "ya29.token")
	if err != nil {
		t.Fatalf("Userinfo: %v", err)
	}
	if p.Email != "alice@umich.edu" || p.Sub != "104" {
		t.Fatalf("profile = %+v", p)
	}
}

func TestUserinfoNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient("", srv.URL).Userinfo(context.Background(), "stale")
	if !errors.Is(err, ErrUserinfo) {
		t.Fatalf("expected ErrUserinfo, got %v", err)
	}
}
