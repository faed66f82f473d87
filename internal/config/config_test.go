// Package config tests validate config loading behavior.
package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadAppliesDefaults confirms defaults are applied on load.
func TestLoadAppliesDefaults(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "dacroq.yaml")
	if err := os.WriteFile(p, []byte("google:\n  client_id: x.apps.googleusercontent.com\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.HTTP.Port != 5170 {
		t.Fatalf("expected default http.port 5170, got %d", c.HTTP.Port)
	}
	if c.Session.TTLHours != 168 {
		t.Fatalf("expected default session.ttl_hours 168, got %d", c.Session.TTLHours)
	}
	if c.Store.Driver != "sqlite" || c.Store.Path == "" {
		t.Fatalf("expected sqlite store defaults, got %+v", c.Store)
	}
	if c.Solver.PollSeconds != 5 {
		t.Fatalf("expected default solver.poll_seconds 5, got %d", c.Solver.PollSeconds)
	}
	if c.Production() {
		t.Fatalf("expected development by default")
	}
}

// TestLoadEnvOverrides confirms environment wins over the file.
func TestLoadEnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "dacroq.yaml")
	body := "base_url: http://file.example\nenvironment: development\n"
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("DACROQ_BASE_URL", "https://dacroq.eecs.umich.edu/")
	t.Setenv("DACROQ_ENV", "production")
	t.Setenv("GOOGLE_CLIENT_SECRET", "shh")

	c, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.BaseURL != "https://dacroq.eecs.umich.edu" {
		t.Fatalf("expected env base_url without trailing slash, got %q", c.BaseURL)
	}
	if !c.Production() {
		t.Fatalf("expected production from env")
	}
	if c.Google.ClientSecret != "shh" {
		t.Fatalf("expected client secret from env")
	}
}

// TestLoadRejectsBadValues covers validation failures.
func TestLoadRejectsBadValues(t *testing.T) {
	tmp := t.TempDir()
	cases := map[string]string{
		"bad port":    "http:\n  port: 70000\n",
		"bad driver":  "store:\n  driver: dynamo\n",
		"missing dsn": "store:\n  driver: postgres\n",
		"bad ttl":     "session:\n  ttl_hours: -1\n",
	}
	for name, body := range cases {
		p := filepath.Join(tmp, name+".yaml")
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := Load(p); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
