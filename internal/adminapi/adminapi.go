// Package adminapi is a small client for the dashboard's allow-list API,
// used by the terminal admin tool.
package adminapi

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

type Client struct {
	baseURL *url.URL
	hc      *http.Client
}

type ClientOptions struct {
	Addr     string
	Insecure bool
	Timeout  time.Duration
}

func NewClient(opt ClientOptions) (*Client, error) {
	if opt.Addr == "" {
		return nil, errors.New("addr is required")
	}
	u, err := url.Parse(opt.Addr)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" {
		u.Scheme = "https"
	}
	if u.Host == "" {
		return nil, errors.New("invalid addr")
	}

	jar, _ := cookiejar.New(nil)
	t := &http.Transport{}
	if strings.EqualFold(u.Scheme, "https") {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: opt.Insecure} //nolint:gosec
	}

	timeout := opt.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}

	hc := &http.Client{Transport: t, Jar: jar, Timeout: timeout}
	return &Client{baseURL: u, hc: hc}, nil
}

// Login authenticates with the operator passcode. The session cookie
// lives in the client's jar afterwards.
func (c *Client) Login(passcode string) error {
	var req struct {
		Passcode string `json:"passcode"`
	}
	req.Passcode = passcode
	return c.doJSON("POST", "/api/auth/operator-login", req, nil)
}

func (c *Client) Logout() error {
	return c.doJSON("POST", "/api/auth/logout", map[string]string{}, nil)
}

// User mirrors the allow-list entry shape returned by /api/users.
type User struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	IsAdmin   bool   `json:"isAdmin"`
	LastLogin string `json:"lastLogin,omitempty"`
}

func (c *Client) ListUsers() ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.doJSON("GET", "/api/users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) AddUser(email, name string, isAdmin bool) ([]User, error) {
	var req struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		IsAdmin bool   `json:"isAdmin"`
	}
	req.Email = email
	req.Name = name
	req.IsAdmin = isAdmin
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.doJSON("POST", "/api/users", req, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) SetAdmin(email string, isAdmin bool) ([]User, error) {
	var req struct {
		Email   string `json:"email"`
		IsAdmin bool   `json:"isAdmin"`
	}
	req.Email = email
	req.IsAdmin = isAdmin
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.doJSON("PATCH", "/api/users", req, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) RemoveUser(email string) ([]User, error) {
	var req struct {
		Email string `json:"email"`
	}
	req.Email = email
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.doJSON("DELETE", "/api/users", req, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

func (c *Client) doJSON(method, path string, body any, out any) error {
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequest(method, u.String(), buf)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	req.Header.Set("accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Error != "" {
			return errors.New(er.Error)
		}
		return errors.New(resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
