// Package oauth implements the Google authorization-code exchange and
// profile fetch used by the login callback.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default Google endpoints; overridable for tests.
const (
	GoogleTokenURL    = "https://oauth2.googleapis.com/token"
	GoogleUserinfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
)

var (
	// ErrTokenExchange reports a non-2xx response from the token endpoint.
	ErrTokenExchange = errors.New("oauth: token exchange failed")
	// ErrUserinfo reports a non-2xx response from the userinfo endpoint.
	ErrUserinfo = errors.New("oauth: userinfo fetch failed")
)

// Profile is the subset of the Google userinfo response the dashboard uses.
type Profile struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// Client exchanges authorization codes and fetches profiles.
type Client struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// TokenURL and UserinfoURL default to Google's endpoints.
	TokenURL    string
	UserinfoURL string

	hc *http.Client
}

// New constructs a client with an explicit request timeout.
func New(clientID, clientSecret, redirectURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		TokenURL:     GoogleTokenURL,
		UserinfoURL:  GoogleUserinfoURL,
		hc:           &http.Client{Timeout: timeout},
	}
}

// Exchange trades an authorization code for an access token.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
		"redirect_uri":  {c.RedirectURL},
		"grant_type":    {"authorization_code"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TokenURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrTokenExchange, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenExchange, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrTokenExchange)
	}
	return tok.AccessToken, nil
}

// Userinfo fetches the profile for a bearer access token.
func (c *Client) Userinfo(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.UserinfoURL, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.hc.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrUserinfo, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Profile{}, fmt.Errorf("%w: status %d", ErrUserinfo, resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrUserinfo, err)
	}
	if p.Email == "" {
		return Profile{}, fmt.Errorf("%w: profile missing email", ErrUserinfo)
	}
	return p, nil
}

// AuthURL builds the provider consent URL the login page links to.
func (c *Client) AuthURL(state string) string {
	v := url.Values{
		"client_id":     {c.ClientID},
		"redirect_uri":  {c.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
	}
	if state != "" {
		v.Set("state", state)
	}
	return "https://accounts.google.com/o/oauth2/v2/auth?" + v.Encode()
}
