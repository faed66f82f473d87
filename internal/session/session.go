// Package session implements the stateless session token carried by the
// dashboard's session cookie. The token is base64-encoded JSON with no
// signature; authenticity relies on the cookie being HTTP-only and on
// every request re-checking the allow-list.
package session

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CookieName is the HTTP cookie the token travels in.
const CookieName = "session"

// DefaultTTL is the lifetime of tokens minted at OAuth login.
const DefaultTTL = 7 * 24 * time.Hour

// OperatorTTL is the shorter lifetime of operator-login tokens.
const OperatorTTL = 12 * time.Hour

const (
	// GuestEmail identifies the pre-login placeholder identity.
	GuestEmail = "guest@dacroq.local"
	// DemoEmail identifies sponsor-demo sessions, which bypass the allow-list.
	DemoEmail = "demo@umich.edu"
	// OperatorEmail identifies CLI operator sessions minted by passcode login.
	OperatorEmail = "operator@dacroq.local"
)

var (
	// ErrDecode reports malformed base64 or invalid JSON in a cookie value.
	ErrDecode = errors.New("session: malformed token")
	// ErrStructure reports a decodable token with the wrong shape.
	ErrStructure = errors.New("session: invalid token structure")
)

// Token is the session payload minted at login and read on every request.
// Exp is unix seconds; zero means the token does not expire on its own.
type Token struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
	Exp     int64  `json:"exp,omitempty"`
}

// Encode serializes the token as base64(JSON), the cookie wire format.
func Encode(t Token) string {
	b, _ := json.Marshal(t)
	return base64.StdEncoding.EncodeToString(b)
}

// Decode parses a cookie value back into a Token. It fails with ErrDecode
// on malformed input and ErrStructure when required fields are missing or
// of the wrong type. Callers must treat either failure as "no session".
func Decode(v string) (Token, error) {
	raw, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		// Browsers sometimes hand back unpadded values after URL mangling.
		raw, err = base64.RawStdEncoding.DecodeString(v)
		if err != nil {
			return Token{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
	}

	var shape map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shape); err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := validateShape(shape); err != nil {
		return Token{}, err
	}

	var t Token
	if err := json.Unmarshal(raw, &t); err != nil {
		return Token{}, fmt.Errorf("%w: %v", ErrStructure, err)
	}
	return t, nil
}

// validateShape checks field presence and types only: id, email, and name
// must be strings, and exp, when present, must be a number. Value ranges
// and whether the identity exists are checked elsewhere.
func validateShape(m map[string]json.RawMessage) error {
	for _, key := range []string{"id", "email", "name"} {
		raw, ok := m[key]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrStructure, key)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("%w: %s is not a string", ErrStructure, key)
		}
	}
	if raw, ok := m["exp"]; ok {
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return fmt.Errorf("%w: exp is not a number", ErrStructure)
		}
	}
	return nil
}

// Expired reports whether the token's expiry has elapsed at now.
// Tokens without an exp never expire here.
func (t Token) Expired(now time.Time) bool {
	return t.Exp != 0 && t.Exp <= now.Unix()
}

// IsDemo reports whether the token is a sponsor-demo session.
func (t Token) IsDemo() bool { return t.Email == DemoEmail }

// IsOperator reports whether the token is a CLI operator session.
func (t Token) IsOperator() bool { return t.Email == OperatorEmail }

// Guest returns the sentinel identity the UI shows before login.
// It is never persisted and never accepted as a cookie.
func Guest() Token {
	return Token{ID: "guest", Email: GuestEmail, Name: "Guest", IsAdmin: false}
}

// Demo mints a sponsor-demo token valid for the default TTL.
func Demo(now time.Time) Token {
	return Token{
		ID:    "demo-" + uuid.NewString(),
		Email: DemoEmail,
		Name:  "Sponsor Demo",
		Exp:   now.Add(DefaultTTL).Unix(),
	}
}

// Operator mints an operator token for CLI administration.
func Operator(now time.Time) Token {
	return Token{
		ID:      "operator-" + uuid.NewString(),
		Email:   OperatorEmail,
		Name:    "Operator",
		IsAdmin: true,
		Exp:     now.Add(OperatorTTL).Unix(),
	}
}
