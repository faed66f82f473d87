// Package auth tests verify passcode hashing behavior.
package auth

import "testing"

// TestHashVerifyRoundTrip ensures a hashed passcode verifies.
func TestHashVerifyRoundTrip(t *testing.T) {
	h, err := HashPasscode("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPasscode: %v", err)
	}
	ok, err := VerifyPasscode("correct horse battery staple", h)
	if err != nil {
		t.Fatalf("VerifyPasscode: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
	ok, err = VerifyPasscode("wrong", h)
	if err != nil {
		t.Fatalf("VerifyPasscode: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

// TestVerifyRejectsGarbage covers malformed stored hashes.
func TestVerifyRejectsGarbage(t *testing.T) {
	for _, enc := range []string{"", "argon2id$nope", "bcrypt$x$y$z", "argon2id$v=19$m=1,t=1,p=1$###$###"} {
		ok, _ := VerifyPasscode("pw", enc)
		if ok {
			t.Fatalf("expected no match for %q", enc)
		}
	}
}
