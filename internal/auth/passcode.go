// Package auth hashes and verifies the operator passcode used by the
// admin CLI. Browser users never see this path; they authenticate with
// Google OAuth.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters, fixed at current OWASP-recommended values.
const (
	memoryKiB   = 64 * 1024
	iterations  = 3
	parallelism = 4
	saltLen     = 16
	keyLen      = 32
)

// HashPasscode returns a PHC-style Argon2id string:
// argon2id$v=19$m=65536,t=3,p=4$<salt_b64>$<hash_b64>
func HashPasscode(passcode string) (string, error) {
	if passcode == "" {
		return "", errors.New("passcode is required")
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	h := argon2.IDKey([]byte(passcode), salt, iterations, memoryKiB, parallelism, keyLen)
	enc := base64.RawStdEncoding
	return fmt.Sprintf("argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memoryKiB, iterations, parallelism,
		enc.EncodeToString(salt), enc.EncodeToString(h)), nil
}

// VerifyPasscode reports whether passcode matches the stored PHC string.
func VerifyPasscode(passcode, encoded string) (bool, error) {
	if passcode == "" || encoded == "" {
		return false, nil
	}
	var version int
	var m, t uint32
	var p uint8
	var saltB64, hashB64 string
	n, err := fmt.Sscanf(encoded, "argon2id$v=%d$m=%d,t=%d,p=%d$%s",
		&version, &m, &t, &p, &saltB64)
	if err != nil || n != 5 {
		return false, errors.New("invalid passcode hash format")
	}
	if version != argon2.Version {
		return false, errors.New("unsupported argon2 version")
	}
	// Sscanf %s is greedy; split the trailing salt$hash pair ourselves.
	for i := 0; i < len(saltB64); i++ {
		if saltB64[i] == '$' {
			hashB64 = saltB64[i+1:]
			saltB64 = saltB64[:i]
			break
		}
	}
	if hashB64 == "" {
		return false, errors.New("invalid passcode hash format")
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(saltB64)
	if err != nil {
		return false, errors.New("invalid passcode salt")
	}
	want, err := enc.DecodeString(hashB64)
	if err != nil || len(want) < 16 {
		return false, errors.New("invalid passcode hash")
	}
	got := argon2.IDKey([]byte(passcode), salt, t, m, p, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
