// Package vault obfuscates third-party portal credentials so they are never
// stored in the same plaintext form as first-party secrets. The scheme is a
// reversible per-character XOR keyed by the owning username; it is a
// capability, not a security boundary.
package vault

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	envelopeSep    = "_"
	envelopeSuffix = "_lab"
)

// ErrInvalidFormat indicates a token was not produced by Obfuscate with the
// same username. Revealing must fail loudly rather than return garbage.
var ErrInvalidFormat = errors.New("vault: token does not match expected envelope")

// Obfuscate frames the password as "<username>_<password>_lab", XORs it
// byte-for-byte against the UTF-8 bytes of username (cycling as needed) and
// base64-encodes the result.
func Obfuscate(username, password string) (string, error) {
	if username == "" {
		return "", errors.New("vault: username required")
	}
	framed := username + envelopeSep + password + envelopeSuffix
	return base64.StdEncoding.EncodeToString(xorCycle([]byte(framed), []byte(username))), nil
}

// Reveal reverses Obfuscate and strips the envelope, returning the original
// password. It returns ErrInvalidFormat when the decoded text does not carry
// the "<username>_" prefix and "_lab" suffix, which signals a token/username
// mismatch.
func Reveal(username, token string) (string, error) {
	if username == "" {
		return "", errors.New("vault: username required")
	}
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("vault: decode token: %w", ErrInvalidFormat)
	}
	framed := string(xorCycle(raw, []byte(username)))

	prefix := username + envelopeSep
	if len(framed) < len(prefix)+len(envelopeSuffix) ||
		!strings.HasPrefix(framed, prefix) || !strings.HasSuffix(framed, envelopeSuffix) {
		return "", ErrInvalidFormat
	}
	body := framed[len(prefix) : len(framed)-len(envelopeSuffix)]
	return body, nil
}

func xorCycle(data, key []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}
