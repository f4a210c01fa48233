// Package token generates and validates the opaque credentials used by
// the check-in flow: one-time invite tokens (OIT), handoff tokens (HOT),
// reconnect tokens (RRT) and device nonces. Tokens carry a class prefix
// so a presented token's kind is self-evident, but encode nothing else;
// validity is always a store lookup.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

type Kind string

const (
	KindInvite      Kind = "oit"
	KindHandoff     Kind = "hot"
	KindReconnect   Kind = "rrt"
	KindDeviceNonce Kind = "dvc"
)

// 16 random bytes, hex encoded: 128 bits of entropy after the prefix.
const randomBytes = 16

func generate(kind Kind) (string, error) {
	buf := make([]byte, randomBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return string(kind) + "_" + hex.EncodeToString(buf), nil
}

func NewInviteToken() (string, error)  { return generate(KindInvite) }
func NewHandoffToken() (string, error) { return generate(KindHandoff) }
func NewReconnectToken() (string, error) {
	return generate(KindReconnect)
}
func NewDeviceNonce() (string, error) { return generate(KindDeviceNonce) }

// ValidFormat is a syntactic filter only: prefix plus minimum length.
// It is never an authorization decision.
func ValidFormat(kind Kind, s string) bool {
	prefix := string(kind) + "_"
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	return len(s) >= len(prefix)+2*randomBytes
}

// Hash is the stored form of a reconnect token. The raw value is sent to
// the client once and is not recoverable from the hash.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func ConstantTimeEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Mask redacts a token for log output.
func Mask(tok string) string {
	if len(tok) <= 8 {
		return "********"
	}
	return tok[:8] + "****"
}
