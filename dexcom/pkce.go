package dexcom

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// PKCE verifier length bounds from RFC 7636.
const (
	MinVerifierLength     = 43
	MaxVerifierLength     = 128
	DefaultVerifierLength = 64
)

// verifierCharset is the unreserved character set RFC 7636 permits.
const verifierCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-._~"

// GenerateVerifier returns a cryptographically random PKCE code verifier of
// the given length. A zero length selects DefaultVerifierLength.
func GenerateVerifier(length int) (string, error) {
	if length == 0 {
		length = DefaultVerifierLength
	}
	if length < MinVerifierLength || length > MaxVerifierLength {
		return "", fmt.Errorf("dexcom: verifier length %d outside [%d, %d]", length, MinVerifierLength, MaxVerifierLength)
	}

	out := make([]byte, length)
	buf := make([]byte, length)
	filled := 0
	for filled < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("dexcom: generate verifier: %w", err)
		}
		for _, b := range buf {
			// Rejection sampling keeps the charset distribution uniform:
			// accept only bytes below the largest multiple of len(charset).
			if int(b) >= 3*len(verifierCharset) {
				continue
			}
			out[filled] = verifierCharset[int(b)%len(verifierCharset)]
			filled++
			if filled == length {
				break
			}
		}
	}
	return string(out), nil
}

// ChallengeS256 derives the S256 code challenge for a verifier:
// base64url without padding of the SHA-256 digest.
func ChallengeS256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
