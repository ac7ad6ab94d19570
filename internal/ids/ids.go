// Package ids generates the opaque identifiers used across Jarls: game and
// player IDs via google/uuid, and session tokens via crypto/rand, mirroring
// the teacher's crypto/rand game-ID generator in celebrity.go.
package ids

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewGameID returns a fresh opaque game identifier.
func NewGameID() string {
	return uuid.NewString()
}

// NewPlayerID returns a fresh opaque player identifier.
func NewPlayerID() string {
	return uuid.NewString()
}

// NewSessionToken returns a 256-bit random token, hex-encoded, per spec
// §4.F's session store.
func NewSessionToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
