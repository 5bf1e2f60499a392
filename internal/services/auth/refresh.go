package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

const refreshTokenBytes = 32

// newRefreshToken returns an opaque URL-safe token. Only its digest is
// stored, so it is never recoverable from the session store.
func newRefreshToken() (string, error) {
	b := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func newSessionID() string {
	return uuid.NewString()
}
