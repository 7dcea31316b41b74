// Package requestid issues opaque identifiers for request correlation.
package requestid

import (
	"crypto/rand"
	"encoding/base64"
)

// New returns a 24-character URL-safe random identifier.
func New() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
