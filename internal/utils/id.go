package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewID returns a random (v4) UUID string used for message ids.
func NewID() string {
	id, err := uuid.NewRandom()
	if err == nil {
		return id.String()
	}
	return fallbackID()
}

// NewShortID returns a compact hex identifier for connection-scoped values
// such as socket client ids.
func NewShortID() string {
	const size = 8

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fallbackID()
}

// fallbackID is used when the system entropy source is unavailable.
func fallbackID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 36)
}
