package util

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID generates a ULID string, used for campaign IDs.
func NewID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.Reader, 0)

	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewDispatchToken mints the per-attempt recipient token that correlates a
// dispatch request with the gateway response line and any later delivery
// webhook. A retried send gets a fresh token.
func NewDispatchToken() string {
	return uuid.NewString()
}
