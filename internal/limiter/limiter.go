// Package limiter throttles repeated login failures per (username, client) pair.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Limiter controls login attempts and temporary lockouts.
type Limiter interface {
	// Allow returns zero when a login may proceed, otherwise how long the caller must wait.
	Allow(ctx context.Context, username string, client []byte) (time.Duration, error)
	// Success resets counters after a successful login.
	Success(ctx context.Context, username string, client []byte) error
	// Failure records a failed attempt. A non-zero duration means this failure placed a block.
	Failure(ctx context.Context, username string, client []byte) (time.Duration, error)
}

// Settings configure the sliding window and lockout.
type Settings struct {
	Window   time.Duration // failures older than this are forgotten
	MaxFails int           // failures within Window that trigger a block
	Block    time.Duration
}

// HashClient returns a stable hash for a client address so raw IPs are never stored.
func HashClient(addr string) []byte {
	h := sha256.Sum256([]byte(addr))
	return h[:]
}
