// Package ratelimit implements a fixed-window request counter keyed by
// client identity. Each increment is atomic, so concurrent requests from the
// same client can never both observe the last free slot.
package ratelimit

import (
	"context"
	"time"
)

// Result describes the state of a key's window after one hit.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter counts a hit for key and reports whether it fits in the window.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

func newResult(count int64, limit int, resetAt time.Time) Result {
	remaining := int64(limit) - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: int(remaining),
		ResetAt:   resetAt,
	}
}
