// Package ratelimit implements a token bucket.
package ratelimit

import (
	"sync"
	"time"
)

type RateLimit struct {
	tokens   float64
	capacity float64
	rate     float64 // tokens added per second
	lastTime time.Time
	now      func() time.Time
	mtx      sync.Mutex
}

// NewRateLimit creates a full bucket refilled at rate tokens per second.
// A rate of zero never refills.
func NewRateLimit(rate float64, capacity int64) *RateLimit {
	r := &RateLimit{
		tokens:   float64(capacity),
		capacity: float64(capacity),
		rate:     rate,
		now:      time.Now,
	}
	r.lastTime = r.now()
	return r
}

// GetToken takes one token, reporting false when the bucket is empty.
func (r *RateLimit) GetToken() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	now := r.now()
	r.tokens += now.Sub(r.lastTime).Seconds() * r.rate
	if r.tokens > r.capacity {
		r.tokens = r.capacity
	}
	r.lastTime = now

	if r.tokens < 1 {
		return false
	}

	r.tokens--
	return true
}
