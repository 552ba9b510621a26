package ratelimit

import (
	"context"
	"sync"
	"time"
)

// TokenLimiter enforces a per-minute token budget for AI provider calls.
type TokenLimiter struct {
	mu        sync.Mutex
	limit     int
	remaining int
	resetAt   time.Time
}

// NewTokenLimiter creates a limiter with the given tokens-per-minute budget.
func NewTokenLimiter(maxTokenPerMinute int) *TokenLimiter {
	return &TokenLimiter{
		limit:     maxTokenPerMinute,
		remaining: maxTokenPerMinute,
		resetAt:   time.Now().Add(time.Minute),
	}
}

// Wait blocks until the given token count can be spent within the current
// window, or the context is canceled. Requests larger than the whole budget
// are allowed through once the window is fresh.
func (l *TokenLimiter) Wait(ctx context.Context, tokens int) error {
	for {
		l.mu.Lock()
		now := time.Now()
		if now.After(l.resetAt) {
			l.remaining = l.limit
			l.resetAt = now.Add(time.Minute)
		}
		if tokens >= l.limit && l.remaining == l.limit {
			l.remaining = 0
			l.mu.Unlock()
			return nil
		}
		if tokens <= l.remaining {
			l.remaining -= tokens
			l.mu.Unlock()
			return nil
		}
		wait := time.Until(l.resetAt)
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// GetRemaining returns the tokens left in the current window.
func (l *TokenLimiter) GetRemaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if time.Now().After(l.resetAt) {
		return l.limit
	}
	return l.remaining
}
