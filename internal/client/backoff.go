package client

import (
	"context"
	"time"
)

// Reconnect delays for notification streams. Tests shorten them.
var (
	retryMin = time.Second
	retryMax = 30 * time.Second
)

// backoff doubles the reconnect delay after each failed attempt.
type backoff struct {
	next time.Duration
}

func (b *backoff) reset() { b.next = 0 }

// wait sleeps for the current delay and reports false if ctx ended first.
func (b *backoff) wait(ctx context.Context) bool {
	if b.next == 0 {
		b.next = retryMin
	}
	t := time.NewTimer(b.next)
	defer t.Stop()
	b.next *= 2
	if b.next > retryMax {
		b.next = retryMax
	}
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// emit sends m on out unless ctx ends first.
func emit(ctx context.Context, out chan<- DirtyMessage, m DirtyMessage) bool {
	select {
	case out <- m:
		return true
	case <-ctx.Done():
		return false
	}
}
