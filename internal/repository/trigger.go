package repository

import (
	"context"
	"sync"
	"time"
)

// Refresh is the shared manual-refresh broadcast. One Trigger call reaches
// every subscriber, so a user-initiated refresh restarts every poller at
// once.
type Refresh struct {
	mu   sync.Mutex
	subs []chan struct{}
}

// NewRefresh creates an empty broadcast.
func NewRefresh() *Refresh {
	return &Refresh{}
}

// Subscribe returns a channel that receives one signal per Trigger call.
// The channel is buffered; a subscriber that is already behind by one signal
// coalesces further signals instead of queueing them.
func (r *Refresh) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	r.mu.Lock()
	r.subs = append(r.subs, ch)
	r.mu.Unlock()
	return ch
}

// Trigger broadcasts one immediate signal to all subscribers. Never blocks.
func (r *Refresh) Trigger() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Ticks emits on the returned channel every interval, starting after the
// first interval elapses. The channel closes when ctx is cancelled.
func Ticks(ctx context.Context, interval time.Duration) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}

// Merged unions the periodic tick with the shared manual-refresh broadcast
// into one trigger stream.
func Merged(ctx context.Context, interval time.Duration, refresh *Refresh) <-chan struct{} {
	out := make(chan struct{}, 1)
	ticks := Ticks(ctx, interval)
	refreshCh := refresh.Subscribe()
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticks:
			case <-refreshCh:
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out
}
