package repository

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// quadraticBackOff waits (attempt²+1) seconds between consecutive failures,
// capped, with the attempt counter reset on success.
type quadraticBackOff struct {
	attempt int
	max     time.Duration
}

var _ backoff.BackOff = (*quadraticBackOff)(nil)

func newQuadraticBackOff(max time.Duration) *quadraticBackOff {
	return &quadraticBackOff{max: max}
}

func (b *quadraticBackOff) NextBackOff() time.Duration {
	d := time.Duration(b.attempt*b.attempt+1) * time.Second
	b.attempt++
	if d > b.max {
		d = b.max
	}
	return d
}

func (b *quadraticBackOff) Reset() {
	b.attempt = 0
}
