// Package location supplies coordinate samples to the combine loop. There
// is no device GPS here; samples come in over the API or from a fixed
// configuration value.
package location

import (
	"context"
	"sync"

	"pathdash/internal/geo"
)

// Source produces location samples. The channel is never closed; a source
// that stops producing simply goes quiet.
type Source interface {
	Updates() <-chan geo.Coordinate
}

// Static is a source that emits one fixed coordinate and then stays silent.
type Static struct {
	ch chan geo.Coordinate
}

// NewStatic returns a source primed with the given coordinate.
func NewStatic(c geo.Coordinate) *Static {
	ch := make(chan geo.Coordinate, 1)
	ch <- c
	return &Static{ch: ch}
}

func (s *Static) Updates() <-chan geo.Coordinate { return s.ch }

// Manual is a push source fed by Set, typically from an API handler
// relaying a phone's position. Sends coalesce latest-wins so a slow
// consumer always sees the newest sample.
type Manual struct {
	mu   sync.Mutex
	ch   chan geo.Coordinate
	last *geo.Coordinate
}

func NewManual() *Manual {
	return &Manual{ch: make(chan geo.Coordinate, 1)}
}

func (m *Manual) Updates() <-chan geo.Coordinate { return m.ch }

// Set publishes a new sample, replacing any undelivered one.
func (m *Manual) Set(c geo.Coordinate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = &c
	for {
		select {
		case m.ch <- c:
			return
		default:
			select {
			case <-m.ch:
			default:
			}
		}
	}
}

// Merge fans several sources into one stream, e.g. a configured fixed
// coordinate plus live pushes from a phone. Runs until ctx is cancelled.
func Merge(ctx context.Context, sources ...Source) <-chan geo.Coordinate {
	out := make(chan geo.Coordinate, 1)
	for _, src := range sources {
		go func(ch <-chan geo.Coordinate) {
			for {
				select {
				case <-ctx.Done():
					return
				case c := <-ch:
					select {
					case out <- c:
					case <-ctx.Done():
						return
					}
				}
			}
		}(src.Updates())
	}
	return out
}

// Last returns the most recently pushed sample, if any.
func (m *Manual) Last() (geo.Coordinate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return geo.Coordinate{}, false
	}
	return *m.last, true
}
