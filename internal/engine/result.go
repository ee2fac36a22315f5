package engine

import "time"

// State tags a Result slot.
type State int

const (
	StateLoading State = iota
	StateError
	StateValid
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateError:
		return "error"
	default:
		return "valid"
	}
}

// Failure reasons, so the presentation layer can tell a dead network from a
// broken upstream when there is no prior data to fall back on.
const (
	ReasonNetwork = "network"
	ReasonParse   = "parse"
	ReasonEmpty   = "empty"
)

// Result is one data slot of the view: loading, failed, or valid. A slot that
// was valid once never goes blank on a later failure; the recovery policy
// re-emits the previous value with Stale set so the presentation layer can
// show a non-blocking banner.
type Result[T any] struct {
	State       State
	Data        T
	LastUpdated time.Time
	Stale       bool

	// Reason classifies the failure behind an Error or Stale result.
	Reason string
}

// LoadingResult is the initial slot value.
func LoadingResult[T any]() Result[T] {
	return Result[T]{State: StateLoading}
}

// ErrorResult marks a slot failed with no previous value to fall back on.
func ErrorResult[T any](reason string) Result[T] {
	return Result[T]{State: StateError, Reason: reason}
}

// ValidResult wraps fresh data.
func ValidResult[T any](data T, at time.Time) Result[T] {
	return Result[T]{State: StateValid, Data: data, LastUpdated: at}
}

// StaleResult wraps previously-valid data being served through a failure.
func StaleResult[T any](data T, at time.Time, reason string) Result[T] {
	return Result[T]{State: StateValid, Data: data, LastUpdated: at, Stale: true, Reason: reason}
}

// IsValid reports whether the slot holds usable data.
func (r Result[T]) IsValid() bool { return r.State == StateValid }
