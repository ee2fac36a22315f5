// Package engine combines the live location, the cached station list, and
// the two polled result streams into one ViewState, recomputed whenever any
// input changes.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"pathdash/internal/alerts"
	"pathdash/internal/geo"
	"pathdash/internal/path"
	"pathdash/internal/repository"
)

// DefaultLocation is used until the location supplier produces its first
// sample: the World Trade Center.
var DefaultLocation = geo.Coordinate{Lat: 40.713056, Lon: -74.013333}

// Train is one upcoming train enriched for presentation.
type Train struct {
	path.UpcomingTrain
	MinutesToArrival  int
	Departed          bool
	OppositeDirection bool
	Alerts            []alerts.Narrative
}

// StationArrivals pairs a station with its sorted upcoming trains.
type StationArrivals struct {
	Station path.Station
	Trains  []Train
}

// ViewState is the engine's combined snapshot.
type ViewState struct {
	Arrivals Result[[]StationArrivals]
	Alerts   Result[[]alerts.Narrative]

	// Location is the coordinate the snapshot was computed against.
	// HasLocationFix is false while it is still the default.
	Location       geo.Coordinate
	HasLocationFix bool
}

// Side is the river side the snapshot's location falls on.
func (v ViewState) Side() geo.Side { return geo.ClassifySide(v.Location) }

// Inputs are the engine's four input streams. Locations may never produce;
// the engine runs on DefaultLocation until it does.
type Inputs struct {
	Locations <-chan geo.Coordinate
	Stations  <-chan []path.Station
	Arrivals  <-chan repository.ArrivalsResult
	Alerts    <-chan repository.AlertsResult
}

// Engine serializes recomputation: one goroutine owns all state, every
// input event triggers one atomic recompute-and-emit, and emissions coalesce
// latest-wins if the consumer lags.
type Engine struct {
	logger           *slog.Logger
	rederiveInterval time.Duration
	onEmptyArrivals  func()

	mu      sync.RWMutex
	latest  ViewState
	updates chan ViewState
}

// New creates an Engine. rederiveInterval re-derives countdowns between
// fetches so they stay current; onEmptyArrivals (optional) fires once per
// episode when a successful fetch yields no trains anywhere, the hook for
// the full-refresh recovery path.
func New(rederiveInterval time.Duration, onEmptyArrivals func(), logger *slog.Logger) *Engine {
	return &Engine{
		logger:           logger,
		rederiveInterval: rederiveInterval,
		onEmptyArrivals:  onEmptyArrivals,
		latest: ViewState{
			Arrivals: LoadingResult[[]StationArrivals](),
			Alerts:   LoadingResult[[]alerts.Narrative](),
			Location: DefaultLocation,
		},
		updates: make(chan ViewState, 1),
	}
}

// Latest returns the most recently emitted snapshot.
func (e *Engine) Latest() ViewState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest
}

// Updates streams snapshots, coalescing to the newest when the consumer is
// slower than the inputs.
func (e *Engine) Updates() <-chan ViewState {
	return e.updates
}

// Run blocks, combining inputs until ctx is cancelled. The engine never
// terminates on its own: every failure is transient and retried upstream.
func (e *Engine) Run(ctx context.Context, in Inputs) {
	ticker := time.NewTicker(e.rederiveInterval)
	defer ticker.Stop()

	st := &combineState{}

	for {
		select {
		case <-ctx.Done():
			return
		case loc, ok := <-in.Locations:
			if !ok {
				in.Locations = nil
				continue
			}
			st.location = loc
			st.hasFix = true
		case stations, ok := <-in.Stations:
			if !ok {
				in.Stations = nil
				continue
			}
			st.stations = stations
		case res, ok := <-in.Arrivals:
			if !ok {
				in.Arrivals = nil
				continue
			}
			st.arrivals = &res
		case res, ok := <-in.Alerts:
			if !ok {
				in.Alerts = nil
				continue
			}
			st.alerts = &res
		case <-ticker.C:
			// Countdown re-derive only; no input changed.
		}
		e.emit(st.compose(time.Now(), e.onEmptyArrivals, e.logger))
	}
}

func (e *Engine) emit(v ViewState) {
	e.mu.Lock()
	e.latest = v
	e.mu.Unlock()
	for {
		select {
		case e.updates <- v:
			return
		default:
			select {
			case <-e.updates:
			default:
			}
		}
	}
}

// combineState is the loop-private latest-of-each-input store.
type combineState struct {
	location geo.Coordinate
	hasFix   bool
	stations []path.Station
	arrivals *repository.ArrivalsResult
	alerts   *repository.AlertsResult

	lastGoodArrivals *repository.ArrivalsResult
	lastGoodAlerts   *repository.AlertsResult
	inEmptyEpisode   bool
}

func (st *combineState) compose(now time.Time, onEmptyArrivals func(), logger *slog.Logger) ViewState {
	loc := st.location
	if !st.hasFix {
		loc = DefaultLocation
	}
	return ViewState{
		Arrivals:       st.resolveArrivals(loc, now, onEmptyArrivals, logger),
		Alerts:         st.resolveAlerts(),
		Location:       loc,
		HasLocationFix: st.hasFix,
	}
}

// resolveArrivals turns the latest raw fetch into the arrivals slot,
// degrading to the last known good payload when the latest attempt failed
// or came back empty.
func (st *combineState) resolveArrivals(loc geo.Coordinate, now time.Time, onEmptyArrivals func(), logger *slog.Logger) Result[[]StationArrivals] {
	reason := ReasonNetwork
	if st.arrivals != nil && st.arrivals.Err == nil {
		data := st.buildArrivals(st.arrivals, loc, now)
		if totalTrains(data) > 0 {
			st.lastGoodArrivals = st.arrivals
			st.inEmptyEpisode = false
			return ValidResult(data, st.arrivals.FetchedAt)
		}
		// A successful fetch with zero trains everywhere is
		// indistinguishable from a broken upstream.
		reason = ReasonEmpty
		// An episode ends only when a fetch returns trains again.
		// Network failures in between do not reset it, so an
		// empty/error/empty interleaving still fires the hook once.
		if !st.inEmptyEpisode {
			st.inEmptyEpisode = true
			logger.Warn("arrivals fetch succeeded but held no trains, treating as error")
			if onEmptyArrivals != nil {
				onEmptyArrivals()
			}
		}
	}
	if st.lastGoodArrivals != nil {
		return StaleResult(st.buildArrivals(st.lastGoodArrivals, loc, now), st.lastGoodArrivals.FetchedAt, reason)
	}
	if st.arrivals == nil {
		return LoadingResult[[]StationArrivals]()
	}
	return ErrorResult[[]StationArrivals](reason)
}

func (st *combineState) resolveAlerts() Result[[]alerts.Narrative] {
	if st.alerts != nil && st.alerts.Err == nil && !st.alerts.Alerts.HasError {
		st.lastGoodAlerts = st.alerts
		return ValidResult(st.alerts.Alerts.Narratives, st.alerts.FetchedAt)
	}
	reason := ReasonNetwork
	if st.alerts != nil && st.alerts.Err == nil && st.alerts.Alerts.HasError {
		reason = ReasonParse
	}
	if st.lastGoodAlerts != nil {
		return StaleResult(st.lastGoodAlerts.Alerts.Narratives, st.lastGoodAlerts.FetchedAt, reason)
	}
	if st.alerts == nil {
		return LoadingResult[[]alerts.Narrative]()
	}
	return ErrorResult[[]alerts.Narrative](reason)
}

// buildArrivals pairs distance-sorted stations with their enriched, sorted
// train lists. Stations absent from the fetch are skipped.
func (st *combineState) buildArrivals(raw *repository.ArrivalsResult, loc geo.Coordinate, now time.Time) []StationArrivals {
	stations := st.stations
	if stations == nil {
		stations = path.FallbackStations
	}
	sorted := make([]path.Station, len(stations))
	copy(sorted, stations)
	geo.SortByDistance(sorted, loc, func(s path.Station) geo.Coordinate { return s.Coordinate })

	side := geo.ClassifySide(loc)
	narratives := st.currentNarratives()

	out := make([]StationArrivals, 0, len(sorted))
	for _, station := range sorted {
		upcoming, ok := raw.Arrivals[station.ID]
		if !ok {
			continue
		}
		trains := make([]Train, 0, len(upcoming))
		for _, t := range upcoming {
			mins := t.MinutesToArrival(now)
			trains = append(trains, Train{
				UpcomingTrain:     t,
				MinutesToArrival:  mins,
				Departed:          mins < 0,
				OppositeDirection: t.Direction.Side() == side,
				Alerts:            matchNarratives(narratives, t.Route),
			})
		}
		sortTrains(trains)
		out = append(out, StationArrivals{Station: station, Trains: trains})
	}
	return out
}

// currentNarratives returns whichever alert narratives are usable for
// attaching to trains: the latest valid parse, else the last known good one.
func (st *combineState) currentNarratives() []alerts.Narrative {
	if st.alerts != nil && st.alerts.Err == nil && !st.alerts.Alerts.HasError {
		return st.alerts.Alerts.Narratives
	}
	if st.lastGoodAlerts != nil {
		return st.lastGoodAlerts.Alerts.Narratives
	}
	return nil
}

func matchNarratives(narratives []alerts.Narrative, route path.Route) []alerts.Narrative {
	var matched []alerts.Narrative
	for _, n := range narratives {
		if n.Matches(route) {
			matched = append(matched, n)
		}
	}
	return matched
}

// sortTrains orders a station's trains by (direction rank, minutes),
// stably: trains leaving the rider's side first, then by arrival time.
func sortTrains(trains []Train) {
	sort.SliceStable(trains, func(i, j int) bool {
		ri, rj := directionRank(trains[i]), directionRank(trains[j])
		if ri != rj {
			return ri < rj
		}
		return trains[i].MinutesToArrival < trains[j].MinutesToArrival
	})
}

func directionRank(t Train) int {
	if t.OppositeDirection {
		return 1
	}
	return -1
}

func totalTrains(data []StationArrivals) int {
	n := 0
	for _, sa := range data {
		n += len(sa.Trains)
	}
	return n
}
