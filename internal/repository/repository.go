// Package repository owns the station cache and the two polled result
// streams (arrivals, alerts). Each poller merges its own timer with the
// shared manual-refresh broadcast and applies quadratic backoff on failure.
package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/bluele/gcache"
	"github.com/cenkalti/backoff/v4"

	"pathdash/internal/alerts"
	"pathdash/internal/path"
)

const (
	stationsKey         = "stations"
	stationFetchRetries = 2
	maxRetryBackoff     = 5 * time.Minute
)

// ArrivalsResult is one arrivals fetch attempt: trains per station ID, or an
// error.
type ArrivalsResult struct {
	Arrivals  map[string][]path.UpcomingTrain
	FetchedAt time.Time
	Err       error
}

// AlertsResult is one alerts fetch attempt.
type AlertsResult struct {
	Alerts    alerts.Parsed
	FetchedAt time.Time
	Err       error
}

// Repository fronts the remote gateway with a single-flight station cache
// and the polling loops.
type Repository struct {
	client           *path.Client
	logger           *slog.Logger
	refresh          *Refresh
	stationCache     gcache.Cache
	arrivalsInterval time.Duration
	alertsInterval   time.Duration
}

// New creates a Repository. The station cache holds one slot, populated at
// most once until explicitly invalidated; concurrent first reads share a
// single fetch.
func New(client *path.Client, arrivalsInterval, alertsInterval time.Duration, logger *slog.Logger) *Repository {
	r := &Repository{
		client:           client,
		logger:           logger,
		refresh:          NewRefresh(),
		arrivalsInterval: arrivalsInterval,
		alertsInterval:   alertsInterval,
	}
	r.stationCache = gcache.New(1).
		Simple().
		LoaderFunc(func(any) (any, error) {
			return r.loadStations(), nil
		}).
		Build()
	return r
}

// Refresh triggers the shared manual-refresh signal consumed by both
// pollers simultaneously.
func (r *Repository) Refresh() {
	r.refresh.Trigger()
}

// InvalidateStations clears the station cache so the next read refetches.
// Part of the full-refresh error-recovery path; normal refreshes keep the
// cached list.
func (r *Repository) InvalidateStations() {
	r.stationCache.Remove(stationsKey)
}

// Stations returns the cached station list, fetching it on first use.
func (r *Repository) Stations() []path.Station {
	v, err := r.stationCache.Get(stationsKey)
	if err != nil {
		// Loader never errors; it falls back to the compiled-in list.
		return path.FallbackStations
	}
	return v.([]path.Station)
}

// loadStations fetches the station list with quadratic backoff. After the
// retry budget is spent it falls back to the compiled-in list so the rest of
// the dashboard keeps working.
func (r *Repository) loadStations() []path.Station {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	stations, err := backoff.RetryNotifyWithData(
		func() ([]path.Station, error) {
			return r.client.Stations(ctx)
		},
		backoff.WithContext(backoff.WithMaxRetries(newQuadraticBackOff(maxRetryBackoff), stationFetchRetries), ctx),
		func(err error, d time.Duration) {
			r.logger.Warn("station fetch failed, backing off", "error", err, "retry_in", d)
		},
	)
	if err != nil {
		r.logger.Error("station fetch exhausted retries, using compiled-in list", "error", err)
		return path.FallbackStations
	}
	r.logger.Info("station list loaded", "count", len(stations))
	return stations
}

// WatchStations emits the station list once at start and again whenever a
// manual refresh finds the cache invalidated. Cached values are not
// re-emitted.
func (r *Repository) WatchStations(ctx context.Context) <-chan []path.Station {
	out := make(chan []path.Station, 1)
	refreshCh := r.refresh.Subscribe()
	go func() {
		defer close(out)
		sendLatest(out, r.Stations())
		for {
			select {
			case <-ctx.Done():
				return
			case <-refreshCh:
				if _, err := r.stationCache.GetIFPresent(stationsKey); err != nil {
					sendLatest(out, r.Stations())
				}
			}
		}
	}()
	return out
}

// PollArrivals re-fetches arrivals on every tick of the merged trigger and
// streams each attempt's outcome.
func (r *Repository) PollArrivals(ctx context.Context) <-chan ArrivalsResult {
	out := make(chan ArrivalsResult, 1)
	go pollLoop(ctx, r.logger, "arrivals", r.arrivalsInterval, r.refresh, out,
		func(ctx context.Context) (ArrivalsResult, error) {
			arrivals, err := r.client.Arrivals(ctx)
			if err != nil {
				return ArrivalsResult{FetchedAt: time.Now(), Err: err}, err
			}
			return ArrivalsResult{Arrivals: arrivals, FetchedAt: time.Now()}, nil
		})
	return out
}

// PollAlerts is the alerts counterpart, typically on a much slower interval.
func (r *Repository) PollAlerts(ctx context.Context) <-chan AlertsResult {
	out := make(chan AlertsResult, 1)
	go pollLoop(ctx, r.logger, "alerts", r.alertsInterval, r.refresh, out,
		func(ctx context.Context) (AlertsResult, error) {
			parsed, err := r.fetchAlerts(ctx)
			if err != nil {
				return AlertsResult{FetchedAt: time.Now(), Err: err}, err
			}
			return AlertsResult{Alerts: parsed, FetchedAt: time.Now()}, nil
		})
	return out
}

// fetchAlerts pulls the HTML envelope and, when configured, the GTFS-RT
// feed, funneling both into one parse-and-group pass.
func (r *Repository) fetchAlerts(ctx context.Context) (alerts.Parsed, error) {
	container, err := r.client.Alerts(ctx)
	if err != nil {
		return alerts.Parsed{}, err
	}
	entries, hasError := alerts.ParseEntries(container.Content)

	if r.client.HasAlertsRT() {
		raw, err := r.client.AlertsRT(ctx)
		if err != nil {
			r.logger.Warn("GTFS-RT alerts fetch failed, using scrape only", "error", err)
		} else if rtEntries, err := alerts.ParseRT(raw); err != nil {
			r.logger.Warn("GTFS-RT alerts unparseable, using scrape only", "error", err)
		} else if len(rtEntries) > 0 {
			entries = alerts.Normalize(append(entries, rtEntries...))
			hasError = false
		}
	}

	return alerts.Parsed{Narratives: alerts.Group(entries), HasError: hasError}, nil
}

// fetchOutcome carries a generation-tagged fetch result back to the loop.
type fetchOutcome[T any] struct {
	gen    uint64
	result T
	err    error
}

// pollLoop is the shared poller: an immediate fetch on start, then a fetch
// per trigger (tick, manual refresh, or backoff retry). Fetches run in their
// own goroutine; each launch supersedes any fetch still in flight, and a
// superseded result is discarded, not merged in.
func pollLoop[T any](
	ctx context.Context,
	logger *slog.Logger,
	name string,
	interval time.Duration,
	refresh *Refresh,
	out chan T,
	fetch func(context.Context) (T, error),
) {
	defer close(out)

	trigger := Merged(ctx, interval, refresh)
	results := make(chan fetchOutcome[T], 1)

	bo := newQuadraticBackOff(maxRetryBackoff)
	var gen uint64
	var retryCh <-chan time.Time

	launch := func() {
		gen++
		g := gen
		go func() {
			result, err := fetch(ctx)
			select {
			case results <- fetchOutcome[T]{gen: g, result: result, err: err}:
			case <-ctx.Done():
			}
		}()
	}

	launch()

	for {
		select {
		case <-ctx.Done():
			return
		case <-trigger:
			launch()
		case <-retryCh:
			retryCh = nil
			launch()
		case res := <-results:
			if res.gen != gen {
				// A newer fetch was launched while this one was in flight.
				continue
			}
			if res.err != nil {
				wait := bo.NextBackOff()
				logger.Warn("poll failed, backing off", "stream", name, "error", res.err, "retry_in", wait)
				retryCh = time.After(wait)
			} else {
				bo.Reset()
				retryCh = nil
				logger.Info("poll succeeded", "stream", name)
			}
			sendLatest(out, res.result)
		}
	}
}

// sendLatest delivers v on a buffered channel, displacing an undelivered
// older value rather than blocking (latest-wins coalescing).
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
