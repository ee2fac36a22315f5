package repository

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pathdash/internal/path"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestQuadraticBackOff_Sequence(t *testing.T) {
	bo := newQuadraticBackOff(maxRetryBackoff)

	want := []time.Duration{
		1 * time.Second,  // 0² + 1
		2 * time.Second,  // 1² + 1
		5 * time.Second,  // 2² + 1
		10 * time.Second, // 3² + 1
	}
	for i, w := range want {
		if got := bo.NextBackOff(); got != w {
			t.Errorf("NextBackOff() #%d = %v, want %v", i, got, w)
		}
	}

	bo.Reset()
	if got := bo.NextBackOff(); got != 1*time.Second {
		t.Errorf("NextBackOff() after Reset = %v, want 1s", got)
	}
}

func TestQuadraticBackOff_Capped(t *testing.T) {
	bo := newQuadraticBackOff(5 * time.Second)
	var last time.Duration
	for i := 0; i < 10; i++ {
		last = bo.NextBackOff()
	}
	if last != 5*time.Second {
		t.Errorf("NextBackOff() after many failures = %v, want cap 5s", last)
	}
}

func TestRefresh_BroadcastReachesAllSubscribers(t *testing.T) {
	r := NewRefresh()
	a := r.Subscribe()
	b := r.Subscribe()

	r.Trigger()

	for name, ch := range map[string]<-chan struct{}{"a": a, "b": b} {
		select {
		case <-ch:
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s did not receive the refresh signal", name)
		}
	}
}

func TestRefresh_SignalsCoalesce(t *testing.T) {
	r := NewRefresh()
	ch := r.Subscribe()

	r.Trigger()
	r.Trigger()
	r.Trigger()

	<-ch
	select {
	case <-ch:
		t.Fatal("expected pending signals to coalesce into one")
	default:
	}
}

func TestSendLatest_DisplacesUndeliveredValue(t *testing.T) {
	ch := make(chan int, 1)
	sendLatest(ch, 1)
	sendLatest(ch, 2)

	if got := <-ch; got != 2 {
		t.Errorf("received %d, want the latest value 2", got)
	}
}

func TestTicks_NotImmediate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ticks := Ticks(ctx, 50*time.Millisecond)
	select {
	case <-ticks:
		t.Fatal("tick emitted before the first interval elapsed")
	case <-time.After(20 * time.Millisecond):
	}
	select {
	case <-ticks:
	case <-time.After(time.Second):
		t.Fatal("tick never emitted")
	}
}

const arrivalsBody = `{"stations":[{"station":"HOB","upcomingTrains":[
	{"route":"HOB_WTC","direction":"TO_NY","projectedArrival":"2026-08-30T12:05:00Z"}]}]}`

func TestPollArrivals_EmitsAndRefreshes(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stations/realtime" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		fmt.Fprint(w, arrivalsBody)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := path.NewClient(srv.URL, srv.URL+"/alerts", "", testLogger())
	repo := New(client, time.Hour, time.Hour, testLogger())

	results := repo.PollArrivals(ctx)

	first := <-results
	if first.Err != nil {
		t.Fatalf("first poll errored: %v", first.Err)
	}
	if len(first.Arrivals["HOB"]) != 1 {
		t.Fatalf("got %d HOB trains, want 1", len(first.Arrivals["HOB"]))
	}
	if first.Arrivals["HOB"][0].Route != path.HOBWTC {
		t.Errorf("route = %v, want HOB-WTC", first.Arrivals["HOB"][0].Route)
	}

	repo.Refresh()
	select {
	case second := <-results:
		if second.Err != nil {
			t.Fatalf("refresh poll errored: %v", second.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("manual refresh did not produce a second result")
	}

	if calls.Load() < 2 {
		t.Errorf("server saw %d fetches, want at least 2", calls.Load())
	}
}

func TestPollArrivals_SupersededFetchIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var releaseOnce sync.Once
	releaseFirst := func() { releaseOnce.Do(func() { close(release) }) }

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			// Hold the first fetch in flight until the test releases it.
			close(started)
			<-release
			fmt.Fprint(w, `{"stations":[{"station":"HOB","upcomingTrains":[
				{"route":"HOB_WTC","direction":"TO_NY","projectedArrival":"2026-08-30T12:05:00Z"}]}]}`)
			return
		}
		fmt.Fprint(w, `{"stations":[{"station":"WTC","upcomingTrains":[
			{"route":"NWK_WTC","direction":"TO_NJ","projectedArrival":"2026-08-30T12:07:00Z"}]}]}`)
	}))
	defer srv.Close()
	defer releaseFirst()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := path.NewClient(srv.URL, srv.URL+"/alerts", "", testLogger())
	repo := New(client, time.Hour, time.Hour, testLogger())

	results := repo.PollArrivals(ctx)
	<-started
	repo.Refresh()

	res := <-results
	if res.Err != nil {
		t.Fatalf("refresh poll errored: %v", res.Err)
	}
	if _, ok := res.Arrivals["WTC"]; !ok {
		t.Fatalf("got arrivals %v, want the newer fetch's WTC data", res.Arrivals)
	}

	// Letting the first fetch finish now must not surface its stale data.
	releaseFirst()
	select {
	case late := <-results:
		t.Fatalf("stale in-flight fetch leaked a result: %v", late.Arrivals)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPollArrivals_ErrorResultOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := path.NewClient(srv.URL, srv.URL+"/alerts", "", testLogger())
	repo := New(client, time.Hour, time.Hour, testLogger())

	res := <-repo.PollArrivals(ctx)
	if res.Err == nil {
		t.Fatal("expected an error result from a failing server")
	}
}

func TestStations_CachedUntilInvalidated(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stations" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		fmt.Fprint(w, `{"stations":[{"station":"HOB","name":"Hoboken","coordinates":{"latitude":40.73586,"longitude":-74.02922}}]}`)
	}))
	defer srv.Close()

	client := path.NewClient(srv.URL, srv.URL+"/alerts", "", testLogger())
	repo := New(client, time.Hour, time.Hour, testLogger())

	repo.Stations()
	repo.Stations()
	if calls.Load() != 1 {
		t.Fatalf("station endpoint hit %d times, want 1 (cached)", calls.Load())
	}

	repo.InvalidateStations()
	repo.Stations()
	if calls.Load() != 2 {
		t.Fatalf("station endpoint hit %d times after invalidation, want 2", calls.Load())
	}
}

func TestStations_FallbackWhenUnreachable(t *testing.T) {
	t.Parallel() // rides out the loader's retry backoff

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	srv.Close() // immediately unreachable

	client := path.NewClient(srv.URL, srv.URL+"/alerts", "", testLogger())
	repo := New(client, time.Hour, time.Hour, testLogger())

	stations := repo.Stations()
	if len(stations) != len(path.FallbackStations) {
		t.Fatalf("got %d stations, want the %d compiled-in ones", len(stations), len(path.FallbackStations))
	}
}

func TestWatchStations_ReEmitsOnlyAfterInvalidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"stations":[{"station":"HOB","name":"Hoboken","coordinates":{"latitude":40.73586,"longitude":-74.02922}}]}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := path.NewClient(srv.URL, srv.URL+"/alerts", "", testLogger())
	repo := New(client, time.Hour, time.Hour, testLogger())

	stations := repo.WatchStations(ctx)
	<-stations

	repo.Refresh()
	select {
	case <-stations:
		t.Fatal("refresh without invalidation should not re-emit stations")
	case <-time.After(100 * time.Millisecond):
	}

	repo.InvalidateStations()
	repo.Refresh()
	select {
	case <-stations:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh after invalidation should re-emit stations")
	}
}
