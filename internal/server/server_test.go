package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"pathdash/internal/engine"
	"pathdash/internal/geo"
	"pathdash/internal/location"
	"pathdash/internal/prefs"
)

type fakeRefresher struct {
	calls int
}

func (f *fakeRefresher) Refresh() { f.calls++ }

func newTestServer(t *testing.T) (*Server, *fakeRefresher, *location.Manual) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := prefs.Open(filepath.Join(t.TempDir(), "prefs.db"), logger)
	if err != nil {
		t.Fatalf("prefs.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	eng := engine.New(time.Hour, nil, logger)
	loc := location.NewManual()
	ref := &fakeRefresher{}
	return New(0, eng, store, loc, ref, logger), ref, loc
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestDashboardLoadingState(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/dashboard", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Arrivals struct {
			State string `json:"state"`
		} `json:"arrivals"`
		Alerts struct {
			State string `json:"state"`
		} `json:"alerts"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Arrivals.State != "loading" || body.Alerts.State != "loading" {
		t.Errorf("states = %q, %q, want loading", body.Arrivals.State, body.Alerts.State)
	}
}

func TestRefresh(t *testing.T) {
	s, ref, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/refresh", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	if ref.calls != 1 {
		t.Errorf("refresher calls = %d, want 1", ref.calls)
	}
}

func TestLocation(t *testing.T) {
	s, _, loc := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/location",
		strings.NewReader(`{"lat": 40.73586, "lon": -74.02922}`)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	got, ok := loc.Last()
	want := geo.Coordinate{Lat: 40.73586, Lon: -74.02922}
	if !ok || got != want {
		t.Errorf("Last() = %+v, %v, want %+v", got, ok, want)
	}
}

func TestLocationRejectsBadInput(t *testing.T) {
	s, _, _ := newTestServer(t)
	for name, body := range map[string]string{
		"malformed":    `{lat:`,
		"out of range": `{"lat": 95.0, "lon": -74.0}`,
	} {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/location", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", name, rec.Code)
		}
	}
}

func TestPrefsRoundTrip(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("PUT", "/api/prefs",
		strings.NewReader(`{"shortenNames": true, "showHelpGuide": false}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/prefs", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}
	var p prefs.Preferences
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !p.ShortenNames || p.ShowHelpGuide {
		t.Errorf("prefs = %+v, want shortenNames on, help guide off", p)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestRequestIDPassthrough(t *testing.T) {
	s, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}
