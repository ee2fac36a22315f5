package path

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"pathdash/internal/geo"
)

// Client is an HTTP client for the PATH data endpoints: the station list,
// the realtime arrivals feed, and the alerts feeds.
type Client struct {
	baseURL     string
	alertsURL   string
	alertsRTURL string // optional GTFS-RT service-alerts feed
	client      *http.Client
	logger      *slog.Logger
}

// NewClient creates a PATH API client. alertsRTURL may be empty if no GTFS-RT
// alerts feed is configured.
func NewClient(baseURL, alertsURL, alertsRTURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:     baseURL,
		alertsURL:   alertsURL,
		alertsRTURL: alertsRTURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

type stationsResponse struct {
	Stations []stationJSON `json:"stations"`
}

type stationJSON struct {
	ID          string `json:"station"`
	Name        string `json:"name"`
	ShortName   string `json:"shortName"`
	Coordinates struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`
}

// Stations fetches the station list.
func (c *Client) Stations(ctx context.Context) ([]Station, error) {
	resp, err := c.doGet(ctx, c.baseURL+"/stations")
	if err != nil {
		return nil, fmt.Errorf("fetch stations: %w", err)
	}
	defer resp.Body.Close()

	var result stationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode stations: %w", err)
	}

	stations := make([]Station, 0, len(result.Stations))
	for _, s := range result.Stations {
		short := s.ShortName
		if short == "" {
			short = s.ID
		}
		stations = append(stations, Station{
			ID:         s.ID,
			Name:       s.Name,
			ShortName:  short,
			Coordinate: geo.Coordinate{Lat: s.Coordinates.Latitude, Lon: s.Coordinates.Longitude},
		})
	}
	return stations, nil
}

type arrivalsResponse struct {
	Stations []struct {
		Station        string `json:"station"`
		UpcomingTrains []struct {
			Route            string    `json:"route"`
			Direction        string    `json:"direction"`
			ProjectedArrival time.Time `json:"projectedArrival"`
		} `json:"upcomingTrains"`
	} `json:"stations"`
}

// Arrivals fetches upcoming trains for every station, keyed by station ID.
// Trains with unrecognized routes or directions are skipped with a warning.
func (c *Client) Arrivals(ctx context.Context) (map[string][]UpcomingTrain, error) {
	resp, err := c.doGet(ctx, c.baseURL+"/stations/realtime")
	if err != nil {
		return nil, fmt.Errorf("fetch arrivals: %w", err)
	}
	defer resp.Body.Close()

	var result arrivalsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode arrivals: %w", err)
	}

	arrivals := make(map[string][]UpcomingTrain, len(result.Stations))
	for _, s := range result.Stations {
		trains := make([]UpcomingTrain, 0, len(s.UpcomingTrains))
		for _, t := range s.UpcomingTrains {
			route, ok := ParseRoute(t.Route)
			if !ok {
				c.logger.Warn("unknown route in arrivals feed", "route", t.Route, "station", s.Station)
				continue
			}
			dir, ok := ParseDirection(t.Direction)
			if !ok {
				c.logger.Warn("unknown direction in arrivals feed", "direction", t.Direction, "station", s.Station)
				continue
			}
			trains = append(trains, UpcomingTrain{
				Route:            route,
				Direction:        dir,
				ProjectedArrival: t.ProjectedArrival,
			})
		}
		arrivals[s.Station] = trains
	}
	return arrivals, nil
}

// AlertContainer is the JSON envelope the alerts endpoint returns. Content
// carries the HTML-ish scrape the parser understands.
type AlertContainer struct {
	ContentKey string `json:"ContentKey"`
	Content    string `json:"Content"`
}

// Alerts fetches the alerts envelope.
func (c *Client) Alerts(ctx context.Context) (AlertContainer, error) {
	resp, err := c.doGet(ctx, c.alertsURL)
	if err != nil {
		return AlertContainer{}, fmt.Errorf("fetch alerts: %w", err)
	}
	defer resp.Body.Close()

	var container AlertContainer
	if err := json.NewDecoder(resp.Body).Decode(&container); err != nil {
		return AlertContainer{}, fmt.Errorf("decode alerts: %w", err)
	}
	return container, nil
}

// HasAlertsRT reports whether a GTFS-RT alerts feed is configured.
func (c *Client) HasAlertsRT() bool { return c.alertsRTURL != "" }

// AlertsRT fetches the raw GTFS-RT service-alerts protobuf.
func (c *Client) AlertsRT(ctx context.Context) ([]byte, error) {
	resp, err := c.doGet(ctx, c.alertsRTURL)
	if err != nil {
		return nil, fmt.Errorf("fetch GTFS-RT alerts: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read GTFS-RT alerts body: %w", err)
	}
	return body, nil
}

func (c *Client) doGet(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return resp, nil
}
