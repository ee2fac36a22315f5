// Package display maps the engine's combined snapshot into the model the
// dashboard renders. Mapping is pure: same snapshot, preferences, and clock
// always yield the same model.
package display

import (
	"fmt"
	"time"

	"pathdash/internal/alerts"
	"pathdash/internal/engine"
	"pathdash/internal/path"
	"pathdash/internal/prefs"
)

// Model is the render-ready dashboard.
type Model struct {
	Arrivals ArrivalsView `json:"arrivals"`
	Alerts   AlertsView   `json:"alerts"`
}

// ArrivalsView is the arrivals panel: nearest stations first.
type ArrivalsView struct {
	State     string        `json:"state"`
	Stale     bool          `json:"stale,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Stations  []StationView `json:"stations,omitempty"`
}

// StationView is one station's card.
type StationView struct {
	Name   string      `json:"name"`
	Trains []TrainView `json:"trains"`
}

// TrainView is one countdown row.
type TrainView struct {
	Route             string      `json:"route"`
	Color             string      `json:"color"`
	Direction         string      `json:"direction"`
	Countdown         string      `json:"countdown"`
	OppositeDirection bool        `json:"oppositeDirection,omitempty"`
	HelpText          string      `json:"helpText,omitempty"`
	Alerts            []AlertView `json:"alerts,omitempty"`
}

// AlertsView is the alerts panel.
type AlertsView struct {
	State     string      `json:"state"`
	Stale     bool        `json:"stale,omitempty"`
	Reason    string      `json:"reason,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Alerts    []AlertView `json:"alerts,omitempty"`
}

// AlertView is one narrative: its title line, the latest message, and the
// older messages newest first.
type AlertView struct {
	Title   string    `json:"title"`
	Latest  string    `json:"latest"`
	Time    time.Time `json:"time"`
	History []string  `json:"history,omitempty"`
}

// Map builds the dashboard model from a snapshot. Departed trains are
// always hidden; wrong-way trains are hidden unless the user opted in or
// there is no location fix to judge direction by.
func Map(view engine.ViewState, p prefs.Preferences, now time.Time) Model {
	return Model{
		Arrivals: mapArrivals(view, p, now),
		Alerts:   mapAlerts(view.Alerts, p),
	}
}

func mapArrivals(view engine.ViewState, p prefs.Preferences, now time.Time) ArrivalsView {
	out := ArrivalsView{
		State:     view.Arrivals.State.String(),
		Stale:     view.Arrivals.Stale,
		Reason:    view.Arrivals.Reason,
		UpdatedAt: view.Arrivals.LastUpdated,
	}
	if !view.Arrivals.IsValid() {
		return out
	}

	hideOpposite := view.HasLocationFix && !p.ShowOppositeDirection
	for _, sa := range view.Arrivals.Data {
		sv := StationView{Name: stationName(sa.Station, p)}
		seenDirection := map[path.Direction]bool{}
		for _, train := range sa.Trains {
			// Countdowns are re-derived against the request clock so a view
			// rendered between engine recomputes is still exact.
			mins := train.MinutesToArrival
			if !train.ProjectedArrival.IsZero() {
				mins = train.UpcomingTrain.MinutesToArrival(now)
			}
			if train.Departed || mins < 0 {
				continue
			}
			if hideOpposite && train.OppositeDirection {
				continue
			}
			tv := TrainView{
				Route:             train.Route.String(),
				Color:             train.Route.Info().Color,
				Direction:         train.Direction.ShortName(),
				Countdown:         CountdownLabel(mins),
				OppositeDirection: train.OppositeDirection,
				Alerts:            mapNarratives(train.Alerts, p),
			}
			if p.ShowHelpGuide && !seenDirection[train.Direction] {
				seenDirection[train.Direction] = true
				tv.HelpText = "Heading to " + train.Direction.DisplayName()
			}
			sv.Trains = append(sv.Trains, tv)
		}
		if len(sv.Trains) > 0 {
			out.Stations = append(out.Stations, sv)
		}
	}
	return out
}

func mapAlerts(res engine.Result[[]alerts.Narrative], p prefs.Preferences) AlertsView {
	out := AlertsView{
		State:     res.State.String(),
		Stale:     res.Stale,
		Reason:    res.Reason,
		UpdatedAt: res.LastUpdated,
	}
	if !res.IsValid() {
		return out
	}
	out.Alerts = mapNarratives(res.Data, p)
	return out
}

func mapNarratives(narratives []alerts.Narrative, p prefs.Preferences) []AlertView {
	var views []AlertView
	for _, n := range narratives {
		if !p.ShowElevatorAlerts && isElevatorNarrative(n) {
			continue
		}
		av := AlertView{
			Title:  n.Title.String(),
			Latest: n.Latest.Text,
			Time:   n.Latest.Time,
		}
		for _, h := range n.History {
			av.History = append(av.History, h.Text)
		}
		views = append(views, av)
	}
	return views
}

// isElevatorNarrative reports whether every message in the narrative is
// about an elevator outage.
func isElevatorNarrative(n alerts.Narrative) bool {
	if !n.Latest.IsElevator() {
		return false
	}
	for _, h := range n.History {
		if !h.IsElevator() {
			return false
		}
	}
	return true
}

func stationName(s path.Station, p prefs.Preferences) string {
	if p.ShortenNames && s.ShortName != "" {
		return s.ShortName
	}
	return s.Name
}

// CountdownLabel formats a minute countdown the way the board shows it.
func CountdownLabel(mins int) string {
	switch {
	case mins <= 0:
		return "now"
	case mins == 1:
		return "1 min"
	default:
		return fmt.Sprintf("%d mins", mins)
	}
}
