package path

import (
	"time"

	"pathdash/internal/geo"
)

// Station is static reference data for one PATH station.
type Station struct {
	ID         string
	Name       string
	ShortName  string
	Coordinate geo.Coordinate
}

// Direction is which state a train is headed toward.
type Direction int

const (
	ToNJ Direction = iota
	ToNY
)

// ParseDirection maps a wire direction value to a Direction.
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "TO_NJ", "ToNJ", "NJ":
		return ToNJ, true
	case "TO_NY", "ToNY", "NY":
		return ToNY, true
	}
	return 0, false
}

// DisplayName is the destination state's full name.
func (d Direction) DisplayName() string {
	if d == ToNJ {
		return "New Jersey"
	}
	return "New York"
}

// ShortName is the destination state's abbreviation.
func (d Direction) ShortName() string {
	if d == ToNJ {
		return "NJ"
	}
	return "NY"
}

// Side is the side of the river the direction leads to.
func (d Direction) Side() geo.Side {
	if d == ToNJ {
		return geo.SideNJ
	}
	return geo.SideNY
}

// Route is one of the five PATH line segments.
type Route int

const (
	JSQ33 Route = iota
	HOB33
	HOBWTC
	NWKWTC
	JSQ33ViaHOB
)

// RouteInfo is the static configuration for a route: its two termini, the
// optional via waypoint, and the line's display color.
type RouteInfo struct {
	DisplayName string
	NJTerminus  string // station ID
	NYTerminus  string // station ID
	Via         string // station ID, empty if direct
	Color       string // hex RGB of the line color
}

var routeTable = map[Route]RouteInfo{
	JSQ33:       {DisplayName: "JSQ-33", NJTerminus: "JSQ", NYTerminus: "33S", Color: "#F0AB43"},
	HOB33:       {DisplayName: "HOB-33", NJTerminus: "HOB", NYTerminus: "33S", Color: "#2B85BB"},
	HOBWTC:      {DisplayName: "HOB-WTC", NJTerminus: "HOB", NYTerminus: "WTC", Color: "#469C23"},
	NWKWTC:      {DisplayName: "NWK-WTC", NJTerminus: "NWK", NYTerminus: "WTC", Color: "#D53D2E"},
	JSQ33ViaHOB: {DisplayName: "JSQ-33 via HOB", NJTerminus: "JSQ", NYTerminus: "33S", Via: "HOB", Color: "#F0AB43"},
}

// Info returns the route's static configuration.
func (r Route) Info() RouteInfo { return routeTable[r] }

func (r Route) String() string { return routeTable[r].DisplayName }

// ParseRoute maps a wire route value to a Route.
func ParseRoute(s string) (Route, bool) {
	switch s {
	case "JSQ_33", "JSQ-33":
		return JSQ33, true
	case "HOB_33", "HOB-33":
		return HOB33, true
	case "HOB_WTC", "HOB-WTC":
		return HOBWTC, true
	case "NWK_WTC", "NWK-WTC":
		return NWKWTC, true
	case "JSQ_33_HOB", "JSQ-33 via HOB":
		return JSQ33ViaHOB, true
	}
	return 0, false
}

// UpcomingTrain is one predicted arrival. The countdown is always derived
// from ProjectedArrival against the current clock, never stored.
type UpcomingTrain struct {
	Route            Route
	Direction        Direction
	ProjectedArrival time.Time
}

// MinutesToArrival returns the rounded minute countdown relative to now.
// Negative values mean the train already departed.
func (t UpcomingTrain) MinutesToArrival(now time.Time) int {
	mins := t.ProjectedArrival.Sub(now).Minutes()
	return int(roundHalfAway(mins))
}

func roundHalfAway(f float64) float64 {
	if f < 0 {
		return -roundHalfAway(-f)
	}
	return float64(int64(f + 0.5))
}

// FallbackStations is the compiled-in station list, used when the remote
// station endpoint is unreachable. Coordinates match the published ones.
var FallbackStations = []Station{
	{ID: "NWK", Name: "Newark", ShortName: "NWK", Coordinate: geo.Coordinate{Lat: 40.73454, Lon: -74.16375}},
	{ID: "HAR", Name: "Harrison", ShortName: "HAR", Coordinate: geo.Coordinate{Lat: 40.73942, Lon: -74.15587}},
	{ID: "JSQ", Name: "Journal Square", ShortName: "JSQ", Coordinate: geo.Coordinate{Lat: 40.73301, Lon: -74.06289}},
	{ID: "GRV", Name: "Grove Street", ShortName: "GRV", Coordinate: geo.Coordinate{Lat: 40.71966, Lon: -74.04245}},
	{ID: "NEW", Name: "Newport", ShortName: "NPT", Coordinate: geo.Coordinate{Lat: 40.72699, Lon: -74.03383}},
	{ID: "EXP", Name: "Exchange Place", ShortName: "EXP", Coordinate: geo.Coordinate{Lat: 40.71676, Lon: -74.03238}},
	{ID: "HOB", Name: "Hoboken", ShortName: "HOB", Coordinate: geo.Coordinate{Lat: 40.73586, Lon: -74.02922}},
	{ID: "WTC", Name: "World Trade Center", ShortName: "WTC", Coordinate: geo.Coordinate{Lat: 40.71271, Lon: -74.01193}},
	{ID: "CHR", Name: "Christopher Street", ShortName: "CHR", Coordinate: geo.Coordinate{Lat: 40.73295, Lon: -74.00707}},
	{ID: "09S", Name: "9th Street", ShortName: "9th", Coordinate: geo.Coordinate{Lat: 40.73424, Lon: -73.9991}},
	{ID: "14S", Name: "14th Street", ShortName: "14th", Coordinate: geo.Coordinate{Lat: 40.73735, Lon: -73.99684}},
	{ID: "23S", Name: "23rd Street", ShortName: "23rd", Coordinate: geo.Coordinate{Lat: 40.7429, Lon: -73.99278}},
	{ID: "33S", Name: "33rd Street", ShortName: "33rd", Coordinate: geo.Coordinate{Lat: 40.7486, Lon: -73.9886}},
}
