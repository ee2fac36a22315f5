package geo

import (
	"math"
	"testing"
)

func TestHaversine_KnownDistances(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantMeters             float64
		tolerance              float64 // allowed error in meters
	}{
		{
			name: "Newark to World Trade Center (~13 km)",
			lat1: 40.73454, lon1: -74.16375,
			lat2: 40.71271, lon2: -74.01193,
			wantMeters: 13_000,
			tolerance:  300,
		},
		{
			name: "same point returns zero",
			lat1: 40.73454, lon1: -74.16375,
			lat2: 40.73454, lon2: -74.16375,
			wantMeters: 0,
			tolerance:  0.001,
		},
		{
			name: "north pole to south pole",
			lat1: 90, lon1: 0,
			lat2: -90, lon2: 0,
			wantMeters: math.Pi * earthRadiusMeters,
			tolerance:  1,
		},
		{
			name: "equator quarter circumference",
			lat1: 0, lon1: 0,
			lat2: 0, lon2: 90,
			wantMeters: math.Pi / 2 * earthRadiusMeters,
			tolerance:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			if math.Abs(got-tt.wantMeters) > tt.tolerance {
				t.Errorf("Haversine() = %.1f m, want %.1f ± %.1f m", got, tt.wantMeters, tt.tolerance)
			}
		})
	}
}

func TestSortByDistance(t *testing.T) {
	type spot struct {
		name  string
		coord Coordinate
	}
	hoboken := Coordinate{Lat: 40.73586, Lon: -74.02922}
	spots := []spot{
		{"newark", Coordinate{Lat: 40.73454, Lon: -74.16375}},
		{"newport", Coordinate{Lat: 40.72699, Lon: -74.03383}},
		{"wtc", Coordinate{Lat: 40.71271, Lon: -74.01193}},
	}

	SortByDistance(spots, hoboken, func(s spot) Coordinate { return s.coord })

	want := []string{"newport", "wtc", "newark"}
	for i, w := range want {
		if spots[i].name != w {
			t.Fatalf("order[%d] = %s, want %s", i, spots[i].name, w)
		}
	}
}

func TestSortByDistance_StableOnTies(t *testing.T) {
	type spot struct {
		id    int
		coord Coordinate
	}
	origin := Coordinate{Lat: 40.0, Lon: -74.0}
	same := Coordinate{Lat: 40.5, Lon: -74.0}
	spots := []spot{{1, same}, {2, same}, {3, same}}

	SortByDistance(spots, origin, func(s spot) Coordinate { return s.coord })

	for i, want := range []int{1, 2, 3} {
		if spots[i].id != want {
			t.Fatalf("tie order[%d] = %d, want %d", i, spots[i].id, want)
		}
	}
}
