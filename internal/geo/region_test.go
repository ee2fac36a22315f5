package geo

import "testing"

func TestClassifySide(t *testing.T) {
	tests := []struct {
		name  string
		coord Coordinate
		want  Side
	}{
		{"Exchange Place is NJ", Coordinate{Lat: 40.71676, Lon: -74.03238}, SideNJ},
		{"World Trade Center is NY", Coordinate{Lat: 40.71271, Lon: -74.01193}, SideNY},
		{"Newark is NJ", Coordinate{Lat: 40.73454, Lon: -74.16375}, SideNJ},
		{"23rd Street is NY", Coordinate{Lat: 40.7429, Lon: -73.99278}, SideNY},
		{"Hoboken is NJ", Coordinate{Lat: 40.73586, Lon: -74.02922}, SideNJ},
		{"far east of both references is NY", Coordinate{Lat: 40.7, Lon: -73.5}, SideNY},
		{"far west of both references is NJ", Coordinate{Lat: 40.7, Lon: -74.5}, SideNJ},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifySide(tt.coord); got != tt.want {
				t.Errorf("ClassifySide(%v) = %v, want %v", tt.coord, got, tt.want)
			}
		})
	}
}

// The midpoint between the reference longitudes is equidistant from both.
// The tie is pinned to NJ.
func TestClassifySide_TieResolvesToNJ(t *testing.T) {
	mid := (njReferenceLon + nyReferenceLon) / 2
	if got := ClassifySide(Coordinate{Lat: 40.71, Lon: mid}); got != SideNJ {
		t.Errorf("ClassifySide(midpoint) = %v, want SideNJ", got)
	}
}
