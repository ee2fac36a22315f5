package geo

import "math"

// Side is one of the two geographic sides of the Hudson the system partitions
// coordinates into.
type Side int

const (
	SideNJ Side = iota
	SideNY
)

func (s Side) String() string {
	if s == SideNJ {
		return "NJ"
	}
	return "NY"
}

// Reference longitudes on either side of the river, one block in from each
// bank. The stations sit close enough to the water that longitude alone
// separates them.
const (
	njReferenceLon = -74.03240619573852
	nyReferenceLon = -74.01354955895476
)

// ClassifySide reports which side of the river a coordinate is on by
// comparing its longitude against the two reference longitudes. Total
// function: an exact tie resolves to the NJ side.
func ClassifySide(c Coordinate) Side {
	distToNJ := math.Abs(c.Lon - njReferenceLon)
	distToNY := math.Abs(c.Lon - nyReferenceLon)
	if distToNJ <= distToNY {
		return SideNJ
	}
	return SideNY
}
