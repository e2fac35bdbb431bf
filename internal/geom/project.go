package geom

import "math"

// earthRadiusM is the mean Earth radius used by the spherical projection.
const earthRadiusM = 6371008.8

// Projection converts geographic coordinates to the planar meters the
// clustering core operates on. The service itself receives pre-projected
// coordinates; this forward projection is for ingesters and the fixture
// generator, which start from catalog latitude/longitude.
type Projection struct {
	lat0, lon0 float64 // origin in radians
}

// NewLambertAzimuthalEqualArea creates a projection centered on the given
// origin in degrees. For the US tornado catalog the customary origin is
// (39N, 96W), near the centroid of the contiguous states.
func NewLambertAzimuthalEqualArea(latDeg, lonDeg float64) Projection {
	return Projection{
		lat0: latDeg * math.Pi / 180,
		lon0: lonDeg * math.Pi / 180,
	}
}

// Forward projects a geographic coordinate in degrees to planar meters.
func (p Projection) Forward(latDeg, lonDeg float64) Point {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	dlon := lon - p.lon0

	k := math.Sqrt(2 / (1 + math.Sin(p.lat0)*math.Sin(lat) +
		math.Cos(p.lat0)*math.Cos(lat)*math.Cos(dlon)))

	return Point{
		X: earthRadiusM * k * math.Cos(lat) * math.Sin(dlon),
		Y: earthRadiusM * k * (math.Cos(p.lat0)*math.Sin(lat) -
			math.Sin(p.lat0)*math.Cos(lat)*math.Cos(dlon)),
	}
}
