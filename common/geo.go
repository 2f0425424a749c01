package common

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	earthRadius                       = 6378137.0 // meters
	earthCircumference                = math.Pi * earthRadius * 2
	EarthCircumferenceMetersPerDegree = earthCircumference / 360
	EarthCircumferenceDegreesPerMeter = 360 / earthCircumference
)

// LocalFrame is an equirectangular tangent plane anchored at Origin.
// X is meters east, Y is meters north.
// It is accurate to well under a meter for the few-kilometer extents
// a single access point is heard across, and it is NOT meant for anything larger.
type LocalFrame struct {
	Origin orb.Point
	cosLat float64
}

// NewLocalFrame returns a frame anchored at origin (lon, lat).
func NewLocalFrame(origin orb.Point) LocalFrame {
	return LocalFrame{
		Origin: origin,
		cosLat: math.Cos(origin.Lat() * math.Pi / 180),
	}
}

// ToXY projects a lon/lat point into the frame.
func (f LocalFrame) ToXY(p orb.Point) (x, y float64) {
	x = (p.Lon() - f.Origin.Lon()) * f.cosLat * EarthCircumferenceMetersPerDegree
	y = (p.Lat() - f.Origin.Lat()) * EarthCircumferenceMetersPerDegree
	return x, y
}

// FromXY unprojects frame coordinates back to lon/lat.
func (f LocalFrame) FromXY(x, y float64) orb.Point {
	lat := f.Origin.Lat() + y*EarthCircumferenceDegreesPerMeter
	lon := f.Origin.Lon()
	if f.cosLat > 1e-12 {
		lon += x * EarthCircumferenceDegreesPerMeter / f.cosLat
	}
	return orb.Point{lon, lat}
}

// Centroid returns the arithmetic mean of the points.
// It returns the zero point for an empty slice.
func Centroid(points []orb.Point) orb.Point {
	if len(points) == 0 {
		return orb.Point{}
	}
	var lon, lat float64
	for _, p := range points {
		lon += p.Lon()
		lat += p.Lat()
	}
	n := float64(len(points))
	return orb.Point{lon / n, lat / n}
}

// DistanceMeters is the haversine distance between two lon/lat points.
func DistanceMeters(a, b orb.Point) float64 {
	return geo.Distance(a, b)
}
