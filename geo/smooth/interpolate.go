package smooth

import (
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotblauer/aploc/types/observation"
)

// At returns the track position at t, linearly interpolated between the
// surrounding fixes. ok is false when t is outside the track's time range
// or the track is empty. track must be time-sorted.
func At(track observation.TrackPoints, t time.Time) (p orb.Point, ok bool) {
	n := len(track)
	if n == 0 || t.Before(track[0].Time) || t.After(track[n-1].Time) {
		return orb.Point{}, false
	}
	// First fix at or after t.
	i := sort.Search(n, func(i int) bool { return !track[i].Time.Before(t) })
	if track[i].Time.Equal(t) || i == 0 {
		return track[i].Point(), true
	}
	a, b := track[i-1], track[i]
	span := b.Time.Sub(a.Time)
	if span <= 0 {
		return b.Point(), true
	}
	f := float64(t.Sub(a.Time)) / float64(span)
	return orb.Point{
		a.Lon + f*(b.Lon-a.Lon),
		a.Lat + f*(b.Lat-a.Lat),
	}, true
}

// Relocate moves each observation onto the track position at its timestamp.
// Observations outside the track's time range keep their own coordinates.
func Relocate(track observation.TrackPoints, obs []observation.Observation) []observation.Cleaned {
	out := make([]observation.Cleaned, len(obs))
	for i, o := range obs {
		if p, ok := At(track, o.Time); ok {
			o = o.WithPoint(p)
		}
		out[i] = observation.Cleaned{Observation: o}
	}
	return out
}
