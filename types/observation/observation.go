// Package observation holds the input records of a localization run:
// radio observations (a BSSID heard at a place and time, with a signal strength)
// and the GPS fixes of the capture session.
package observation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotblauer/aploc/conceptual"
)

var (
	ErrEmptyBSSID       = errors.New("empty bssid")
	ErrZeroTime         = errors.New("zero time")
	ErrInvalidLatitude  = errors.New("invalid latitude")
	ErrInvalidLongitude = errors.New("invalid longitude")
	ErrNullIsland       = errors.New("zero latitude or longitude")
	ErrInvalidRSSI      = errors.New("invalid rssi")
)

// Observation is one sighting of an access point: where the receiver was,
// when, and how strong the signal was (dBm).
type Observation struct {
	BSSID conceptual.BSSID `json:"bssid"`
	Time  time.Time        `json:"time"`
	Lat   float64          `json:"lat"`
	Lon   float64          `json:"lon"`
	RSSI  float64          `json:"rssi"`
}

func (o Observation) Point() orb.Point {
	return orb.Point{o.Lon, o.Lat}
}

// WithPoint returns a copy of o located at p.
func (o Observation) WithPoint(p orb.Point) Observation {
	o.Lon, o.Lat = p.Lon(), p.Lat()
	return o
}

func (o Observation) Validate() error {
	if o.BSSID.IsEmpty() {
		return ErrEmptyBSSID
	}
	if err := validateFix(o.Time, o.Lat, o.Lon); err != nil {
		return err
	}
	if math.IsNaN(o.RSSI) || math.IsInf(o.RSSI, 0) || o.RSSI > 0 || o.RSSI < -200 {
		return fmt.Errorf("%w: %v", ErrInvalidRSSI, o.RSSI)
	}
	return nil
}

// TrackPoint is a GPS fix. A capture session's fixes are ordered by time.
type TrackPoint struct {
	Time time.Time `json:"time"`
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
}

func (tp TrackPoint) Point() orb.Point {
	return orb.Point{tp.Lon, tp.Lat}
}

func (tp TrackPoint) Validate() error {
	return validateFix(tp.Time, tp.Lat, tp.Lon)
}

// TrackPoints is a time-ordered GPS track.
type TrackPoints []TrackPoint

func (tps TrackPoints) Len() int           { return len(tps) }
func (tps TrackPoints) Less(i, j int) bool { return tps[i].Time.Before(tps[j].Time) }
func (tps TrackPoints) Swap(i, j int)      { tps[i], tps[j] = tps[j], tps[i] }

// Cleaned is an observation whose position was replaced by the smoothed track position
// and which survived outlier filtering.
type Cleaned struct {
	Observation
}

// Observations is a set of observations sortable by time, then BSSID.
type Observations []Observation

func (obs Observations) Len() int { return len(obs) }
func (obs Observations) Less(i, j int) bool {
	if obs[i].Time.Equal(obs[j].Time) {
		return obs[i].BSSID < obs[j].BSSID
	}
	return obs[i].Time.Before(obs[j].Time)
}
func (obs Observations) Swap(i, j int) { obs[i], obs[j] = obs[j], obs[i] }

// Track derives a GPS track from the observation positions, one fix per
// observation, in the same order. Fixes may share a timestamp.
func (obs Observations) Track() TrackPoints {
	out := make(TrackPoints, len(obs))
	for i, o := range obs {
		out[i] = TrackPoint{Time: o.Time, Lat: o.Lat, Lon: o.Lon}
	}
	return out
}

func validateFix(t time.Time, lat, lon float64) error {
	if t.IsZero() {
		return ErrZeroTime
	}
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: %v", ErrInvalidLatitude, lat)
	}
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: %v", ErrInvalidLongitude, lon)
	}
	if lat == 0 || lon == 0 {
		return ErrNullIsland
	}
	return nil
}
