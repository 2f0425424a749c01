package observation

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rotblauer/aploc/conceptual"
	"github.com/tidwall/gjson"
)

// Kind is what an input record describes.
type Kind int

const (
	KindUnknown Kind = iota
	KindObservation
	KindFix
)

func (k Kind) String() string {
	switch k {
	case KindObservation:
		return "obs"
	case KindFix:
		return "fix"
	}
	return "unknown"
}

var ErrUnknownRecord = errors.New("unknown record")

// Attribute aliases, in order of preference.
// Kismet-derived exports use macaddr, signal and gpstime.
var (
	attrsBSSID = []string{"bssid", "macaddr", "mac"}
	attrsRSSI  = []string{"rssi", "signal", "signal_dbm"}
	attrsTime  = []string{"time", "gpstime", "timestamp"}
	attrsLat   = []string{"lat", "latitude"}
	attrsLon   = []string{"lon", "lng", "longitude"}
)

func first(res []gjson.Result) gjson.Result {
	for _, r := range res {
		if r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

func get(msg []byte, attrs []string) gjson.Result {
	return first(gjson.GetManyBytes(msg, attrs...))
}

// Classify tells a radio observation from a GPS fix.
// An explicit "type" of "obs" or "fix" wins; otherwise a record with a BSSID is an observation
// and a record with a position but no BSSID is a fix.
func Classify(msg []byte) Kind {
	if t := gjson.GetBytes(msg, "type"); t.Exists() {
		switch strings.ToLower(t.String()) {
		case "obs", "observation":
			return KindObservation
		case "fix", "gps", "trackpoint":
			return KindFix
		}
	}
	if !gjson.ValidBytes(msg) || !gjson.ParseBytes(msg).IsObject() {
		return KindUnknown
	}
	if get(msg, attrsBSSID).Exists() {
		return KindObservation
	}
	if get(msg, attrsLat).Exists() && get(msg, attrsLon).Exists() {
		return KindFix
	}
	return KindUnknown
}

// DecodeObservation reads an observation record. The result is not validated.
func DecodeObservation(msg []byte) (Observation, error) {
	b := get(msg, attrsBSSID)
	if !b.Exists() {
		return Observation{}, fmt.Errorf("%w: missing bssid", ErrUnknownRecord)
	}
	t, lat, lon, err := decodeFix(msg)
	if err != nil {
		return Observation{}, err
	}
	rssi := math.NaN()
	if r := get(msg, attrsRSSI); r.Exists() && r.Type == gjson.Number {
		rssi = r.Float()
	}
	return Observation{
		BSSID: conceptual.NewBSSID(b.String()),
		Time:  t,
		Lat:   lat,
		Lon:   lon,
		RSSI:  rssi,
	}, nil
}

// DecodeFix reads a GPS fix record. The result is not validated.
func DecodeFix(msg []byte) (TrackPoint, error) {
	t, lat, lon, err := decodeFix(msg)
	if err != nil {
		return TrackPoint{}, err
	}
	return TrackPoint{Time: t, Lat: lat, Lon: lon}, nil
}

func decodeFix(msg []byte) (t time.Time, lat, lon float64, err error) {
	la, lo := get(msg, attrsLat), get(msg, attrsLon)
	if la.Type != gjson.Number || lo.Type != gjson.Number {
		return t, 0, 0, fmt.Errorf("%w: missing or non-numeric lat/lon", ErrUnknownRecord)
	}
	return decodeTime(get(msg, attrsTime)), la.Float(), lo.Float(), nil
}

// decodeTime reads RFC3339 strings and unix epoch seconds (fractions allowed).
// Anything else is the zero time, which fails validation.
func decodeTime(r gjson.Result) time.Time {
	switch r.Type {
	case gjson.Number:
		sec, frac := math.Modf(r.Float())
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	case gjson.String:
		t, err := time.Parse(time.RFC3339Nano, r.String())
		if err != nil {
			return time.Time{}
		}
		return t
	}
	return time.Time{}
}
