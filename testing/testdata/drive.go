package testdata

import (
	"encoding/json"
	"io"
	"math"
	"math/rand"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotblauer/aploc/common"
	"github.com/rotblauer/aploc/conceptual"
	"github.com/rotblauer/aploc/types/observation"
)

// AP is a synthetic access point at a known position.
type AP struct {
	BSSID conceptual.BSSID
	Lat   float64
	Lon   float64
}

func (ap AP) Point() orb.Point {
	return orb.Point{ap.Lon, ap.Lat}
}

// DriveConfig describes a synthetic wardrive: a loop around Origin,
// one fix per second, and one observation per fix of every AP within Range.
type DriveConfig struct {
	Seed   int64
	Origin orb.Point
	Start  time.Time

	Radius float64 // loop radius, meters
	Speed  float64 // m/s
	Fixes  int
	Range  float64 // meters

	ReferenceRSSI float64
	Exponent      float64
	RSSINoise     float64 // dB standard deviation
	GPSNoise      float64 // meters standard deviation
}

// DefaultDriveConfig is a slow 80 meter loop in Minneapolis with clean signals and noisy GPS.
func DefaultDriveConfig() DriveConfig {
	return DriveConfig{
		Seed:          42,
		Origin:        orb.Point{-93.25549, 44.98896},
		Start:         time.Date(2024, 12, 23, 15, 0, 0, 0, time.UTC),
		Radius:        80,
		Speed:         5,
		Fixes:         120,
		Range:         250,
		ReferenceRSSI: -40,
		Exponent:      2.7,
		RSSINoise:     0,
		GPSNoise:      3,
	}
}

// GridAPs places n access points on a square grid of the given spacing (meters) around origin.
// BSSIDs are sequential.
func GridAPs(origin orb.Point, n int, spacing float64) []AP {
	frame := common.NewLocalFrame(origin)
	side := int(math.Ceil(math.Sqrt(float64(n))))
	out := make([]AP, 0, n)
	for i := 0; i < n; i++ {
		x := (float64(i%side) - float64(side-1)/2) * spacing
		y := (float64(i/side) - float64(side-1)/2) * spacing
		p := frame.FromXY(x, y)
		out = append(out, AP{
			BSSID: conceptual.BSSID(bssidN(i)),
			Lat:   p.Lat(),
			Lon:   p.Lon(),
		})
	}
	return out
}

func bssidN(i int) string {
	const hex = "0123456789ABCDEF"
	b := []byte("02:00:00:00:00:00")
	for k := 0; k < 3; k++ {
		v := byte(i >> (8 * (2 - k)))
		b[9+3*k] = hex[v>>4]
		b[10+3*k] = hex[v&0x0f]
	}
	return string(b)
}

// Drive generates a deterministic track and the observations of aps along it.
// Observation coordinates carry the GPS noise; RSSI follows the log-distance model.
func Drive(cfg DriveConfig, aps []AP) (observation.TrackPoints, observation.Observations) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	frame := common.NewLocalFrame(cfg.Origin)

	track := make(observation.TrackPoints, 0, cfg.Fixes)
	var obs observation.Observations
	for i := 0; i < cfg.Fixes; i++ {
		t := cfg.Start.Add(time.Duration(i) * time.Second)
		theta := cfg.Speed * float64(i) / cfg.Radius
		truth := frame.FromXY(cfg.Radius*math.Cos(theta), cfg.Radius*math.Sin(theta))
		fix := frame.FromXY(
			cfg.Radius*math.Cos(theta)+rng.NormFloat64()*cfg.GPSNoise,
			cfg.Radius*math.Sin(theta)+rng.NormFloat64()*cfg.GPSNoise,
		)
		track = append(track, observation.TrackPoint{Time: t, Lat: fix.Lat(), Lon: fix.Lon()})

		for _, ap := range aps {
			d := common.DistanceMeters(truth, ap.Point())
			if d > cfg.Range {
				continue
			}
			d = math.Max(d, 1)
			rssi := cfg.ReferenceRSSI - 10*cfg.Exponent*math.Log10(d) + rng.NormFloat64()*cfg.RSSINoise
			obs = append(obs, observation.Observation{
				BSSID: ap.BSSID,
				Time:  t,
				Lat:   fix.Lat(),
				Lon:   fix.Lon(),
				RSSI:  math.Min(rssi, 0),
			})
		}
	}
	return track, obs
}

type fixRecord struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Lat  float64   `json:"lat"`
	Lon  float64   `json:"lon"`
}

type obsRecord struct {
	BSSID string    `json:"bssid"`
	Time  time.Time `json:"time"`
	Lat   float64   `json:"lat"`
	Lon   float64   `json:"lon"`
	RSSI  float64   `json:"rssi"`
}

// WriteNDJSON writes track and obs as capture records.
func WriteNDJSON(w io.Writer, track observation.TrackPoints, obs observation.Observations) error {
	enc := json.NewEncoder(w)
	for _, tp := range track {
		if err := enc.Encode(fixRecord{Type: "fix", Time: tp.Time, Lat: tp.Lat, Lon: tp.Lon}); err != nil {
			return err
		}
	}
	for _, o := range obs {
		if err := enc.Encode(obsRecord{BSSID: o.BSSID.String(), Time: o.Time, Lat: o.Lat, Lon: o.Lon, RSSI: o.RSSI}); err != nil {
			return err
		}
	}
	return nil
}
