// Package pathloss converts received signal strength to distance with the
// log-distance path-loss model, and fits that model to measured data.
package pathloss

import (
	"math"

	"github.com/rotblauer/aploc/params"
)

// Model is the log-distance path-loss model:
//
//	rssi(d) = ReferenceRSSI - 10 * Exponent * log10(d)
//
// with d in meters and ReferenceRSSI the expected RSSI at 1 m.
type Model struct {
	ReferenceRSSI float64
	Exponent      float64
	MinDistance   float64
	MaxDistance   float64
}

func NewModel(cfg *params.LocalizationConfig) Model {
	return Model{
		ReferenceRSSI: cfg.PathLossReferenceRSSI,
		Exponent:      cfg.PathLossExponent,
		MinDistance:   cfg.PathLossMinDistance,
		MaxDistance:   cfg.PathLossMaxDistance,
	}
}

// Distance returns the modeled distance in meters for rssi, clamped to
// [MinDistance, MaxDistance]. A non-finite rssi is the weakest evidence there is
// and gets MaxDistance.
func (m Model) Distance(rssi float64) float64 {
	if math.IsNaN(rssi) || math.IsInf(rssi, 0) {
		return m.MaxDistance
	}
	d := math.Pow(10, (m.ReferenceRSSI-rssi)/(10*m.Exponent))
	if math.IsNaN(d) || d > m.MaxDistance {
		return m.MaxDistance
	}
	if d < m.MinDistance {
		return m.MinDistance
	}
	return d
}

// RSSI is the inverse of Distance: the expected signal strength at d meters.
func (m Model) RSSI(d float64) float64 {
	if d < m.MinDistance {
		d = m.MinDistance
	}
	return m.ReferenceRSSI - 10*m.Exponent*math.Log10(d)
}
