// Package estimate holds the outputs of access point localization.
package estimate

import (
	"github.com/paulmach/orb"
	"github.com/rotblauer/aploc/conceptual"
)

// Candidate is one method's answer for one BSSID.
type Candidate struct {
	Method     Method
	Lat        float64
	Lon        float64
	Confidence float64 // [0,1]
	// Accuracy is the method's own error radius estimate, in meters.
	Accuracy float64
	// Samples is how many distinct observer positions the method used.
	Samples int
}

func (c Candidate) Point() orb.Point {
	return orb.Point{c.Lon, c.Lat}
}

// Position is the fused location estimate of one access point.
type Position struct {
	BSSID      conceptual.BSSID   `json:"bssid"`
	Lat        float64            `json:"lat"`
	Lon        float64            `json:"lon"`
	Confidence float64            `json:"confidence"`
	Methods    []Method           `json:"contributing_methods"`
	Samples    int                `json:"sample_count"`
	Weights    map[Method]float64 `json:"weights"`
	Accuracy   float64            `json:"accuracy_m"`
	Quality    Quality            `json:"quality"`

	// LowConfidence is set when outlier filtering could not separate signal from noise
	// and every observation was kept.
	LowConfidence bool `json:"low_confidence"`

	// Cell is the S2 cell token of the estimate.
	Cell string `json:"s2_cell,omitempty"`
}

func (p Position) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// HasMethod reports whether m contributed to p.
func (p Position) HasMethod(m Method) bool {
	for _, pm := range p.Methods {
		if pm == m {
			return true
		}
	}
	return false
}

// Positions sort by BSSID.
type Positions []Position

func (ps Positions) Len() int           { return len(ps) }
func (ps Positions) Less(i, j int) bool { return ps[i].BSSID < ps[j].BSSID }
func (ps Positions) Swap(i, j int)      { ps[i], ps[j] = ps[j], ps[i] }

// MinConfidence returns the estimates with confidence >= min, in order.
func (ps Positions) MinConfidence(min float64) Positions {
	out := make(Positions, 0, len(ps))
	for _, p := range ps {
		if p.Confidence >= min {
			out = append(out, p)
		}
	}
	return out
}
