package locate

import (
	"fmt"
	"math"

	"github.com/rotblauer/aploc/common"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/types/estimate"
)

// Centroid is the RSSI-weighted mean of the observer positions.
// Stronger signals pull harder: weight = max(rssi - floor, 1) ^ power.
// It always succeeds with at least one sample.
type Centroid struct {
	power float64
	floor float64
}

func NewCentroid(cfg *params.LocalizationConfig) *Centroid {
	return &Centroid{
		power: cfg.CentroidRSSIWeightPower,
		floor: cfg.CentroidRSSIFloor,
	}
}

func (c *Centroid) Method() Method { return MethodCentroid }

func (c *Centroid) weight(rssi float64) float64 {
	if !common.IsFinite(rssi) {
		return 1
	}
	return math.Pow(math.Max(rssi-c.floor, 1), c.power)
}

func (c *Centroid) Estimate(samples []Sample) (estimate.Candidate, error) {
	n := len(samples)
	if n == 0 {
		return estimate.Candidate{}, fmt.Errorf("%w: centroid needs at least 1 sample", ErrInsufficientData)
	}
	// Offsets from the first sample keep a lone sample exact.
	lat0, lon0 := samples[0].Observation.Lat, samples[0].Observation.Lon
	ws := make([]float64, n)
	var sw, dlat, dlon float64
	for i, s := range samples {
		w := c.weight(s.Observation.RSSI)
		ws[i] = w
		sw += w
		dlat += w * (s.Observation.Lat - lat0)
		dlon += w * (s.Observation.Lon - lon0)
	}
	lat, lon := lat0+dlat/sw, lon0+dlon/sw

	cand := estimate.Candidate{
		Method:     MethodCentroid,
		Lat:        lat,
		Lon:        lon,
		Confidence: 0.5 * float64(n) / float64(n+1),
		Samples:    n,
	}
	cp := cand.Point()
	spread := 0.0
	for i, s := range samples {
		d := common.DistanceMeters(cp, s.Point())
		spread += ws[i] * d * d
	}
	cand.Accuracy = math.Sqrt(spread / sw)
	return cand, nil
}
