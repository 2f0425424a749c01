package locate

import (
	"fmt"
	"math"
	"sort"

	"github.com/rotblauer/aploc/common"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/types/estimate"
)

// Fuse combines the candidates of one BSSID into a single estimate.
//
// With the ensemble enabled, the position is the weighted mean of the candidates,
// with hybrid_weights renormalized over the methods present. Otherwise the
// highest-priority candidate is used alone.
//
// Confidence is the weighted candidate confidence times a sample-size factor:
// 1 at min_points_for_confidence samples or more, 0.5*n/min below it.
// It is halved again when outlier filtering fell back to keeping every sample.
func Fuse(cfg *params.LocalizationConfig, candidates []estimate.Candidate, samples int, fallback bool) (estimate.Position, error) {
	if len(candidates) == 0 {
		return estimate.Position{}, fmt.Errorf("%w: no candidate estimates", ErrInsufficientData)
	}
	cands := make([]estimate.Candidate, len(candidates))
	copy(cands, candidates)
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Method < cands[j].Method })

	if !cfg.HybridEnableEnsemble {
		cands = cands[:1]
	}
	weights := EffectiveWeights(cfg, cands)

	var lat, lon, conf float64
	lat0, lon0 := cands[0].Lat, cands[0].Lon
	for _, c := range cands {
		w := weights[c.Method]
		lat += w * (c.Lat - lat0)
		lon += w * (c.Lon - lon0)
		conf += w * c.Confidence
	}
	pos := estimate.Position{
		Lat:           lat0 + lat,
		Lon:           lon0 + lon,
		Samples:       samples,
		Weights:       weights,
		LowConfidence: fallback,
	}
	for _, c := range cands {
		pos.Methods = append(pos.Methods, c.Method)
	}

	// Accuracy combines each candidate's own error with its disagreement with the fused point.
	acc := 0.0
	for _, c := range cands {
		a := c.Accuracy
		if !common.IsFinite(a) {
			a = 0
		}
		d := common.DistanceMeters(pos.Point(), c.Point())
		acc += weights[c.Method] * (a*a + d*d)
	}
	pos.Accuracy = math.Sqrt(acc)

	conf *= SampleScale(cfg, samples)
	if fallback {
		conf *= 0.5
	}
	pos.Confidence = common.Clamp01(conf)
	pos.Quality = estimate.Grade(pos.Accuracy, pos.Confidence)
	return pos, nil
}

// SampleScale is the confidence factor for n samples.
func SampleScale(cfg *params.LocalizationConfig, n int) float64 {
	if n >= cfg.MinPointsForConfidence {
		return 1
	}
	if n <= 0 {
		return 0
	}
	return 0.5 * float64(n) / float64(cfg.MinPointsForConfidence)
}

// EffectiveWeights renormalizes the configured weights over the candidates' methods.
// The result sums to 1. If every present method is configured with zero weight,
// they share equally.
func EffectiveWeights(cfg *params.LocalizationConfig, cands []estimate.Candidate) map[Method]float64 {
	out := make(map[Method]float64, len(cands))
	sum := 0.0
	for _, c := range cands {
		w := cfg.Weight(c.Method.String())
		if !(w > 0) || math.IsInf(w, 0) {
			w = 0
		}
		out[c.Method] = w
		sum += w
	}
	if sum <= 0 {
		for m := range out {
			out[m] = 1 / float64(len(out))
		}
		return out
	}
	for m := range out {
		out[m] /= sum
	}
	return out
}
