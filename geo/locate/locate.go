// Package locate estimates an access point's position from distance-annotated observations.
//
// Three estimators are available: multilateration (nonlinear least squares on
// ranges), a Bayesian grid posterior, and an RSSI-weighted centroid. The
// ensemble fuses whichever of them produce a result.
package locate

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/rotblauer/aploc/common"
	"github.com/rotblauer/aploc/geo/pathloss"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/types/estimate"
	"github.com/rotblauer/aploc/types/observation"
)

type Method = estimate.Method

const (
	MethodMultilateration = estimate.MethodMultilateration
	MethodBayesian        = estimate.MethodBayesian
	MethodCentroid        = estimate.MethodCentroid
)

var (
	// ErrInsufficientData means a method needs more samples than it got. It is not a failure.
	ErrInsufficientData = errors.New("insufficient data")

	ErrNumericalInstability = errors.New("numerical instability")
	ErrIllConditioned       = fmt.Errorf("ill-conditioned geometry: %w", ErrNumericalInstability)
	ErrNotConverged         = fmt.Errorf("solver did not converge: %w", ErrNumericalInstability)
)

// Sample is a cleaned observation with its modeled distance to the emitter, in meters.
type Sample struct {
	Observation observation.Cleaned
	Distance    float64
}

func (s Sample) Point() orb.Point {
	return s.Observation.Point()
}

// Samples annotates observations with their modeled distances, one sample per
// distinct observer position (to GPSPrecision7). Repeated readings at a position
// are merged into its first observation, with their RSSI averaged in dBm, so
// repeating the same readings does not change what the estimators see.
// Samples come back in order of first appearance.
func Samples(model pathloss.Model, obs []observation.Cleaned) []Sample {
	type spot struct {
		first int
		sum   float64
		n     int
	}
	type key struct{ lat, lon float64 }
	spots := make(map[key]*spot, len(obs))
	order := make([]key, 0, len(obs))
	for i, o := range obs {
		k := key{common.DecimalToFixed(o.Lat, common.GPSPrecision7), common.DecimalToFixed(o.Lon, common.GPSPrecision7)}
		sp, ok := spots[k]
		if !ok {
			sp = &spot{first: i}
			spots[k] = sp
			order = append(order, k)
		}
		sp.sum += o.RSSI
		sp.n++
	}

	out := make([]Sample, len(order))
	for i, k := range order {
		sp := spots[k]
		o := obs[sp.first]
		o.RSSI = sp.sum / float64(sp.n)
		out[i] = Sample{Observation: o, Distance: model.Distance(o.RSSI)}
	}
	return out
}

// Estimator is one position estimation method.
// Estimators are stateless and safe for concurrent use.
type Estimator interface {
	Method() Method
	Estimate(samples []Sample) (estimate.Candidate, error)
}

// Estimators returns the methods enabled by cfg for n distinct samples, in priority order.
func Estimators(cfg *params.LocalizationConfig, n int) []Estimator {
	var out []Estimator
	if cfg.UseMultilateration {
		out = append(out, NewMultilateration(cfg))
	}
	if cfg.UseBayesian && n >= cfg.BayesianMinSamples {
		out = append(out, NewBayesian(cfg))
	}
	return append(out, NewCentroid(cfg))
}

// planarize projects sample positions into a local frame centered on their centroid.
func planarize(samples []Sample) (frame common.LocalFrame, xs, ys []float64) {
	pts := make([]orb.Point, len(samples))
	for i, s := range samples {
		pts[i] = s.Point()
	}
	frame = common.NewLocalFrame(common.Centroid(pts))
	xs = make([]float64, len(samples))
	ys = make([]float64, len(samples))
	for i, p := range pts {
		xs[i], ys[i] = frame.ToXY(p)
	}
	return frame, xs, ys
}
