package locate

import (
	"fmt"
	"math"

	"github.com/rotblauer/aploc/common"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/types/estimate"
	"gonum.org/v1/gonum/mat"
)

// MinMultilaterationSamples is the fewest ranges that fix a point in the plane.
const MinMultilaterationSamples = 3

// Multilateration solves for the point whose distances to the observers best
// match the modeled ranges, by Gauss-Newton from a linearized initial guess.
type Multilateration struct {
	maxIterations int
	tolerance     float64
	maxCondition  float64
	weighted      bool
}

func NewMultilateration(cfg *params.LocalizationConfig) *Multilateration {
	return &Multilateration{
		maxIterations: cfg.MultilaterationMaxIterations,
		tolerance:     cfg.MultilaterationTolerance,
		maxCondition:  cfg.MultilaterationMaxCondition,
		weighted:      cfg.MultilaterationWeighted,
	}
}

func (m *Multilateration) Method() Method { return MethodMultilateration }

func (m *Multilateration) Estimate(samples []Sample) (estimate.Candidate, error) {
	n := len(samples)
	if n < MinMultilaterationSamples {
		return estimate.Candidate{}, fmt.Errorf("%w: multilateration needs %d samples, got %d",
			ErrInsufficientData, MinMultilaterationSamples, n)
	}
	frame, xs, ys := planarize(samples)
	ds := make([]float64, n)
	for i, s := range samples {
		ds[i] = s.Distance
	}

	x, y, err := m.linearGuess(xs, ys, ds)
	if err != nil {
		return estimate.Candidate{}, err
	}
	x, y, err = m.refine(x, y, xs, ys, ds)
	if err != nil {
		return estimate.Candidate{}, err
	}

	rms, meanD := 0.0, 0.0
	for i := range xs {
		r := math.Hypot(x-xs[i], y-ys[i]) - ds[i]
		rms += r * r
		meanD += ds[i]
	}
	rms = math.Sqrt(rms / float64(n))
	meanD /= float64(n)

	consistency := 0.0
	if meanD > 0 {
		consistency = 1 - math.Min(rms/meanD, 1)
	}
	confidence := 0.4*math.Min(float64(n)/5, 1) + 0.3*geometryScore(xs, ys) + 0.3*consistency

	p := frame.FromXY(x, y)
	return estimate.Candidate{
		Method:     MethodMultilateration,
		Lat:        p.Lat(),
		Lon:        p.Lon(),
		Confidence: common.Clamp01(confidence),
		Accuracy:   rms,
		Samples:    n,
	}, nil
}

// linearGuess subtracts the last range equation from the others, which leaves
// a linear system in (x, y), and solves it by least squares.
func (m *Multilateration) linearGuess(xs, ys, ds []float64) (x, y float64, err error) {
	n := len(xs)
	last := n - 1
	a := mat.NewDense(last, 2, nil)
	b := mat.NewVecDense(last, nil)
	kn := xs[last]*xs[last] + ys[last]*ys[last]
	for i := 0; i < last; i++ {
		a.Set(i, 0, 2*(xs[i]-xs[last]))
		a.Set(i, 1, 2*(ys[i]-ys[last]))
		ki := xs[i]*xs[i] + ys[i]*ys[i]
		b.SetVec(i, ki-kn-ds[i]*ds[i]+ds[last]*ds[last])
	}

	if cond := mat.Cond(a, 2); math.IsNaN(cond) || cond > m.maxCondition {
		return 0, 0, fmt.Errorf("%w: condition number %.3g exceeds %.3g", ErrIllConditioned, cond, m.maxCondition)
	}
	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrIllConditioned, err)
	}
	return sol.AtVec(0), sol.AtVec(1), nil
}

func (m *Multilateration) weight(d float64) float64 {
	if !m.weighted {
		return 1
	}
	return 1 / math.Max(d, 1)
}

func (m *Multilateration) cost(x, y float64, xs, ys, ds []float64) float64 {
	c := 0.0
	for i := range xs {
		r := m.weight(ds[i]) * (math.Hypot(x-xs[i], y-ys[i]) - ds[i])
		c += r * r
	}
	return c
}

// refine runs Gauss-Newton with step halving on the (optionally 1/d weighted) range residuals.
func (m *Multilateration) refine(x, y float64, xs, ys, ds []float64) (float64, float64, error) {
	n := len(xs)
	j := mat.NewDense(n, 2, nil)
	r := mat.NewVecDense(n, nil)
	cost := m.cost(x, y, xs, ys, ds)

	for iter := 0; iter < m.maxIterations; iter++ {
		for i := 0; i < n; i++ {
			w := m.weight(ds[i])
			dx, dy := x-xs[i], y-ys[i]
			rng := math.Hypot(dx, dy)
			if rng < 1e-9 {
				// On top of an observer the gradient direction is arbitrary.
				dx, dy, rng = 1e-9, 0, 1e-9
			}
			j.Set(i, 0, w*dx/rng)
			j.Set(i, 1, w*dy/rng)
			r.SetVec(i, -w*(rng-ds[i]))
		}

		var qr mat.QR
		qr.Factorize(j)
		var delta mat.VecDense
		if err := qr.SolveVecTo(&delta, false, r); err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrIllConditioned, err)
		}
		sx, sy := delta.AtVec(0), delta.AtVec(1)
		if !common.IsFinite(sx) || !common.IsFinite(sy) {
			return 0, 0, fmt.Errorf("%w: non-finite step at iteration %d", ErrNotConverged, iter)
		}

		// Halve the step until the cost does not increase.
		accepted := false
		for h := 0; h < 20; h++ {
			nx, ny := x+sx, y+sy
			if nc := m.cost(nx, ny, xs, ys, ds); nc <= cost {
				x, y, cost = nx, ny, nc
				accepted = true
				break
			}
			sx, sy = sx/2, sy/2
		}
		step := math.Hypot(sx, sy)
		if !accepted || step < m.tolerance {
			// Either converged, or no descent direction is left: a local minimum.
			return x, y, nil
		}
	}
	return 0, 0, fmt.Errorf("%w: no convergence within %d iterations", ErrNotConverged, m.maxIterations)
}

// geometryScore is sqrt(lambda_min/lambda_max) of the observers' scatter: 1 when they
// surround the emitter evenly, 0 when they lie on a line.
func geometryScore(xs, ys []float64) float64 {
	n := float64(len(xs))
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx, my = mx/n, my/n
	var sxx, sxy, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}
	var es mat.EigenSym
	if ok := es.Factorize(mat.NewSymDense(2, []float64{sxx / n, sxy / n, sxy / n, syy / n}), false); !ok {
		return 0
	}
	vals := es.Values(nil)
	lo, hi := vals[0], vals[1]
	if hi <= 0 || lo <= 0 {
		return 0
	}
	return common.Clamp01(math.Sqrt(lo / hi))
}
