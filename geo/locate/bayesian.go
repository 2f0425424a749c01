package locate

import (
	"fmt"
	"math"

	"github.com/rotblauer/aploc/common"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/types/estimate"
)

// minBayesianConfidence keeps a posterior that is nearly uniform from scoring zero.
const minBayesianConfidence = 0.01

// Bayesian evaluates the posterior of the emitter position on a square grid.
// Each observation contributes a Gaussian likelihood on the difference between
// a cell's distance to the observer and the modeled range, with a spread that
// grows with the range.
type Bayesian struct {
	gridSize     int
	margin       float64
	maxExtent    float64
	sigma        float64
	sigmaRatio   float64
	refinePasses int
}

func NewBayesian(cfg *params.LocalizationConfig) *Bayesian {
	return &Bayesian{
		gridSize:     cfg.BayesianGridSize,
		margin:       cfg.BayesianMargin,
		maxExtent:    cfg.BayesianMaxExtent,
		sigma:        cfg.BayesianSigma,
		sigmaRatio:   cfg.BayesianSigmaRatio,
		refinePasses: cfg.BayesianRefinePasses,
	}
}

func (b *Bayesian) Method() Method { return MethodBayesian }

type grid struct {
	cx, cy float64 // center
	half   float64 // half extent
	size   int
}

func (g grid) step() float64 {
	return 2 * g.half / float64(g.size-1)
}

func (g grid) cell(k int) (x, y float64) {
	st := g.step()
	return g.cx - g.half + float64(k%g.size)*st, g.cy - g.half + float64(k/g.size)*st
}

type posterior struct {
	grid
	p       []float64
	mapCell int
}

func (b *Bayesian) Estimate(samples []Sample) (estimate.Candidate, error) {
	n := len(samples)
	if n == 0 {
		return estimate.Candidate{}, fmt.Errorf("%w: bayesian needs at least 1 sample", ErrInsufficientData)
	}
	frame, xs, ys := planarize(samples)
	ds := make([]float64, n)
	for i, s := range samples {
		ds[i] = s.Distance
	}

	half := 0.0
	for i := range xs {
		half = math.Max(half, math.Hypot(xs[i], ys[i])+ds[i])
	}
	half = math.Min(half+b.margin, b.maxExtent)
	half = math.Max(half, 1)

	size := b.gridSize
	if size > params.MaxBayesianGridSize {
		size = params.MaxBayesianGridSize
	}
	coarse, err := b.evaluate(grid{size: size, half: half}, xs, ys, ds)
	if err != nil {
		return estimate.Candidate{}, err
	}

	// Confidence and accuracy come from the coarse grid, which covers the whole plausible area.
	entropy := 0.0
	mx, my := coarse.cell(coarse.mapCell)
	spread := 0.0
	for k, p := range coarse.p {
		if p > 0 {
			entropy -= p * math.Log(p)
		}
		cx, cy := coarse.cell(k)
		spread += p * ((cx-mx)*(cx-mx) + (cy-my)*(cy-my))
	}
	confidence := 1 - entropy/math.Log(float64(len(coarse.p)))
	confidence = math.Max(common.Clamp01(confidence), minBayesianConfidence)

	post := coarse
	passes := b.refinePasses
	if passes > params.MaxBayesianRefinePasses {
		passes = params.MaxBayesianRefinePasses
	}
	for i := 0; i < passes; i++ {
		x, y := post.cell(post.mapCell)
		next, err := b.evaluate(grid{cx: x, cy: y, half: 2 * post.step(), size: size}, xs, ys, ds)
		if err != nil {
			break
		}
		post = next
	}

	x, y := post.cell(post.mapCell)
	p := frame.FromXY(x, y)
	return estimate.Candidate{
		Method:     MethodBayesian,
		Lat:        p.Lat(),
		Lon:        p.Lon(),
		Confidence: confidence,
		Accuracy:   math.Sqrt(spread),
		Samples:    n,
	}, nil
}

// evaluate computes the normalized posterior over g with log-sum-exp.
func (b *Bayesian) evaluate(g grid, xs, ys, ds []float64) (posterior, error) {
	cells := g.size * g.size
	logp := make([]float64, cells)
	sigmas := make([]float64, len(ds))
	for i, d := range ds {
		sigmas[i] = b.sigma + b.sigmaRatio*d
	}

	best, bestCell := math.Inf(-1), 0
	for k := 0; k < cells; k++ {
		x, y := g.cell(k)
		l := 0.0
		for i := range xs {
			z := (math.Hypot(x-xs[i], y-ys[i]) - ds[i]) / sigmas[i]
			l -= 0.5 * z * z
		}
		logp[k] = l
		if l > best {
			best, bestCell = l, k
		}
	}
	if math.IsInf(best, -1) || math.IsNaN(best) {
		return posterior{}, fmt.Errorf("%w: degenerate likelihood", ErrNumericalInstability)
	}

	sum := 0.0
	for k, l := range logp {
		logp[k] = math.Exp(l - best)
		sum += logp[k]
	}
	for k := range logp {
		logp[k] /= sum
	}
	return posterior{grid: g, p: logp, mapCell: bestCell}, nil
}
