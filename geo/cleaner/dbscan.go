package cleaner

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/types/observation"
)

// Noise is the cluster label of points that belong to no cluster.
const Noise = -1

type indexedPoint struct {
	p orb.Point
	i int
}

func (ip indexedPoint) Point() orb.Point { return ip.p }

// Labels clusters points with DBSCAN and returns one cluster label per point,
// Noise for outliers. Distances are planar in the points' own units.
// minSamples counts the point itself.
func Labels(points []orb.Point, eps float64, minSamples int) []int {
	labels := make([]int, len(points))
	if len(points) == 0 {
		return labels
	}

	bound := orb.MultiPoint(points).Bound().Pad(eps)
	qt := quadtree.New(bound)
	for i, p := range points {
		// Every point is inside the padded bound, so Add cannot fail.
		_ = qt.Add(indexedPoint{p: p, i: i})
	}

	var buf []orb.Pointer
	neighbors := func(i int) []int {
		p := points[i]
		buf = qt.InBound(buf[:0], orb.Bound{
			Min: orb.Point{p.X() - eps, p.Y() - eps},
			Max: orb.Point{p.X() + eps, p.Y() + eps},
		})
		out := make([]int, 0, len(buf))
		for _, n := range buf {
			ip := n.(indexedPoint)
			if planar.Distance(p, ip.p) <= eps {
				out = append(out, ip.i)
			}
		}
		return out
	}

	const unvisited = -2
	for i := range labels {
		labels[i] = unvisited
	}
	cluster := 0
	for i := range points {
		if labels[i] != unvisited {
			continue
		}
		seeds := neighbors(i)
		if len(seeds) < minSamples {
			labels[i] = Noise
			continue
		}
		labels[i] = cluster
		for k := 0; k < len(seeds); k++ {
			j := seeds[k]
			if labels[j] == Noise {
				// Border point.
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			if nn := neighbors(j); len(nn) >= minSamples {
				seeds = append(seeds, nn...)
			}
		}
		cluster++
	}
	return labels
}

// Result is the outcome of outlier filtering one BSSID's observations.
type Result struct {
	Kept     []observation.Cleaned
	Dropped  int
	Clusters int

	// Fallback is set when every point was noise and all were kept anyway.
	Fallback bool
}

// DBSCAN removes spatial outliers from one BSSID's observations.
// Clustering is over raw lon/lat with dbscan_eps in degrees.
// If every observation would be removed, all are kept and Fallback is set.
func DBSCAN(cfg *params.LocalizationConfig, obs []observation.Cleaned) Result {
	if len(obs) == 0 {
		return Result{}
	}
	points := make([]orb.Point, len(obs))
	for i, o := range obs {
		points[i] = o.Point()
	}
	labels := Labels(points, cfg.DBSCANEps, cfg.DBSCANMinSamples)

	res := Result{Kept: make([]observation.Cleaned, 0, len(obs))}
	for i, l := range labels {
		if l == Noise {
			res.Dropped++
			continue
		}
		if l+1 > res.Clusters {
			res.Clusters = l + 1
		}
		res.Kept = append(res.Kept, obs[i])
	}
	if len(res.Kept) == 0 {
		res.Kept = append(res.Kept, obs...)
		res.Dropped = 0
		res.Fallback = true
	}
	return res
}
