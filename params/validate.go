package params

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ConfigError names one invalid configuration key.
type ConfigError struct {
	Key    string
	Reason string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// methodAliases maps accepted hybrid_weights spellings to method names.
var methodAliases = map[string]string{
	MethodMultilateration: MethodMultilateration,
	"trilateration":       MethodMultilateration,
	MethodBayesian:        MethodBayesian,
	MethodCentroid:        MethodCentroid,
	"weighted_centroid":   MethodCentroid,
	"weighted-centroid":   MethodCentroid,
	"weightedcentroid":    MethodCentroid,
}

// CanonicalMethod returns the method name for a hybrid_weights key, or false if unknown.
func CanonicalMethod(key string) (string, bool) {
	m, ok := methodAliases[strings.ToLower(strings.TrimSpace(key))]
	return m, ok
}

// Normalize rewrites HybridWeights keys to canonical method names.
// Unknown keys are kept so Validate can report them.
func (c *LocalizationConfig) Normalize() {
	if c.HybridWeights == nil {
		c.HybridWeights = DefaultHybridWeights()
		return
	}
	out := make(map[string]float64, len(c.HybridWeights))
	for k, v := range c.HybridWeights {
		if m, ok := CanonicalMethod(k); ok {
			out[m] = v
			continue
		}
		out[k] = v
	}
	c.HybridWeights = out
}

// Validate checks every key and returns all problems joined, or nil.
func (c *LocalizationConfig) Validate() error {
	var errs []error
	bad := func(key, format string, args ...any) {
		errs = append(errs, ConfigError{Key: key, Reason: fmt.Sprintf(format, args...)})
	}
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

	if !finite(c.KalmanProcessVariance) || c.KalmanProcessVariance <= 0 {
		bad("kalman_process_variance", "must be > 0, got %v", c.KalmanProcessVariance)
	}
	if !finite(c.KalmanMeasurementVariance) || c.KalmanMeasurementVariance <= 0 {
		bad("kalman_measurement_variance", "must be > 0, got %v", c.KalmanMeasurementVariance)
	}
	if !finite(c.TrackMaxSpeed) || c.TrackMaxSpeed < 0 {
		bad("track_max_speed_mps", "must be >= 0, got %v", c.TrackMaxSpeed)
	}
	if !finite(c.DBSCANEps) || c.DBSCANEps <= 0 {
		bad("dbscan_eps", "must be > 0 degrees, got %v", c.DBSCANEps)
	}
	if c.DBSCANMinSamples < 1 {
		bad("dbscan_min_samples", "must be >= 1, got %d", c.DBSCANMinSamples)
	}
	if !finite(c.PathLossReferenceRSSI) {
		bad("path_loss_reference_rssi", "must be finite")
	}
	if !finite(c.PathLossExponent) || c.PathLossExponent <= 0 {
		bad("path_loss_exponent", "must be > 0, got %v", c.PathLossExponent)
	}
	if !finite(c.PathLossMinDistance) || c.PathLossMinDistance <= 0 {
		bad("path_loss_min_distance_m", "must be > 0, got %v", c.PathLossMinDistance)
	}
	if !finite(c.PathLossMaxDistance) || c.PathLossMaxDistance <= c.PathLossMinDistance {
		bad("path_loss_max_distance_m", "must be > path_loss_min_distance_m, got %v", c.PathLossMaxDistance)
	}
	if !finite(c.CentroidRSSIWeightPower) || c.CentroidRSSIWeightPower < 0 {
		bad("centroid_rssi_weight_power", "must be >= 0, got %v", c.CentroidRSSIWeightPower)
	}
	if !finite(c.CentroidRSSIFloor) {
		bad("centroid_rssi_floor", "must be finite")
	}
	if c.MinPointsForConfidence < 1 {
		bad("min_points_for_confidence", "must be >= 1, got %d", c.MinPointsForConfidence)
	}

	sum := 0.0
	for k, w := range c.HybridWeights {
		if _, ok := CanonicalMethod(k); !ok {
			bad("hybrid_weights", "unknown method %q", k)
			continue
		}
		if !finite(w) || w < 0 {
			bad("hybrid_weights", "weight for %s must be >= 0, got %v", k, w)
			continue
		}
		sum += w
	}
	if len(c.HybridWeights) > 0 && sum <= 0 {
		bad("hybrid_weights", "weights must not all be zero")
	}

	if c.MultilaterationMaxIterations < 1 || c.MultilaterationMaxIterations > MaxSolverIterations {
		bad("multilateration_max_iterations", "must be in [1, %d], got %d", MaxSolverIterations, c.MultilaterationMaxIterations)
	}
	if !finite(c.MultilaterationTolerance) || c.MultilaterationTolerance <= 0 {
		bad("multilateration_tolerance_m", "must be > 0, got %v", c.MultilaterationTolerance)
	}
	if !finite(c.MultilaterationMaxCondition) || c.MultilaterationMaxCondition < 1 {
		bad("multilateration_max_condition", "must be >= 1, got %v", c.MultilaterationMaxCondition)
	}

	if c.BayesianGridSize < 3 || c.BayesianGridSize > MaxBayesianGridSize {
		bad("bayesian_grid_size", "must be in [3, %d], got %d", MaxBayesianGridSize, c.BayesianGridSize)
	}
	if !finite(c.BayesianMargin) || c.BayesianMargin < 0 {
		bad("bayesian_margin_m", "must be >= 0, got %v", c.BayesianMargin)
	}
	if !finite(c.BayesianMaxExtent) || c.BayesianMaxExtent <= 0 {
		bad("bayesian_max_extent_m", "must be > 0, got %v", c.BayesianMaxExtent)
	}
	if !finite(c.BayesianSigma) || c.BayesianSigma <= 0 {
		bad("bayesian_sigma_m", "must be > 0, got %v", c.BayesianSigma)
	}
	if !finite(c.BayesianSigmaRatio) || c.BayesianSigmaRatio < 0 {
		bad("bayesian_sigma_ratio", "must be >= 0, got %v", c.BayesianSigmaRatio)
	}
	if c.BayesianRefinePasses < 0 || c.BayesianRefinePasses > MaxBayesianRefinePasses {
		bad("bayesian_refine_passes", "must be in [0, %d], got %d", MaxBayesianRefinePasses, c.BayesianRefinePasses)
	}
	if c.BayesianMinSamples < 1 {
		bad("bayesian_min_samples", "must be >= 1, got %d", c.BayesianMinSamples)
	}
	if c.Workers < 0 {
		bad("workers", "must be >= 0, got %d", c.Workers)
	}
	return errors.Join(errs...)
}
