package params

import (
	"runtime"
)

// Method names as they appear in configuration (hybrid_weights keys).
const (
	MethodMultilateration = "multilateration"
	MethodBayesian        = "bayesian"
	MethodCentroid        = "centroid"
)

// LocalizationConfig is the flat parameter set for one localization run.
// It is built once, validated, and then only read; every stage gets the same pointer.
// Keys are the mapstructure (viper) names.
type LocalizationConfig struct {
	// KalmanEnable turns on track smoothing. When false the smoother is the identity.
	KalmanEnable bool `mapstructure:"kalman_enable" yaml:"kalman_enable" json:"kalman_enable"`

	// KalmanProcessVariance is the constant-velocity model's process noise, in m^2 (per second of elapsed time).
	KalmanProcessVariance float64 `mapstructure:"kalman_process_variance" yaml:"kalman_process_variance" json:"kalman_process_variance"`

	// KalmanMeasurementVariance is the GPS fix noise, in m^2.
	// 25 is a 5 meter standard deviation, typical of consumer receivers.
	KalmanMeasurementVariance float64 `mapstructure:"kalman_measurement_variance" yaml:"kalman_measurement_variance" json:"kalman_measurement_variance"`

	// TrackMaxSpeed drops GPS fixes that imply moving faster than this (m/s)
	// before smoothing. Zero disables the filter.
	TrackMaxSpeed float64 `mapstructure:"track_max_speed_mps" yaml:"track_max_speed_mps" json:"track_max_speed_mps"`

	// DBSCANEps is the neighborhood radius IN DEGREES of lat/lon.
	// It is not a metric distance: one degree of longitude shrinks with latitude.
	// 0.0005 is roughly 55 m north-south.
	DBSCANEps float64 `mapstructure:"dbscan_eps" yaml:"dbscan_eps" json:"dbscan_eps"`

	// DBSCANMinSamples is the neighborhood size (the point itself included) that makes a core point.
	DBSCANMinSamples int `mapstructure:"dbscan_min_samples" yaml:"dbscan_min_samples" json:"dbscan_min_samples"`

	// PathLossReferenceRSSI is the RSSI (dBm) expected at 1 meter from the emitter.
	PathLossReferenceRSSI float64 `mapstructure:"path_loss_reference_rssi" yaml:"path_loss_reference_rssi" json:"path_loss_reference_rssi"`

	// PathLossExponent is the environment's attenuation exponent, 2 in free space.
	PathLossExponent float64 `mapstructure:"path_loss_exponent" yaml:"path_loss_exponent" json:"path_loss_exponent"`

	// PathLossMinDistance floors modeled distances (meters).
	PathLossMinDistance float64 `mapstructure:"path_loss_min_distance_m" yaml:"path_loss_min_distance_m" json:"path_loss_min_distance_m"`

	// PathLossMaxDistance caps modeled distances (meters).
	PathLossMaxDistance float64 `mapstructure:"path_loss_max_distance_m" yaml:"path_loss_max_distance_m" json:"path_loss_max_distance_m"`

	// CentroidRSSIWeightPower is the exponent applied to signal strength in the weighted centroid.
	CentroidRSSIWeightPower float64 `mapstructure:"centroid_rssi_weight_power" yaml:"centroid_rssi_weight_power" json:"centroid_rssi_weight_power"`

	// CentroidRSSIFloor is the dBm value treated as zero strength by the weighted centroid.
	CentroidRSSIFloor float64 `mapstructure:"centroid_rssi_floor" yaml:"centroid_rssi_floor" json:"centroid_rssi_floor"`

	// MinPointsForConfidence is the sample count at which an estimate may reach full confidence.
	MinPointsForConfidence int `mapstructure:"min_points_for_confidence" yaml:"min_points_for_confidence" json:"min_points_for_confidence"`

	UseMultilateration bool `mapstructure:"use_multilateration" yaml:"use_multilateration" json:"use_multilateration"`
	UseBayesian        bool `mapstructure:"use_bayesian" yaml:"use_bayesian" json:"use_bayesian"`

	// HybridEnableEnsemble averages all available methods.
	// When false, the single best available method wins.
	HybridEnableEnsemble bool `mapstructure:"hybrid_enable_ensemble" yaml:"hybrid_enable_ensemble" json:"hybrid_enable_ensemble"`

	// HybridWeights are per-method ensemble weights, keyed by method name.
	// They need not sum to one; they are renormalized over the methods that produce a result.
	HybridWeights map[string]float64 `mapstructure:"hybrid_weights" yaml:"hybrid_weights" json:"hybrid_weights"`

	MultilaterationMaxIterations int     `mapstructure:"multilateration_max_iterations" yaml:"multilateration_max_iterations" json:"multilateration_max_iterations"`
	MultilaterationTolerance     float64 `mapstructure:"multilateration_tolerance_m" yaml:"multilateration_tolerance_m" json:"multilateration_tolerance_m"`

	// MultilaterationMaxCondition is the largest acceptable condition number
	// of the linearized trilateration system. Near-collinear observers exceed it.
	MultilaterationMaxCondition float64 `mapstructure:"multilateration_max_condition" yaml:"multilateration_max_condition" json:"multilateration_max_condition"`

	// MultilaterationWeighted down-weights long (noisier) range estimates.
	MultilaterationWeighted bool `mapstructure:"multilateration_weighted" yaml:"multilateration_weighted" json:"multilateration_weighted"`

	// BayesianGridSize is the number of cells per side of the posterior grid.
	BayesianGridSize     int     `mapstructure:"bayesian_grid_size" yaml:"bayesian_grid_size" json:"bayesian_grid_size"`
	BayesianMargin       float64 `mapstructure:"bayesian_margin_m" yaml:"bayesian_margin_m" json:"bayesian_margin_m"`
	BayesianMaxExtent    float64 `mapstructure:"bayesian_max_extent_m" yaml:"bayesian_max_extent_m" json:"bayesian_max_extent_m"`
	BayesianSigma        float64 `mapstructure:"bayesian_sigma_m" yaml:"bayesian_sigma_m" json:"bayesian_sigma_m"`
	BayesianSigmaRatio   float64 `mapstructure:"bayesian_sigma_ratio" yaml:"bayesian_sigma_ratio" json:"bayesian_sigma_ratio"`
	BayesianRefinePasses int     `mapstructure:"bayesian_refine_passes" yaml:"bayesian_refine_passes" json:"bayesian_refine_passes"`
	BayesianMinSamples   int     `mapstructure:"bayesian_min_samples" yaml:"bayesian_min_samples" json:"bayesian_min_samples"`

	// Workers bounds the per-BSSID fan-out.
	Workers int `mapstructure:"workers" yaml:"workers" json:"workers"`
}

// Grid and refinement bounds. They keep a pathological config from hanging a run.
const (
	MaxBayesianGridSize     = 401
	MaxBayesianRefinePasses = 5
	MaxSolverIterations     = 10_000
)

func DefaultHybridWeights() map[string]float64 {
	return map[string]float64{
		MethodMultilateration: 0.4,
		MethodBayesian:        0.3,
		MethodCentroid:        0.3,
	}
}

func DefaultLocalizationConfig() *LocalizationConfig {
	return &LocalizationConfig{
		KalmanEnable:              true,
		KalmanProcessVariance:     0.5,
		KalmanMeasurementVariance: 25,
		TrackMaxSpeed:             70,

		DBSCANEps:        0.0005,
		DBSCANMinSamples: 5,

		PathLossReferenceRSSI: -40,
		PathLossExponent:      2.7,
		PathLossMinDistance:   0.1,
		PathLossMaxDistance:   10_000,

		CentroidRSSIWeightPower: 1.5,
		CentroidRSSIFloor:       -100,

		MinPointsForConfidence: 5,

		UseMultilateration:   true,
		UseBayesian:          true,
		HybridEnableEnsemble: true,
		HybridWeights:        DefaultHybridWeights(),

		MultilaterationMaxIterations: 100,
		MultilaterationTolerance:     1e-4,
		MultilaterationMaxCondition:  1e4,
		MultilaterationWeighted:      true,

		BayesianGridSize:     81,
		BayesianMargin:       10,
		BayesianMaxExtent:    2000,
		BayesianSigma:        3,
		BayesianSigmaRatio:   0.25,
		BayesianRefinePasses: 1,
		BayesianMinSamples:   2,

		Workers: runtime.NumCPU(),
	}
}

// Copy returns a deep copy, so callers can tweak a config without touching a shared one.
func (c *LocalizationConfig) Copy() *LocalizationConfig {
	cp := *c
	cp.HybridWeights = make(map[string]float64, len(c.HybridWeights))
	for k, v := range c.HybridWeights {
		cp.HybridWeights[k] = v
	}
	return &cp
}

// Weight returns the configured ensemble weight for a method name.
// Missing names get their default weight.
func (c *LocalizationConfig) Weight(method string) float64 {
	if w, ok := c.HybridWeights[method]; ok {
		return w
	}
	return DefaultHybridWeights()[method]
}
