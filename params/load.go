package params

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix, e.g. APLOC_DBSCAN_EPS.
const EnvPrefix = "APLOC"

// Nested sections of the config file.
const (
	InfluxDBSection = "influxdb"
	MQTTSection     = "mqtt"
)

// SetDefaults registers every key with its default value.
// Registering keys is also what makes viper pick up their environment variables on Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := DefaultLocalizationConfig()
	v.SetDefault("kalman_enable", d.KalmanEnable)
	v.SetDefault("kalman_process_variance", d.KalmanProcessVariance)
	v.SetDefault("kalman_measurement_variance", d.KalmanMeasurementVariance)
	v.SetDefault("track_max_speed_mps", d.TrackMaxSpeed)
	v.SetDefault("dbscan_eps", d.DBSCANEps)
	v.SetDefault("dbscan_min_samples", d.DBSCANMinSamples)
	v.SetDefault("path_loss_reference_rssi", d.PathLossReferenceRSSI)
	v.SetDefault("path_loss_exponent", d.PathLossExponent)
	v.SetDefault("path_loss_min_distance_m", d.PathLossMinDistance)
	v.SetDefault("path_loss_max_distance_m", d.PathLossMaxDistance)
	v.SetDefault("centroid_rssi_weight_power", d.CentroidRSSIWeightPower)
	v.SetDefault("centroid_rssi_floor", d.CentroidRSSIFloor)
	v.SetDefault("min_points_for_confidence", d.MinPointsForConfidence)
	v.SetDefault("use_multilateration", d.UseMultilateration)
	v.SetDefault("use_bayesian", d.UseBayesian)
	v.SetDefault("hybrid_enable_ensemble", d.HybridEnableEnsemble)
	v.SetDefault("hybrid_weights", d.HybridWeights)
	v.SetDefault("multilateration_max_iterations", d.MultilaterationMaxIterations)
	v.SetDefault("multilateration_tolerance_m", d.MultilaterationTolerance)
	v.SetDefault("multilateration_max_condition", d.MultilaterationMaxCondition)
	v.SetDefault("multilateration_weighted", d.MultilaterationWeighted)
	v.SetDefault("bayesian_grid_size", d.BayesianGridSize)
	v.SetDefault("bayesian_margin_m", d.BayesianMargin)
	v.SetDefault("bayesian_max_extent_m", d.BayesianMaxExtent)
	v.SetDefault("bayesian_sigma_m", d.BayesianSigma)
	v.SetDefault("bayesian_sigma_ratio", d.BayesianSigmaRatio)
	v.SetDefault("bayesian_refine_passes", d.BayesianRefinePasses)
	v.SetDefault("bayesian_min_samples", d.BayesianMinSamples)
	v.SetDefault("workers", d.Workers)

	ic := DefaultInfluxDBConfig()
	v.SetDefault(InfluxDBSection+".url", ic.URL)
	v.SetDefault(InfluxDBSection+".token", ic.Token)
	v.SetDefault(InfluxDBSection+".org", ic.Org)
	v.SetDefault(InfluxDBSection+".bucket", ic.Bucket)
	v.SetDefault(InfluxDBSection+".measurement", ic.Measurement)

	mc := DefaultMQTTConfig()
	v.SetDefault(MQTTSection+".broker", mc.Broker)
	v.SetDefault(MQTTSection+".client_id", mc.ClientID)
	v.SetDefault(MQTTSection+".username", mc.Username)
	v.SetDefault(MQTTSection+".password", mc.Password)
	v.SetDefault(MQTTSection+".topic_prefix", mc.TopicPrefix)
	v.SetDefault(MQTTSection+".qos", mc.QoS)
	v.SetDefault(MQTTSection+".retain", mc.Retain)
	v.SetDefault(MQTTSection+".timeout", mc.Timeout)
}

// NewViper returns a viper instance with defaults and APLOC_* environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// LoadLocalizationConfig decodes, normalizes and validates the localization keys held by v.
// Keys viper does not know about are ignored.
func LoadLocalizationConfig(v *viper.Viper) (*LocalizationConfig, error) {
	c := &LocalizationConfig{}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func LoadInfluxDBConfig(v *viper.Viper) (*InfluxDBConfig, error) {
	c := DefaultInfluxDBConfig()
	if err := v.UnmarshalKey(InfluxDBSection, c); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", InfluxDBSection, err)
	}
	return c, nil
}

func LoadMQTTConfig(v *viper.Viper) (*MQTTConfig, error) {
	c := DefaultMQTTConfig()
	if err := v.UnmarshalKey(MQTTSection, c); err != nil {
		return nil, fmt.Errorf("decode %s config: %w", MQTTSection, err)
	}
	return c, nil
}
