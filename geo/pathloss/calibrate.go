package pathloss

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

var ErrCalibration = errors.New("path loss calibration failed")

// Measurement is a signal strength observed at a known distance from the emitter.
type Measurement struct {
	Distance float64 `json:"distance_m" yaml:"distance_m"`
	RSSI     float64 `json:"rssi" yaml:"rssi"`
}

// Calibration is a least-squares fit of the model to measurements.
type Calibration struct {
	ReferenceRSSI float64 `yaml:"path_loss_reference_rssi" json:"path_loss_reference_rssi"`
	Exponent      float64 `yaml:"path_loss_exponent" json:"path_loss_exponent"`
	RMSE          float64 `yaml:"-" json:"rmse_db"`
	Samples       int     `yaml:"-" json:"samples"`
}

// Calibrate regresses RSSI on log10(distance).
// The slope is -10n and the intercept is the reference RSSI.
// It needs at least two distinct distances and a fit with a positive exponent.
func Calibrate(ms []Measurement) (Calibration, error) {
	xs := make(stats.Float64Data, 0, len(ms))
	ys := make(stats.Float64Data, 0, len(ms))
	for _, m := range ms {
		if !(m.Distance > 0) || math.IsInf(m.Distance, 0) || math.IsNaN(m.RSSI) || math.IsInf(m.RSSI, 0) {
			continue
		}
		xs = append(xs, math.Log10(m.Distance))
		ys = append(ys, m.RSSI)
	}
	if len(xs) < 2 {
		return Calibration{}, fmt.Errorf("%w: need at least 2 valid measurements, got %d", ErrCalibration, len(xs))
	}

	varX, err := stats.SampleVariance(xs)
	if err != nil {
		return Calibration{}, fmt.Errorf("%w: %v", ErrCalibration, err)
	}
	if varX <= 0 {
		return Calibration{}, fmt.Errorf("%w: all measurements at the same distance", ErrCalibration)
	}
	cov, err := stats.Covariance(xs, ys)
	if err != nil {
		return Calibration{}, fmt.Errorf("%w: %v", ErrCalibration, err)
	}
	meanX, _ := stats.Mean(xs)
	meanY, _ := stats.Mean(ys)

	slope := cov / varX
	c := Calibration{
		ReferenceRSSI: meanY - slope*meanX,
		Exponent:      -slope / 10,
		Samples:       len(xs),
	}
	if !(c.Exponent > 0) {
		return Calibration{}, fmt.Errorf("%w: signal does not weaken with distance (exponent %.3f)", ErrCalibration, c.Exponent)
	}

	residuals := make(stats.Float64Data, len(xs))
	for i := range xs {
		r := ys[i] - (c.ReferenceRSSI + slope*xs[i])
		residuals[i] = r * r
	}
	mse, _ := stats.Mean(residuals)
	c.RMSE = math.Sqrt(mse)
	return c, nil
}
