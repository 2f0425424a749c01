// Package smooth denoises a GPS track with a constant-velocity Kalman filter.
package smooth

import (
	"fmt"
	"time"

	"github.com/rosshemsley/kalman"
	"github.com/rosshemsley/kalman/models"
	"github.com/rotblauer/aploc/common"
	"github.com/rotblauer/aploc/params"
	"github.com/rotblauer/aploc/types/observation"
	"gonum.org/v1/gonum/mat"
)

// Track returns the smoothed track, one point per input point, in order.
// Disabled smoothing, empty tracks and single points come back as an unchanged copy.
// Timestamps are carried through untouched; one that goes backwards is treated
// as equal to the one before it.
//
// The filter runs in meters east/north of the first fix, so the configured
// variances are in square meters.
func Track(cfg *params.LocalizationConfig, track observation.TrackPoints) (observation.TrackPoints, error) {
	out := make(observation.TrackPoints, len(track))
	copy(out, track)
	if !cfg.KalmanEnable || len(track) < 2 {
		return out, nil
	}

	frame := common.NewLocalFrame(track[0].Point())
	x0, y0 := frame.ToXY(track[0].Point())

	model := models.NewConstantVelocityModel(track[0].Time, mat.NewVecDense(2, []float64{x0, y0}),
		models.ConstantVelocityModelConfig{
			InitialVariance: cfg.KalmanMeasurementVariance,
			ProcessVariance: cfg.KalmanProcessVariance,
		})
	filter := kalman.NewKalmanFilter(model)

	last := track[0].Time
	for i, tp := range track {
		t := tp.Time
		if t.Before(last) {
			t = last
		}
		last = t

		x, y := frame.ToXY(tp.Point())
		err := filter.Update(t, model.NewPositionMeasurement(mat.NewVecDense(2, []float64{x, y}), cfg.KalmanMeasurementVariance))
		if err != nil {
			copy(out, track)
			return out, fmt.Errorf("kalman update at %d (%s): %w", i, tp.Time.Format(time.RFC3339), err)
		}
		pos := model.Position(filter.State())
		p := frame.FromXY(pos.AtVec(0), pos.AtVec(1))
		out[i].Lat, out[i].Lon = p.Lat(), p.Lon()
	}
	return out, nil
}
