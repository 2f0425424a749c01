// Package cleaner removes bad fixes from GPS tracks and spatial outliers from observation groups.
package cleaner

import (
	"context"

	"github.com/paulmach/orb/geo"
	"github.com/rotblauer/aploc/types/observation"
)

// TeleportationFilter drops fixes that could only be reached from the last
// kept fix by moving faster than maxSpeed (m/s). A nonpositive maxSpeed passes everything.
//
// The first fix is held back until the next fix agrees with it. A first fix
// that disagrees with its successor is dropped and the successor takes its
// place, so a lone glitch at the start cannot anchor the rest of the track.
// A fix still unconfirmed when the input ends is sent.
func TeleportationFilter(ctx context.Context, maxSpeed float64, in <-chan observation.TrackPoint) <-chan observation.TrackPoint {
	out := make(chan observation.TrackPoint)

	go func() {
		defer close(out)

		send := func(tp observation.TrackPoint) bool {
			select {
			case <-ctx.Done():
				return false
			case out <- tp:
				return true
			}
		}

		var last *observation.TrackPoint
		confirmed := maxSpeed <= 0

		for track := range in {
			track := track
			switch {
			case last == nil:
				last = &track
				if confirmed && !send(track) {
					return
				}
			case !confirmed:
				if teleports(*last, track, maxSpeed) {
					last = &track
					continue
				}
				confirmed = true
				if !send(*last) || !send(track) {
					return
				}
				last = &track
			default:
				if maxSpeed > 0 && teleports(*last, track, maxSpeed) {
					continue
				}
				if !send(track) {
					return
				}
				last = &track
			}
		}
		if last != nil && !confirmed {
			send(*last)
		}
	}()
	return out
}

func teleports(from, to observation.TrackPoint, maxSpeed float64) bool {
	dist := geo.Distance(from.Point(), to.Point())
	interval := to.Time.Sub(from.Time).Seconds()
	// Same-second fixes get one second of slack.
	if interval < 1 {
		interval = 1
	}
	return dist/interval > maxSpeed
}
