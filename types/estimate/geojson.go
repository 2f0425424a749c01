package estimate

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/aploc/common"
	"github.com/rotblauer/aploc/s2"
)

// ToFeature converts a Position to a GeoJSON point feature.
// Coordinates are rounded to GPS precision; scores and distances to fixed decimals.
func ToFeature(p Position) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{
		common.DecimalToFixed(p.Lon, common.GPSPrecision7),
		common.DecimalToFixed(p.Lat, common.GPSPrecision7),
	})
	f.ID = p.BSSID.String()

	methods := make([]string, 0, len(p.Methods))
	for _, m := range p.Methods {
		methods = append(methods, m.String())
	}
	weights := make(map[string]float64, len(p.Weights))
	for m, w := range p.Weights {
		weights[m.String()] = common.DecimalToFixed(w, 4)
	}

	props := geojson.Properties{
		"BSSID":         p.BSSID.String(),
		"Confidence":    common.DecimalToFixed(p.Confidence, 4),
		"Methods":       methods,
		"Weights":       weights,
		"SampleCount":   p.Samples,
		"Quality":       string(p.Quality),
		"LowConfidence": p.LowConfidence,
	}
	if common.IsFinite(p.Accuracy) {
		props["Accuracy"] = common.DecimalToFixed(p.Accuracy, 2)
	}
	if p.Cell != "" {
		props["S2Cell"] = p.Cell
	}
	f.Properties = props
	return f
}

// CellFeature is the outline of the estimate's S2 cell at the level fitting its accuracy.
func CellFeature(p Position) *geojson.Feature {
	f := geojson.NewFeature(s2.CellPolygonForPointAtLevel(p.Point(), s2.LevelForAccuracy(p.Accuracy)))
	f.Properties = geojson.Properties{
		"BSSID":      p.BSSID.String(),
		"Confidence": common.DecimalToFixed(p.Confidence, 4),
	}
	return f
}

// ToFeatureCollection converts estimates to a FeatureCollection in order.
// With cells, each point feature is followed by its cell outline.
func ToFeatureCollection(ps []Position, cells bool) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range ps {
		fc.Append(ToFeature(p))
		if cells {
			fc.Append(CellFeature(p))
		}
	}
	return fc
}

// AssignCell sets p.Cell from the estimate's position and accuracy.
func AssignCell(p *Position) {
	p.Cell = s2.CellToken(p.Point(), s2.LevelForAccuracy(p.Accuracy))
}
