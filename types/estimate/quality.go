package estimate

import "math"

// Quality is a coarse grade of an estimate from its accuracy and confidence.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
	QualityInvalid   Quality = "invalid"
)

var qualityGrades = []struct {
	q       Quality
	maxAcc  float64
	minConf float64
}{
	{QualityExcellent, 10, 0.8},
	{QualityGood, 25, 0.6},
	{QualityFair, 50, 0.4},
	{QualityPoor, 100, 0.2},
}

// Grade returns the best grade whose accuracy (meters, strictly below) and
// confidence (strictly above) thresholds are both met.
func Grade(accuracy, confidence float64) Quality {
	if math.IsNaN(accuracy) || math.IsNaN(confidence) {
		return QualityInvalid
	}
	for _, g := range qualityGrades {
		if accuracy < g.maxAcc && confidence > g.minConf {
			return g.q
		}
	}
	return QualityInvalid
}
