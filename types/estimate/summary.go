package estimate

import (
	"time"

	"github.com/montanaflynn/stats"
)

// RunSummary describes one localization run.
type RunSummary struct {
	ID       string    `json:"id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	Observations int `json:"observations"`
	Skipped      int `json:"skipped"`
	TrackPoints  int `json:"track_points"`
	Outliers     int `json:"outliers"`
	Groups       int `json:"groups"`
	Estimates    int `json:"estimates"`
	Failed       int `json:"failed"`

	MeanConfidence   float64         `json:"mean_confidence"`
	MedianConfidence float64         `json:"median_confidence"`
	Qualities        map[Quality]int `json:"qualities"`
}

// RunID formats a run start time as a sortable id.
func RunID(started time.Time) string {
	return started.UTC().Format("20060102T150405.000000000Z")
}

// Tally fills the estimate-derived fields of s from ps.
func (s *RunSummary) Tally(ps []Position) {
	s.Estimates = len(ps)
	s.Qualities = make(map[Quality]int)
	if len(ps) == 0 {
		return
	}
	confs := make(stats.Float64Data, 0, len(ps))
	for _, p := range ps {
		confs = append(confs, p.Confidence)
		s.Qualities[p.Quality]++
	}
	s.MeanConfidence, _ = confs.Mean()
	s.MedianConfidence, _ = confs.Median()
}

// Duration is how long the run took.
func (s RunSummary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}
