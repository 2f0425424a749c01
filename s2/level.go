package s2

/*
https://s2geometry.io/resources/s2cell_statistics.html

level  min area     max area     average area  units  min edge  max edge

13     0.76         1.59         1.27          km2    850 m     1225 m   -- about a kilometer (square)
14     0.19         0.40         0.32          km2    425 m     613 m
15     47520.30     99638.93     79172.67      m2     212 m     306 m
16     11880.08     24909.73     19793.17      m2     106 m     153 m    -- throwing distance
17     2970.02      6227.43      4948.29       m2     53 m      77 m
18     742.50       1556.86      1237.07       m2     27 m      38 m
19     185.63       389.21       309.27        m2     13 m      19 m
20     46.41        97.30        77.32         m2     7 m       10 m
21     11.60        24.33        19.33         m2     3 m       5 m      -- spitting distance
*/

// CellLevel represents the S2 cell level, from 0-30.
type CellLevel int

const (
	CellLevel13 CellLevel = 13

	// CellLevel16 is approximately 140m on an edge, or an area of about 5 acres.
	CellLevel16 CellLevel = 16

	// CellLevel18 is about 100ft on a side, and has an area of about 1/4 acre.
	// Small residential plot; the scale of a good access point estimate.
	CellLevel18 CellLevel = 18

	// CellLevel21 is a few meters on a side.
	CellLevel21 CellLevel = 21

	CellLevelMax CellLevel = 30
)

// DefaultEstimateLevel is the cell level attached to estimates.
const DefaultEstimateLevel = CellLevel18

// LevelForAccuracy returns the coarsest of the named levels whose cells
// are no larger than about twice the accuracy radius (meters).
// Nonpositive or non-finite accuracy gets DefaultEstimateLevel.
func LevelForAccuracy(accuracy float64) CellLevel {
	switch {
	case !(accuracy > 0) || accuracy > 1e9:
		return DefaultEstimateLevel
	case accuracy <= 2.5:
		return CellLevel21
	case accuracy <= 20:
		return CellLevel18
	case accuracy <= 75:
		return CellLevel16
	}
	return CellLevel13
}
