package alignment

import "time"

// Grid is the canonical fixed-spacing UTC timestamp sequence all series are
// aligned onto. It spans [floor(now) - lookback, floor(now) + 1 step]
// inclusive, so a run always contains one point past the current hour.
type Grid struct {
	Step   time.Duration
	Points []time.Time
}

// NewGrid builds the master grid for a run. The result is deterministic
// given the run timestamp: for lookbackDays=D and an hourly step the grid
// holds exactly D*24 + 2 points.
func NewGrid(now time.Time, lookbackDays int, step time.Duration) *Grid {
	end := now.UTC().Truncate(step).Add(step)
	start := end.Add(-step).Add(-time.Duration(lookbackDays) * 24 * time.Hour)

	points := make([]time.Time, 0, int(end.Sub(start)/step)+1)
	for ts := start; !ts.After(end); ts = ts.Add(step) {
		points = append(points, ts)
	}

	return &Grid{Step: step, Points: points}
}

// Len returns the number of grid points.
func (g *Grid) Len() int {
	return len(g.Points)
}

// Start returns the first grid point.
func (g *Grid) Start() time.Time {
	return g.Points[0]
}

// End returns the last grid point.
func (g *Grid) End() time.Time {
	return g.Points[len(g.Points)-1]
}
