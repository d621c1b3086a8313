package alignment

import (
	"sort"
	"time"
)

// observation is one raw numeric sample for a single column.
type observation struct {
	ts    time.Time
	value float64
}

// bucketLast buckets observations into grid-step buckets keeping the last
// observation in each bucket. Observations must be in ascending time order.
func bucketLast(obs []observation, step time.Duration) map[time.Time]float64 {
	buckets := make(map[time.Time]float64)
	for _, o := range obs {
		buckets[o.ts.Truncate(step)] = o.value
	}

	return buckets
}

// bucketMean buckets observations into grid-step buckets averaging all
// observations in each bucket.
func bucketMean(obs []observation, step time.Duration) map[time.Time]float64 {
	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, o := range obs {
		bucket := o.ts.Truncate(step)
		sums[bucket] += o.value
		counts[bucket]++
	}

	means := make(map[time.Time]float64, len(sums))
	for bucket, sum := range sums {
		means[bucket] = sum / float64(counts[bucket])
	}

	return means
}

// reindexForward maps buckets onto the grid carrying the most recent known
// value forward indefinitely. Grid points earlier than the first bucket
// stay null. Buckets before the grid start still seed the carried value.
func reindexForward(grid *Grid, buckets map[time.Time]float64) []*float64 {
	times := sortedBucketTimes(buckets)
	values := make([]*float64, grid.Len())

	cursor := 0
	var carried *float64

	for i, point := range grid.Points {
		for cursor < len(times) && !times[cursor].After(point) {
			v := buckets[times[cursor]]
			carried = &v
			cursor++
		}
		values[i] = carried
	}

	return values
}

// reindexNearest maps buckets onto the grid by nearest-neighbor matching
// with a maximum tolerated distance of exactly one grid step. Ties prefer
// the earlier bucket. Gaps wider than one step stay null.
func reindexNearest(grid *Grid, buckets map[time.Time]float64) []*float64 {
	values := make([]*float64, grid.Len())

	for i, point := range grid.Points {
		if v, ok := buckets[point]; ok {
			values[i] = &v
			continue
		}
		if v, ok := buckets[point.Add(-grid.Step)]; ok {
			values[i] = &v
			continue
		}
		if v, ok := buckets[point.Add(grid.Step)]; ok {
			values[i] = &v
		}
	}

	return values
}

func sortedBucketTimes(buckets map[time.Time]float64) []time.Time {
	times := make([]time.Time, 0, len(buckets))
	for ts := range buckets {
		times = append(times, ts)
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	return times
}
