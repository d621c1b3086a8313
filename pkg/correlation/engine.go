package correlation

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chimeradata/chimera/pkg/alignment"
	"github.com/chimeradata/chimera/pkg/observability"
	"github.com/sirupsen/logrus"
)

// Engine discovers correlations in an aligned dataset.
type Engine struct {
	log logrus.FieldLogger
	cfg *Config
}

// NewEngine creates a correlation engine.
func NewEngine(log logrus.FieldLogger, cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid correlation config: %w", err)
	}

	return &Engine{
		log: log.WithField("component", "correlation"),
		cfg: cfg,
	}, nil
}

// pairJob is one independent correlation unit: a (target, factor, lag)
// triple with a stable index used for deterministic merge and tie-breaking.
type pairJob struct {
	target string
	factor string
	lag    int // 0 means the instantaneous pass
}

// Analyze runs the instantaneous and lagged passes over every
// (target, factor) pair, ranks the concatenated results by absolute
// correlation with a stable sort, and applies diversity reduction to the
// top list. Cancellation mid-run drops unfinished pairs and still returns a
// valid partial report.
func (e *Engine) Analyze(ctx context.Context, ds *alignment.Dataset, now time.Time) (*Report, error) {
	targets, factors := e.partitionColumns(ds.Columns)

	e.log.WithFields(logrus.Fields{
		"targets": len(targets),
		"factors": len(factors),
	}).Info("Starting correlation analysis")

	jobs := buildJobs(targets, factors, e.cfg.Lags, e.cfg.MaxLag)
	slots := make([]*Record, len(jobs))

	var wg sync.WaitGroup
	work := make(chan int)

	workers := e.cfg.Concurrency
	if workers > len(jobs) {
		workers = len(jobs)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				if ctx.Err() != nil {
					continue
				}
				slots[i] = e.computePair(ds, jobs[i])
			}
		}()
	}

	for i := range jobs {
		work <- i
	}
	close(work)
	wg.Wait()

	// Merge barrier: collect qualifying records in job order so the stable
	// sort breaks ties by pass order, then by column iteration order.
	records := make([]Record, 0, len(slots))
	skipped := 0
	for _, slot := range slots {
		if slot == nil {
			skipped++
			continue
		}
		records = append(records, *slot)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return math.Abs(float64(records[i].Correlation)) > math.Abs(float64(records[j].Correlation))
	})

	rows, cols := ds.Shape()
	report := &Report{
		GeneratedAt:            now.UTC(),
		DataShape:              [2]int{rows, cols},
		ColumnsAnalyzed:        ds.Columns,
		TotalCorrelationsFound: len(records),
		Threshold:              JSONFloat(e.cfg.Threshold),
		TopCorrelations:        diversityReduce(records, e.cfg.TopN),
		AllCorrelations:        records,
	}

	observability.CorrelationsFound.Set(float64(len(records)))
	observability.RunSkipsTotal.WithLabelValues("correlation").Add(float64(skipped))

	e.log.WithFields(logrus.Fields{
		"found":   len(records),
		"top":     len(report.TopCorrelations),
		"skipped": skipped,
	}).Info("Correlation analysis complete")

	return report, nil
}

// partitionColumns filters blacklisted columns and splits the remainder
// into targets (carrying the target prefix) and factors, preserving the
// dataset's column order.
func (e *Engine) partitionColumns(columns []string) (targets, factors []string) {
	for _, column := range columns {
		if e.blacklisted(column) {
			continue
		}
		if strings.HasPrefix(column, e.cfg.TargetPrefix) {
			targets = append(targets, column)
		} else {
			factors = append(factors, column)
		}
	}

	return targets, factors
}

func (e *Engine) blacklisted(column string) bool {
	lower := strings.ToLower(column)
	for _, pattern := range e.cfg.Blacklist {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}

	return false
}

// buildJobs lists every pair unit in stable order: the instantaneous pass
// first, then each configured lag in order, iterating targets then factors.
func buildJobs(targets, factors []string, lags []int, maxLag int) []pairJob {
	jobs := make([]pairJob, 0, len(targets)*len(factors)*(len(lags)+1))

	for _, target := range targets {
		for _, factor := range factors {
			jobs = append(jobs, pairJob{target: target, factor: factor})
		}
	}

	for _, lag := range lags {
		if lag > maxLag {
			continue
		}
		for _, target := range targets {
			for _, factor := range factors {
				jobs = append(jobs, pairJob{target: target, factor: factor, lag: lag})
			}
		}
	}

	return jobs
}

// computePair evaluates one (target, factor, lag) unit. A lag of L pairs
// the factor at grid index i-L with the target at index i. Returns nil when
// the pair is skipped: under-sampled, degenerate, or below threshold.
func (e *Engine) computePair(ds *alignment.Dataset, job pairJob) *Record {
	target := ds.Column(job.target)
	factor := ds.Column(job.factor)

	xs := make([]float64, 0, len(target))
	ys := make([]float64, 0, len(target))

	for i := job.lag; i < len(target); i++ {
		fv := factor[i-job.lag]
		tv := target[i]
		if fv == nil || tv == nil {
			continue
		}
		xs = append(xs, *fv)
		ys = append(ys, *tv)
	}

	if len(xs) < e.cfg.MinSampleSize {
		return nil
	}

	r := pearson(ys, xs)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return nil
	}
	if math.Abs(r) < e.cfg.Threshold {
		return nil
	}

	kind := KindInstant
	if job.lag > 0 {
		kind = KindLagged
	}

	return &Record{
		TargetFactor:        job.target,
		EnvironmentalFactor: job.factor,
		Correlation:         JSONFloat(round4(r)),
		LagHours:            job.lag,
		SampleSize:          len(xs),
		Kind:                kind,
	}
}

// diversityReduce walks the globally sorted record list and keeps only the
// first record per canonical pair key, stopping at the cap. This prevents
// one instrument's OHLCV fields from crowding out distinct relationships.
func diversityReduce(records []Record, limit int) []Record {
	seen := make(map[string]bool, limit)
	top := make([]Record, 0, limit)

	for _, record := range records {
		key := record.PairKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		top = append(top, record)
		if len(top) == limit {
			break
		}
	}

	return top
}
