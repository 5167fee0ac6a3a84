// Package montecarlo runs many independent simulation trials concurrently
// and aggregates their per-month metrics into percentile and mean
// trajectories. Every trial's RNG seed is derived deterministically from a
// single base seed and the trial's index, so results are reproducible
// regardless of worker count or completion order.
package montecarlo

import (
	"context"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tokenlab/abm-engine/internal/simulation"
	"github.com/tokenlab/abm-engine/pkg/utils"
	"go.uber.org/zap"
)

// TrialRunner builds and runs one independent simulation trial given a
// deterministic seed, returning its per-month metrics.
type TrialRunner func(ctx context.Context, trialIndex int, seed uint64) (*simulation.Results, error)

// Trial is one completed Monte Carlo trial.
type Trial struct {
	TrialIndex           int
	Seed                 uint64
	GlobalMetrics        []simulation.IterationResult
	FinalPrice           float64
	TotalSold            float64
	MaxDrawdown          float64
	ExecutionTimeSeconds float64
}

// Percentile holds the per-month metric trajectories at one requested
// percentile across all trials.
type Percentile struct {
	Percentile    float64
	GlobalMetrics []MetricSnapshot
	FinalPrice    float64
	TotalSold     float64
}

// MetricSnapshot is one month's cross-trial aggregate at a given percentile
// or mean.
type MetricSnapshot struct {
	MonthIndex        int
	Price             float64
	CirculatingSupply float64
	TotalUnlocked     float64
	TotalSold         float64
	TotalStaked       float64
	TotalHeld         float64
}

// SummaryStatistics summarizes the distribution of final outcomes across
// all trials.
type SummaryStatistics struct {
	MeanFinalPrice        float64
	StdFinalPrice         float64
	MinFinalPrice         float64
	MaxFinalPrice         float64
	P10FinalPrice         float64
	P50FinalPrice         float64
	P90FinalPrice         float64
	MeanTotalSold         float64
	StdTotalSold          float64
	CoefficientOfVariation float64
	MeanMaxDrawdown       float64
	WorstMaxDrawdown      float64
}

// Results is the full aggregated output of a Monte Carlo run.
type Results struct {
	Trials               []Trial
	Percentiles          []Percentile
	MeanTrajectory       []MetricSnapshot
	Summary              SummaryStatistics
	ExecutionTimeSeconds float64
}

// Config configures a Monte Carlo run.
type Config struct {
	NumTrials         int
	BaseSeed          uint64
	ConfidenceLevels  []float64 // e.g. []float64{10, 50, 90}
	MaxConcurrency    int
	Logger            *zap.Logger
}

// DefaultConfidenceLevels matches the original implementation's defaults.
func DefaultConfidenceLevels() []float64 { return []float64{10, 50, 90} }

// ProgressFunc is invoked once per completed trial, in completion order
// (which is not necessarily trial-index order).
type ProgressFunc func(completed, total int)

// Orchestrator runs and aggregates Monte Carlo trials.
type Orchestrator struct {
	cfg    Config
	logger *zap.Logger
	runner TrialRunner
}

// NewOrchestrator builds an Orchestrator. runner is the per-trial
// simulation factory, explicitly injected rather than looked up by type.
func NewOrchestrator(cfg Config, runner TrialRunner) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.ConfidenceLevels) == 0 {
		cfg.ConfidenceLevels = DefaultConfidenceLevels()
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	return &Orchestrator{cfg: cfg, logger: logger, runner: runner}
}

// deriveSeed computes trial i's seed from the run's base seed using a
// counter-based PCG source, so seeds are reproducible independent of
// consumption order (unlike sequentially drawing N seeds from one shared
// generator).
func deriveSeed(baseSeed uint64, trialIndex int) uint64 {
	src := rand.NewPCG(baseSeed, uint64(trialIndex))
	r := rand.New(src)
	return r.Uint64()
}

// Run launches all trials with bounded concurrency, invoking progress after
// each completion (in arbitrary order), then sorts results by trial index
// before aggregating — aggregation itself is order-independent.
func (o *Orchestrator) Run(ctx context.Context, progress ProgressFunc) (*Results, error) {
	start := time.Now()

	type outcome struct {
		trial Trial
		err   error
	}

	sem := make(chan struct{}, o.cfg.MaxConcurrency)
	outcomes := make(chan outcome, o.cfg.NumTrials)
	var wg sync.WaitGroup

	for i := 0; i < o.cfg.NumTrials; i++ {
		wg.Add(1)
		go func(trialIndex int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			seed := deriveSeed(o.cfg.BaseSeed, trialIndex)
			trialStart := time.Now()
			res, err := o.runner(ctx, trialIndex, seed)
			if err != nil {
				outcomes <- outcome{err: err}
				return
			}

			var finalPrice, totalSold float64
			if n := len(res.GlobalMetrics); n > 0 {
				finalPrice = res.GlobalMetrics[n-1].Price.InexactFloat64()
				totalSold = res.GlobalMetrics[n-1].TotalSold.InexactFloat64()
			}

			priceSeries := make([]decimal.Decimal, len(res.GlobalMetrics))
			for i, m := range res.GlobalMetrics {
				priceSeries[i] = m.Price
			}
			maxDrawdown, _ := utils.CalculateMaxDrawdown(priceSeries).Float64()

			outcomes <- outcome{trial: Trial{
				TrialIndex:           trialIndex,
				Seed:                 seed,
				GlobalMetrics:        res.GlobalMetrics,
				FinalPrice:           finalPrice,
				TotalSold:            totalSold,
				MaxDrawdown:          maxDrawdown,
				ExecutionTimeSeconds: time.Since(trialStart).Seconds(),
			}}
		}(i)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	trials := make([]Trial, 0, o.cfg.NumTrials)
	completed := 0
	for res := range outcomes {
		if res.err != nil {
			return nil, res.err
		}
		trials = append(trials, res.trial)
		completed++
		if progress != nil {
			progress(completed, o.cfg.NumTrials)
		}
	}

	sort.Slice(trials, func(i, j int) bool { return trials[i].TrialIndex < trials[j].TrialIndex })

	percentiles := computePercentiles(trials, o.cfg.ConfidenceLevels)
	mean := computeMeanTrajectory(trials)
	summary := computeSummary(trials)

	return &Results{
		Trials:               trials,
		Percentiles:          percentiles,
		MeanTrajectory:       mean,
		Summary:              summary,
		ExecutionTimeSeconds: time.Since(start).Seconds(),
	}, nil
}
