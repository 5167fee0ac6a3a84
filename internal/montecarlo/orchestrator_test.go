package montecarlo

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/tokenlab/abm-engine/internal/simulation"
)

func fakeRunner(months int) TrialRunner {
	return func(ctx context.Context, trialIndex int, seed uint64) (*simulation.Results, error) {
		metrics := make([]simulation.IterationResult, months)
		// Price drifts deterministically from the seed, so two runs with the
		// same base seed produce identical trials.
		base := float64(seed%1000) / 1000.0
		for i := 0; i < months; i++ {
			price := decimal.NewFromFloat(1.0 + base*float64(i))
			metrics[i] = simulation.IterationResult{
				MonthIndex:        i,
				Price:             price,
				CirculatingSupply: decimal.NewFromInt(int64(1000 * (i + 1))),
				TotalSold:         decimal.NewFromInt(int64(10 * i)),
			}
		}
		return &simulation.Results{GlobalMetrics: metrics}, nil
	}
}

func TestOrchestratorDeterministicSeeds(t *testing.T) {
	runner := fakeRunner(6)
	cfgA := Config{NumTrials: 10, BaseSeed: 42}
	cfgB := Config{NumTrials: 10, BaseSeed: 42}

	resA, err := NewOrchestrator(cfgA, runner).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resB, err := NewOrchestrator(cfgB, runner).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range resA.Trials {
		if resA.Trials[i].Seed != resB.Trials[i].Seed {
			t.Fatalf("trial %d: expected identical seeds across runs, got %d vs %d", i, resA.Trials[i].Seed, resB.Trials[i].Seed)
		}
		if resA.Trials[i].FinalPrice != resB.Trials[i].FinalPrice {
			t.Fatalf("trial %d: expected identical final price, got %v vs %v", i, resA.Trials[i].FinalPrice, resB.Trials[i].FinalPrice)
		}
	}
}

func TestOrchestratorSortsByTrialIndex(t *testing.T) {
	res, err := NewOrchestrator(Config{NumTrials: 10, BaseSeed: 1}, fakeRunner(3)).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, tr := range res.Trials {
		if tr.TrialIndex != i {
			t.Fatalf("expected trial index %d at position %d, got %d", i, i, tr.TrialIndex)
		}
	}
}

func TestOrchestratorProgressCallback(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	progress := func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		calls++
	}

	_, err := NewOrchestrator(Config{NumTrials: 10, BaseSeed: 1}, fakeRunner(2)).Run(context.Background(), progress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 10 {
		t.Fatalf("expected 10 progress calls, got %d", calls)
	}
}

func TestPercentileAtBasic(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50}
	if got := percentileAt(values, 50); got != 30 {
		t.Fatalf("expected median 30, got %v", got)
	}
	if got := percentileAt(values, 0); got != 10 {
		t.Fatalf("expected min 10, got %v", got)
	}
	if got := percentileAt(values, 100); got != 50 {
		t.Fatalf("expected max 50, got %v", got)
	}
}

func TestAggregationOrderIndependence(t *testing.T) {
	res1, _ := NewOrchestrator(Config{NumTrials: 20, BaseSeed: 99, MaxConcurrency: 1}, fakeRunner(4)).Run(context.Background(), nil)
	res2, _ := NewOrchestrator(Config{NumTrials: 20, BaseSeed: 99, MaxConcurrency: 16}, fakeRunner(4)).Run(context.Background(), nil)

	if res1.Summary.MeanFinalPrice != res2.Summary.MeanFinalPrice {
		t.Fatalf("expected aggregation independent of concurrency, got %v vs %v",
			res1.Summary.MeanFinalPrice, res2.Summary.MeanFinalPrice)
	}
}
