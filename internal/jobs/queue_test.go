package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func blockingRunner(ready chan struct{}, release chan struct{}) Runner {
	return func(ctx context.Context, onProgress func(int, int)) (any, error) {
		close(ready)
		<-release
		return "done", nil
	}
}

func TestSubmitSimulationOverCapacity(t *testing.T) {
	q := NewQueue(Config{MaxConcurrentJobs: 1})
	defer q.Shutdown()

	ready := make(chan struct{})
	release := make(chan struct{})
	_, err := q.SubmitSimulation(context.Background(), map[string]int{"a": 1}, 12, blockingRunner(ready, release))
	if err != nil {
		t.Fatalf("unexpected error on first submit: %v", err)
	}
	<-ready

	_, err = q.SubmitSimulation(context.Background(), map[string]int{"a": 2}, 12, blockingRunner(make(chan struct{}), make(chan struct{})))
	var overCap *OverCapacityError
	if !errors.As(err, &overCap) {
		t.Fatalf("expected OverCapacityError, got %v", err)
	}

	close(release)
}

func TestJobIDPrefixesAndLength(t *testing.T) {
	q := NewQueue(Config{MaxConcurrentJobs: 5})
	defer q.Shutdown()

	info, err := q.SubmitSimulation(context.Background(), map[string]int{"x": 1}, 1, func(ctx context.Context, onProgress func(int, int)) (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(info.JobID) != len("abm_")+12 {
		t.Fatalf("expected job id abm_+12 hex chars, got %q", info.JobID)
	}

	mcInfo, err := q.SubmitMonteCarlo(context.Background(), map[string]int{"y": 1}, 10, func(ctx context.Context, onProgress func(int, int)) (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(mcInfo.JobID) != len("mc_")+12 {
		t.Fatalf("expected job id mc_+12 hex chars, got %q", mcInfo.JobID)
	}
}

func TestSimulationResultIsCachedByFingerprint(t *testing.T) {
	q := NewQueue(Config{MaxConcurrentJobs: 5, CacheTTL: time.Hour})
	defer q.Shutdown()

	config := map[string]int{"seed": 42}
	calls := 0
	runner := func(ctx context.Context, onProgress func(int, int)) (any, error) {
		calls++
		return "result", nil
	}

	info1, err := q.SubmitSimulation(context.Background(), config, 1, runner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	waitForTerminal(t, q, info1.JobID)

	info2, err := q.SubmitSimulation(context.Background(), config, 1, runner)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info2.Status != Completed {
		t.Fatalf("expected cached job to be immediately completed, got %s", info2.Status)
	}
	if calls != 1 {
		t.Fatalf("expected runner invoked once (second served from cache), got %d calls", calls)
	}
	if info2.JobID[:7] != "cached_" {
		t.Fatalf("expected cached_ prefix, got %q", info2.JobID)
	}
}

func TestMonteCarloResultsAreNeverCached(t *testing.T) {
	q := NewQueue(Config{MaxConcurrentJobs: 5, CacheTTL: time.Hour})
	defer q.Shutdown()

	config := map[string]int{"seed": 7}
	calls := 0
	runner := func(ctx context.Context, onProgress func(int, int)) (any, error) {
		calls++
		return "mc-result", nil
	}

	info1, _ := q.SubmitMonteCarlo(context.Background(), config, 10, runner)
	waitForTerminal(t, q, info1.JobID)

	info2, _ := q.SubmitMonteCarlo(context.Background(), config, 10, runner)
	waitForTerminal(t, q, info2.JobID)

	if calls != 2 {
		t.Fatalf("expected runner invoked twice (no caching for Monte Carlo), got %d", calls)
	}
}

func TestJobStateMachineTerminal(t *testing.T) {
	q := NewQueue(Config{MaxConcurrentJobs: 5})
	defer q.Shutdown()

	info, _ := q.SubmitSimulation(context.Background(), map[string]int{"z": 1}, 1, func(ctx context.Context, onProgress func(int, int)) (any, error) {
		return nil, errors.New("boom")
	})
	waitForTerminal(t, q, info.JobID)

	got, err := q.Status(info.JobID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != Failed {
		t.Fatalf("expected Failed status, got %s", got.Status)
	}

	_, err = q.Results(info.JobID)
	var notAvail *NotAvailableError
	if !errors.As(err, &notAvail) {
		t.Fatalf("expected NotAvailableError for failed job results, got %v", err)
	}
}

func waitForTerminal(t *testing.T, q *Queue, jobID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		info, err := q.Status(jobID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if info.Status == Completed || info.Status == Failed || info.Status == Cancelled {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job %s did not reach terminal state in time", jobID)
}
