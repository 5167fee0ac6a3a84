package scaling

import "testing"

func TestDetermineStrategyThresholds(t *testing.T) {
	cases := []struct {
		holders int
		want    Strategy
	}{
		{500, FullIndividual},
		{1000, FullIndividual},
		{1001, RepresentativeSampling},
		{10000, RepresentativeSampling},
		{10001, MetaAgents},
	}
	for _, c := range cases {
		got := DetermineStrategy(c.holders, "")
		if got != c.want {
			t.Errorf("holders=%d: expected %s, got %s", c.holders, c.want, got)
		}
	}
}

func TestDetermineStrategyForced(t *testing.T) {
	got := DetermineStrategy(50, MetaAgents)
	if got != MetaAgents {
		t.Fatalf("expected forced strategy to win, got %s", got)
	}
}

func TestCalculateAgentCountsFullIndividual(t *testing.T) {
	counts := CalculateAgentCounts(map[string]int{"Team": 200, "VC": 50}, FullIndividual)
	if counts["Team"].NumAgents != 200 || counts["Team"].ScalingWeight != 1.0 {
		t.Fatalf("unexpected Team allocation: %+v", counts["Team"])
	}
}

func TestCalculateAgentCountsRepresentativeSamplingFloor(t *testing.T) {
	counts := CalculateAgentCounts(map[string]int{"Team": 10, "Community": 9990}, RepresentativeSampling)
	if counts["Team"].NumAgents < 10 {
		t.Fatalf("expected floor of 10 agents per cohort, got %d", counts["Team"].NumAgents)
	}
}

func TestCalculateAgentCountsMetaAgents(t *testing.T) {
	counts := CalculateAgentCounts(map[string]int{"Community": 100_000}, MetaAgents)
	cc := counts["Community"]
	if cc.NumAgents != MetaAgentsPerCohort {
		t.Fatalf("expected %d meta agents, got %d", MetaAgentsPerCohort, cc.NumAgents)
	}
	wantWeight := float64(100_000) / float64(MetaAgentsPerCohort)
	if cc.ScalingWeight != wantWeight {
		t.Fatalf("expected scaling weight %v, got %v", wantWeight, cc.ScalingWeight)
	}
}

func TestEstimateHolderCountUsesDensity(t *testing.T) {
	got := EstimateHolderCount("Community", 1_000_000)
	want := 10_000
	if got != want {
		t.Fatalf("expected %d holders, got %d", want, got)
	}
}

func TestEstimateHolderCountMinimumOne(t *testing.T) {
	got := EstimateHolderCount("Team", 1)
	if got < 1 {
		t.Fatalf("expected at least 1 holder, got %d", got)
	}
}
