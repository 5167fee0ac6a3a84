package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tokenlab/abm-engine/internal/agent"
	"github.com/tokenlab/abm-engine/internal/market"
	"github.com/tokenlab/abm-engine/internal/vesting"
	"go.uber.org/zap"
)

func buildTeamAgents(t *testing.T, n int) ([]*agent.Agent, map[string]string) {
	t.Helper()
	profile := agent.DefaultCohortProfiles()["Team"]
	cohort := agent.NewCohort("Team", profile, 42)
	vcfg := vesting.Config{TotalAllocation: decimal.NewFromInt(1_000_000), TGEPercent: 0, CliffMonths: 12, VestingMonths: 24}
	agents := cohort.CreateAgents(n, decimal.NewFromInt(1_000_000), vcfg, 1.0)
	byID := make(map[string]string, n)
	for _, a := range agents {
		byID[a.Attrs.AgentID] = "Team"
	}
	return agents, byID
}

func TestEngineRunsFullHorizon(t *testing.T) {
	agents, byID := buildTeamAgents(t, 20)
	state := market.NewState(market.Config{
		TotalSupply:              decimal.NewFromInt(10_000_000),
		InitialPrice:             decimal.NewFromFloat(1.0),
		InitialCirculatingSupply: decimal.Zero,
	})
	pricing := market.NewConstantController(1.0)

	engine, err := NewEngine(Config{
		Logger:            zap.NewNop(),
		Agents:            agents,
		AgentCohort:       byID,
		Market:            state,
		Pricing:           pricing,
		StartDate:         time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		StoreCohortDetail: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	results, err := engine.Run(context.Background(), 36, nil)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if len(results.GlobalMetrics) != 36 {
		t.Fatalf("expected 36 iterations, got %d", len(results.GlobalMetrics))
	}

	last := results.GlobalMetrics[35]
	if last.CohortResults["Team"].NumAgents != 20 {
		t.Fatalf("expected 20 team agents in cohort results, got %d", last.CohortResults["Team"].NumAgents)
	}
}

func TestEngineTracksHeldTokensAndGrowsCirculatingSupply(t *testing.T) {
	agents, byID := buildTeamAgents(t, 20)
	state := market.NewState(market.Config{
		TotalSupply:              decimal.NewFromInt(10_000_000),
		InitialPrice:             decimal.NewFromFloat(1.0),
		InitialCirculatingSupply: decimal.Zero,
	})
	engine, err := NewEngine(Config{
		Agents:      agents,
		AgentCohort: byID,
		Market:      state,
		Pricing:     market.NewConstantController(1.0),
		StartDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Team vesting cliffs at month 12: unlocked tokens accrue with nothing
	// sold or staked yet, so TotalHeld must be positive and the circulating
	// supply must grow by the held amount, not just the sold amount.
	results, err := engine.Run(context.Background(), 13, nil)
	if err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}

	last := results.GlobalMetrics[12]
	if !last.TotalHeld.IsPositive() {
		t.Fatalf("expected positive TotalHeld after cliff unlock, got %s", last.TotalHeld)
	}

	sum := last.TotalSold.Add(last.TotalStaked).Add(last.TotalHeld)
	if !sum.Equal(last.TotalUnlocked) {
		t.Fatalf("expected TotalUnlocked %s to equal sold+staked+held %s", last.TotalUnlocked, sum)
	}

	snap := state.Snap()
	if !snap.CirculatingSupply.GreaterThanOrEqual(last.TotalHeld) {
		t.Fatalf("expected circulating supply %s to have grown by at least the held amount %s", snap.CirculatingSupply, last.TotalHeld)
	}
}

func TestEngineRequiresMarketAndPricing(t *testing.T) {
	if _, err := NewEngine(Config{}); err == nil {
		t.Fatalf("expected error when market and pricing are missing")
	}
}

func TestEngineCooperativeCancellation(t *testing.T) {
	agents, byID := buildTeamAgents(t, 5)
	state := market.NewState(market.Config{TotalSupply: decimal.NewFromInt(1_000_000), InitialPrice: decimal.NewFromFloat(1.0)})
	engine, err := NewEngine(Config{
		Agents:      agents,
		AgentCohort: byID,
		Market:      state,
		Pricing:     market.NewConstantController(1.0),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = engine.Run(ctx, 12, nil)
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
	if _, ok := err.(*Cancelled); !ok {
		t.Fatalf("expected *Cancelled, got %T", err)
	}
}
