// Package wiring is the factory layer that turns a config.SimulationConfig
// into a fully constructed simulation.Engine (agents, market state, and
// pricing/staking/treasury/volume controllers), replacing the
// dependency-injection-by-type lookup of the original implementation with
// explicit, construction-time wiring.
package wiring

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tokenlab/abm-engine/internal/agent"
	"github.com/tokenlab/abm-engine/internal/config"
	"github.com/tokenlab/abm-engine/internal/market"
	"github.com/tokenlab/abm-engine/internal/montecarlo"
	"github.com/tokenlab/abm-engine/internal/scaling"
	"github.com/tokenlab/abm-engine/internal/simulation"
	"github.com/tokenlab/abm-engine/internal/vesting"
)

// BuildEngine constructs a simulation.Engine from cfg: it resolves each
// bucket's holder count, picks an agent-population scaling strategy,
// samples the agent population cohort by cohort, and assembles the market
// state plus whichever controllers cfg.ABM enables.
func BuildEngine(cfg config.SimulationConfig, logger *zap.Logger) (*simulation.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	holderCounts := make(map[string]int, len(cfg.Buckets))
	for _, b := range cfg.Buckets {
		if b.HolderCount > 0 {
			holderCounts[b.Name] = b.HolderCount
		} else {
			holderCounts[b.Name] = scaling.EstimateHolderCount(b.Cohort, b.TotalAllocation)
		}
	}

	totalHolders := 0
	for _, c := range holderCounts {
		totalHolders += c
	}

	strategy := scaling.DetermineStrategy(totalHolders, scaling.Strategy(cfg.ABM.AgentGranularity))
	counts := scaling.CalculateAgentCounts(holderCounts, strategy)

	var agents []*agent.Agent
	agentCohort := make(map[string]string)

	for _, b := range cfg.Buckets {
		profile := agent.ResolveProfile(b.Cohort)
		cohort := agent.NewCohort(b.Name, profile, 0).SeedFor(cfg.ABM.Seed)

		cc := counts[b.Name]
		vestingCfg := vesting.Config{
			TotalAllocation: decimal.NewFromFloat(b.TotalAllocation),
			TGEPercent:      b.TGEPercent,
			CliffMonths:     b.CliffMonths,
			VestingMonths:   b.VestingMonths,
		}

		bucketAgents := cohort.CreateAgents(cc.NumAgents, decimal.NewFromFloat(b.TotalAllocation), vestingCfg, cc.ScalingWeight)
		for _, a := range bucketAgents {
			agentCohort[a.Attrs.AgentID] = b.Cohort
		}
		agents = append(agents, bucketAgents...)
	}

	marketState := market.NewState(market.Config{
		TotalSupply:              decimal.NewFromFloat(cfg.Token.TotalSupply),
		InitialPrice:             decimal.NewFromFloat(cfg.Token.InitialPrice),
		InitialCirculatingSupply: decimal.NewFromFloat(cfg.Token.InitialCirculatingSupply),
	})

	var volume market.VolumeSource
	var volumeController *market.VolumeController
	if cfg.ABM.EnableVolume {
		volumeController = market.NewVolumeController(market.VolumeConfig{
			Model:            market.VolumeModel(cfg.ABM.Volume.Model),
			BaseDailyVolume:  cfg.ABM.Volume.BaseDailyVolume,
			VolumeMultiplier: cfg.ABM.Volume.VolumeMultiplier,
		})
		volume = volumeController
	}

	pricing, err := market.NewPricingController(market.PricingControllerConfig{
		Model: market.PricingModel(cfg.ABM.PricingModel),
		EOE: market.EOEConfig{
			HoldingTimeMonths: cfg.ABM.EOE.HoldingTimeMonths,
			SmoothingFactor:   cfg.ABM.EOE.SmoothingFactor,
			MinPrice:          cfg.ABM.EOE.MinPrice,
		},
		BondingCurve: market.BondingCurveConfig{
			InitialPrice:  cfg.ABM.BondingCurve.InitialPrice,
			InitialSupply: cfg.ABM.BondingCurve.InitialSupply,
			CurveExponent: cfg.ABM.BondingCurve.CurveExponent,
			MinPrice:      cfg.ABM.BondingCurve.MinPrice,
		},
		IssuanceCurve: market.IssuanceCurveConfig{
			InitialPrice: cfg.ABM.IssuanceCurve.InitialPrice,
			MaxSupply:    cfg.ABM.IssuanceCurve.MaxSupply,
			Alpha:        cfg.ABM.IssuanceCurve.Alpha,
			MinPrice:     cfg.ABM.IssuanceCurve.MinPrice,
		},
		ConstantPrice: cfg.ABM.ConstantPrice,
	}, volume)
	if err != nil {
		return nil, fmt.Errorf("wiring: %w", err)
	}

	var staking *market.StakingPool
	if cfg.ABM.EnableStaking {
		staking = market.NewStakingPool(market.StakingConfig{
			BaseAPY:            cfg.ABM.Staking.BaseAPY,
			MaxCapacityPct:     cfg.ABM.Staking.MaxCapacityPct,
			LockupMonths:       cfg.ABM.Staking.LockupMonths,
			APYMultiplierEmpty: cfg.ABM.Staking.APYMultiplierEmpty,
			APYMultiplierFull:  cfg.ABM.Staking.APYMultiplierFull,
		}, decimal.NewFromFloat(cfg.Token.TotalSupply))
	}

	var treasury *market.TreasuryController
	if cfg.ABM.EnableTreasury {
		treasury, err = market.NewTreasuryController(market.TreasuryConfig{
			InitialBalancePct: cfg.ABM.Treasury.InitialBalancePct,
			TransactionFeePct: cfg.ABM.Treasury.TransactionFeePct,
			HoldPct:           cfg.ABM.Treasury.HoldPct,
			LiquidityPct:      cfg.ABM.Treasury.LiquidityPct,
			BuybackPct:        cfg.ABM.Treasury.BuybackPct,
			BurnBoughtTokens:  cfg.ABM.Treasury.BurnBoughtTokens,
		}, decimal.NewFromFloat(cfg.Token.TotalSupply))
		if err != nil {
			return nil, fmt.Errorf("wiring: %w", err)
		}
	}

	return simulation.NewEngine(simulation.Config{
		Logger:            logger,
		Agents:            agents,
		AgentCohort:       agentCohort,
		Market:            marketState,
		Pricing:           pricing,
		Staking:           staking,
		Treasury:          treasury,
		StartDate:         cfg.StartDate(),
		StoreCohortDetail: true,
	})
}

// TrialRunner builds a montecarlo.TrialRunner that constructs a fresh Engine
// per trial (so each trial gets its own independent agent population and
// market state) seeded by the trial's derived seed, and runs it for
// cfg.ABM.HorizonMonths.
func TrialRunner(cfg config.SimulationConfig, logger *zap.Logger) montecarlo.TrialRunner {
	return func(ctx context.Context, trialIndex int, seed uint64) (*simulation.Results, error) {
		trialCfg := cfg
		trialCfg.ABM.Seed = seed

		engine, err := BuildEngine(trialCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("wiring: trial %d: %w", trialIndex, err)
		}
		return engine.Run(ctx, cfg.ABM.HorizonMonths, nil)
	}
}

// JobRunner adapts an Engine run into a jobs.Runner-shaped closure (month
// progress callback, any/error return), for submission to a job queue.
func JobRunner(cfg config.SimulationConfig, logger *zap.Logger) func(ctx context.Context, onProgress func(current, total int)) (any, error) {
	return func(ctx context.Context, onProgress func(current, total int)) (any, error) {
		engine, err := BuildEngine(cfg, logger)
		if err != nil {
			return nil, err
		}
		return engine.Run(ctx, cfg.ABM.HorizonMonths, simulation.ProgressFunc(onProgress))
	}
}
