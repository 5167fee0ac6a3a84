// Package simulation runs the month-by-month agent-based simulation loop:
// reset pressures, execute agents concurrently in bounded batches, aggregate
// deterministically, then run the pricing/staking/treasury controllers in
// strict sequence.
package simulation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tokenlab/abm-engine/internal/agent"
	"github.com/tokenlab/abm-engine/internal/market"
	"go.uber.org/zap"
)

const agentBatchSize = 100

// Cancelled is returned by Run when ctx is cancelled at a month boundary.
type Cancelled struct {
	AtMonth int
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("simulation: cancelled at month %d", e.AtMonth)
}

// TickFailure wraps an unrecoverable error from a controller phase, failing
// the whole run.
type TickFailure struct {
	Month int
	Phase string
	Err   error
}

func (e *TickFailure) Error() string {
	return fmt.Sprintf("simulation: tick failure at month %d in phase %s: %v", e.Month, e.Phase, e.Err)
}

func (e *TickFailure) Unwrap() error { return e.Err }

// CohortResult aggregates one cohort's contribution to a tick.
type CohortResult struct {
	Cohort      string
	SellTokens  decimal.Decimal
	StakeTokens decimal.Decimal
	HoldTokens  decimal.Decimal
	NumAgents   int
}

// IterationResult is the per-month output of the simulation loop.
type IterationResult struct {
	MonthIndex        int
	Date              string
	Price             decimal.Decimal
	CirculatingSupply decimal.Decimal
	TotalUnlocked     decimal.Decimal
	TotalSold         decimal.Decimal
	TotalStaked       decimal.Decimal
	TotalHeld         decimal.Decimal
	CohortResults     map[string]CohortResult
}

// Results is the full output of a completed simulation run.
type Results struct {
	GlobalMetrics        []IterationResult
	ExecutionTimeSeconds float64
	Warnings             []string
}

// Engine wires a fixed agent population to one of each controller kind and
// runs the canonical monthly tick. All dependencies are explicit
// constructor parameters: there is no dependency-injection-by-type lookup,
// so a missing wiring is a construction-time error rather than a runtime
// one.
type Engine struct {
	logger *zap.Logger

	agents    []*agent.Agent
	agentByID map[string]string // agent id -> cohort, for cohort aggregation

	market   *market.State
	pricing  market.PricingController
	staking  *market.StakingPool   // optional
	treasury *market.TreasuryController // optional

	startDate         time.Time
	storeCohortDetail bool
}

// Config wires an Engine's dependencies.
type Config struct {
	Logger            *zap.Logger
	Agents            []*agent.Agent
	AgentCohort       map[string]string // agent id -> cohort name
	Market            *market.State
	Pricing           market.PricingController
	Staking           *market.StakingPool
	Treasury          *market.TreasuryController
	StartDate         time.Time
	StoreCohortDetail bool
}

// NewEngine validates and constructs an Engine. Missing required
// dependencies (market, pricing controller) are a construction-time error.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Market == nil {
		return nil, fmt.Errorf("simulation: market state is required")
	}
	if cfg.Pricing == nil {
		return nil, fmt.Errorf("simulation: pricing controller is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		logger:            logger,
		agents:            cfg.Agents,
		agentByID:         cfg.AgentCohort,
		market:            cfg.Market,
		pricing:           cfg.Pricing,
		staking:           cfg.Staking,
		treasury:          cfg.Treasury,
		startDate:         cfg.StartDate,
		storeCohortDetail: cfg.StoreCohortDetail,
	}, nil
}

// ProgressFunc is invoked after each completed month.
type ProgressFunc func(monthsCompleted, totalMonths int)

// Run executes the simulation for the given number of months, returning
// accumulated results. ctx cancellation is observed only at month
// boundaries (cooperative cancellation).
func (e *Engine) Run(ctx context.Context, months int, progress ProgressFunc) (*Results, error) {
	start := time.Now()
	results := make([]IterationResult, 0, months)

	for monthIndex := 0; monthIndex < months; monthIndex++ {
		select {
		case <-ctx.Done():
			return nil, &Cancelled{AtMonth: monthIndex}
		default:
		}

		result, err := e.runIteration(monthIndex)
		if err != nil {
			return nil, err
		}
		results = append(results, result)

		if progress != nil {
			progress(monthIndex+1, months)
		}
	}

	return &Results{
		GlobalMetrics:        results,
		ExecutionTimeSeconds: time.Since(start).Seconds(),
	}, nil
}

func (e *Engine) runIteration(monthIndex int) (IterationResult, error) {
	e.market.ResetMonthlyPressures()

	actions := e.executeAgentsConcurrently()

	totalSell, totalStake, totalHold := decimal.Zero, decimal.Zero, decimal.Zero
	cohortResults := make(map[string]CohortResult)
	for i, a := range actions {
		scaled := decimal.NewFromFloat(a.ScalingWeight)
		sell := a.SellTokens.Mul(scaled)
		stake := a.StakeTokens.Mul(scaled)
		hold := a.HoldTokens.Mul(scaled)

		totalSell = totalSell.Add(sell)
		totalStake = totalStake.Add(stake)
		totalHold = totalHold.Add(hold)

		if e.storeCohortDetail {
			cohort := e.agentByID[a.AgentID]
			cr := cohortResults[cohort]
			cr.Cohort = cohort
			cr.SellTokens = cr.SellTokens.Add(sell)
			cr.StakeTokens = cr.StakeTokens.Add(stake)
			cr.HoldTokens = cr.HoldTokens.Add(hold)
			cr.NumAgents++
			cohortResults[cohort] = cr
		}
		_ = i
	}

	totalUnlock := totalSell.Add(totalStake).Add(totalHold)
	e.market.SetMonthlyPressures(totalSell, totalStake, totalUnlock)

	netSupplyChange := totalSell.Add(totalHold)
	e.market.UpdateCirculatingSupply(netSupplyChange)

	newPrice := e.pricing.Execute(e.market)
	e.market.UpdatePrice(newPrice)
	e.market.RecordTransactionValue(totalSell.Mul(newPrice))

	if e.staking != nil {
		e.staking.Execute(e.market, totalStake)
	}
	if e.treasury != nil {
		e.treasury.Execute(e.market, totalSell, newPrice)
	}

	e.market.IncrementIteration()

	snap := e.market.Snap()
	result := IterationResult{
		MonthIndex:        monthIndex,
		Date:              e.dateFor(monthIndex),
		Price:             snap.Price,
		CirculatingSupply: snap.CirculatingSupply,
		TotalUnlocked:     totalUnlock,
		TotalSold:         totalSell,
		TotalStaked:       totalStake,
		TotalHeld:         totalHold,
	}
	if e.storeCohortDetail {
		result.CohortResults = cohortResults
	}
	return result, nil
}

func (e *Engine) dateFor(monthIndex int) string {
	if e.startDate.IsZero() {
		return ""
	}
	return e.startDate.AddDate(0, 0, 30*monthIndex).Format("2006-01-02")
}

// executeAgentsConcurrently runs agents in bounded batches of agentBatchSize,
// writing each result into a pre-sized, index-addressed slice so
// aggregation is deterministic regardless of goroutine completion order. A
// panicking agent is recovered locally and substituted with a zero action
// (AgentDecisionFailure), never failing the tick.
func (e *Engine) executeAgentsConcurrently() []agent.Action {
	actions := make([]agent.Action, len(e.agents))
	price := e.market.CurrentPrice()

	for batchStart := 0; batchStart < len(e.agents); batchStart += agentBatchSize {
		batchEnd := batchStart + agentBatchSize
		if batchEnd > len(e.agents) {
			batchEnd = len(e.agents)
		}

		var wg sync.WaitGroup
		for i := batchStart; i < batchEnd; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						e.logger.Error("agent decision failed, substituting zero action",
							zap.String("agent_id", e.agents[idx].Attrs.AgentID),
							zap.Any("panic", r),
						)
						actions[idx] = agent.Action{
							AgentID:       e.agents[idx].Attrs.AgentID,
							ScalingWeight: e.agents[idx].Attrs.ScalingWeight,
						}
					}
				}()
				actions[idx] = e.agents[idx].Execute(price)
			}(i)
		}
		wg.Wait()
	}

	return actions
}
