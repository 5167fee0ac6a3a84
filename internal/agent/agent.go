package agent

import (
	"github.com/shopspring/decimal"
	"github.com/tokenlab/abm-engine/internal/vesting"
)

// Attributes are the sampled, immutable-after-creation behavioral
// parameters of one agent.
type Attributes struct {
	AgentID              string
	Cohort               string
	RiskTolerance        float64
	HoldTimePreference   float64 // sampled, kept for profile compatibility, unused in decisions
	PriceSensitivity     float64
	StakingPropensity    float64
	AllocationTokens     decimal.Decimal
	SellPressureBase     float64
	CliffShockMultiplier float64
	TakeProfitThreshold  float64
	StopLossThreshold    float64
	ScalingWeight        float64
}

// Action is the outcome of one agent's monthly decision, scaled by the
// agent's ScalingWeight for aggregation.
type Action struct {
	AgentID       string
	SellTokens    decimal.Decimal
	StakeTokens   decimal.Decimal
	HoldTokens    decimal.Decimal
	ScalingWeight float64
}

const priceHistoryCap = 12

// Agent is one simulated token holder: its immutable attributes plus its
// mutable per-month balance state.
type Agent struct {
	Attrs Attributes

	vesting *vesting.Schedule

	UnlockedBalance decimal.Decimal
	LockedBalance   decimal.Decimal
	StakedBalance   decimal.Decimal
	SoldCumulative  decimal.Decimal

	priceHistory []float64
	initialPrice float64
	hasInitial   bool

	iteration int
}

// NewAgent builds an Agent from sampled attributes and its own vesting
// schedule.
func NewAgent(attrs Attributes, schedule *vesting.Schedule) *Agent {
	return &Agent{
		Attrs:           attrs,
		vesting:         schedule,
		UnlockedBalance: decimal.Zero,
		LockedBalance:   attrs.AllocationTokens,
		StakedBalance:   decimal.Zero,
		SoldCumulative:  decimal.Zero,
	}
}

// Execute advances the agent one month given the current market price, and
// returns the resulting action. It never returns an error: any invariant
// violation here would be a programming bug, not a runtime condition the
// simulation needs to recover from (the engine's AgentDecisionFailure
// recovery applies to panics during this call, not to Execute itself).
func (a *Agent) Execute(currentPrice decimal.Decimal) Action {
	isCliffMonth := a.vesting.IsCliffMonth()
	newlyUnlocked := a.vesting.AdvanceMonth()
	a.UnlockedBalance = a.UnlockedBalance.Add(newlyUnlocked)
	a.LockedBalance = a.vesting.RemainingLocked()

	priceF := currentPrice.InexactFloat64()
	if !a.hasInitial {
		a.initialPrice = priceF
		a.hasInitial = true
	}
	a.priceHistory = append(a.priceHistory, priceF)
	if len(a.priceHistory) > priceHistoryCap {
		a.priceHistory = a.priceHistory[len(a.priceHistory)-priceHistoryCap:]
	}

	sellAmount := a.decideSellAmount(priceF, newlyUnlocked, isCliffMonth)
	stakeAmount := decimal.Zero
	remainingAfterSell := a.UnlockedBalance.Sub(sellAmount)
	if remainingAfterSell.IsPositive() {
		stakeAmount = remainingAfterSell.Mul(decimal.NewFromFloat(a.Attrs.StakingPropensity))
	}

	a.UnlockedBalance = a.UnlockedBalance.Sub(sellAmount).Sub(stakeAmount)
	a.StakedBalance = a.StakedBalance.Add(stakeAmount)
	a.SoldCumulative = a.SoldCumulative.Add(sellAmount)

	a.iteration++

	return Action{
		AgentID:       a.Attrs.AgentID,
		SellTokens:    sellAmount,
		StakeTokens:   stakeAmount,
		HoldTokens:    a.UnlockedBalance,
		ScalingWeight: a.Attrs.ScalingWeight,
	}
}

func (a *Agent) decideSellAmount(price float64, newlyUnlocked decimal.Decimal, isCliffMonth bool) decimal.Decimal {
	baseSell := newlyUnlocked.Mul(decimal.NewFromFloat(a.Attrs.SellPressureBase))

	priceFactor := a.priceTriggerFactor(price)
	cliffFactor := 1.0
	if isCliffMonth {
		cliffFactor = a.Attrs.CliffShockMultiplier
	}
	riskMod := clip(1+(a.Attrs.RiskTolerance-0.5)*0.5, 0.5, 1.5)

	multiplier := priceFactor * cliffFactor * riskMod
	sell := baseSell.Mul(decimal.NewFromFloat(multiplier))

	if sell.IsNegative() {
		sell = decimal.Zero
	}
	if sell.GreaterThan(a.UnlockedBalance) {
		sell = a.UnlockedBalance
	}
	return sell
}

func (a *Agent) priceTriggerFactor(price float64) float64 {
	if a.initialPrice == 0 {
		return 1.0
	}
	changeFromInitial := (price - a.initialPrice) / a.initialPrice
	switch {
	case changeFromInitial > a.Attrs.TakeProfitThreshold:
		return 1 + 0.2*a.Attrs.PriceSensitivity
	case changeFromInitial < a.Attrs.StopLossThreshold:
		return 1 + 0.3*a.Attrs.PriceSensitivity
	default:
		return 1.0
	}
}
