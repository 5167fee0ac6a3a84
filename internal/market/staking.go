package market

import "github.com/shopspring/decimal"

// StakingConfig configures a StakingPool.
type StakingConfig struct {
	BaseAPY             float64 // default 0.12
	MaxCapacityPct      float64 // fraction of total supply stakeable, default 0.5
	LockupMonths        int     // default 6
	APYMultiplierEmpty  float64 // multiplier applied at 0% utilization, default 1.5
	APYMultiplierFull   float64 // multiplier applied at 100% utilization, default 0.5
}

// DefaultStakingConfig returns the original implementation's defaults.
func DefaultStakingConfig() StakingConfig {
	return StakingConfig{
		BaseAPY:            0.12,
		MaxCapacityPct:     0.5,
		LockupMonths:       6,
		APYMultiplierEmpty: 1.5,
		APYMultiplierFull:  0.5,
	}
}

type stakeLock struct {
	amount         decimal.Decimal
	lockedUntil    int
	apyAtLockTime  float64
}

// StakingPool accepts new stake, locks it for LockupMonths, and pays out
// rewards computed at the APY captured at lock time.
type StakingPool struct {
	cfg         StakingConfig
	maxCapacity decimal.Decimal
	totalStaked decimal.Decimal
	locks       []stakeLock
	iteration   int
}

// NewStakingPool builds a StakingPool sized against totalSupply.
func NewStakingPool(cfg StakingConfig, totalSupply decimal.Decimal) *StakingPool {
	return &StakingPool{
		cfg:         cfg,
		maxCapacity: totalSupply.Mul(decimal.NewFromFloat(cfg.MaxCapacityPct)),
		totalStaked: decimal.Zero,
	}
}

// RemainingCapacity returns how much more can be staked before hitting the
// pool's capacity.
func (p *StakingPool) RemainingCapacity() decimal.Decimal {
	remaining := p.maxCapacity.Sub(p.totalStaked)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// UtilizationPct returns staked/capacity as a percentage (0-100).
func (p *StakingPool) UtilizationPct() float64 {
	if p.maxCapacity.IsZero() {
		return 0
	}
	return p.totalStaked.Div(p.maxCapacity).InexactFloat64() * 100
}

// CurrentAPY returns the APY implied by current utilization, linearly
// interpolated between the empty and full multipliers.
func (p *StakingPool) CurrentAPY() float64 {
	utilization := 0.0
	if p.maxCapacity.IsPositive() {
		utilization = p.totalStaked.Div(p.maxCapacity).InexactFloat64()
	}
	if utilization > 1 {
		utilization = 1
	}
	multiplier := p.cfg.APYMultiplierEmpty*(1-utilization) + p.cfg.APYMultiplierFull*utilization
	return p.cfg.BaseAPY * multiplier
}

// StakingMetrics summarizes one tick's staking activity.
type StakingMetrics struct {
	NewStaked        decimal.Decimal
	RejectedStake    decimal.Decimal
	UnlockedPrincipal decimal.Decimal
	RewardsPaid      decimal.Decimal
	TotalStaked      decimal.Decimal
	CurrentAPY       float64
	UtilizationPct   float64
}

// Execute accepts newStake (capped by remaining capacity; any excess is
// reported as rejected but not returned to the caller), releases stakes
// whose lockup has expired paying rewards at their lock-time APY, and
// credits principal+rewards back into circulating supply via market.
func (p *StakingPool) Execute(s *State, newStakeAmount decimal.Decimal) StakingMetrics {
	actualStaked := newStakeAmount
	remaining := p.RemainingCapacity()
	if actualStaked.GreaterThan(remaining) {
		actualStaked = remaining
	}
	rejected := newStakeAmount.Sub(actualStaked)

	if actualStaked.IsPositive() {
		apy := p.CurrentAPY()
		p.locks = append(p.locks, stakeLock{
			amount:        actualStaked,
			lockedUntil:   p.iteration + p.cfg.LockupMonths,
			apyAtLockTime: apy,
		})
		p.totalStaked = p.totalStaked.Add(actualStaked)
	}

	var unlockedPrincipal, rewardsPaid decimal.Decimal
	kept := p.locks[:0]
	for _, lock := range p.locks {
		if lock.lockedUntil <= p.iteration {
			rewards := lock.amount.
				Mul(decimal.NewFromFloat(lock.apyAtLockTime / 12.0)).
				Mul(decimal.NewFromInt(int64(p.cfg.LockupMonths)))
			unlockedPrincipal = unlockedPrincipal.Add(lock.amount)
			rewardsPaid = rewardsPaid.Add(rewards)
			p.totalStaked = p.totalStaked.Sub(lock.amount)
		} else {
			kept = append(kept, lock)
		}
	}
	p.locks = kept

	if unlockedPrincipal.IsPositive() || rewardsPaid.IsPositive() {
		s.UpdateCirculatingSupply(unlockedPrincipal.Add(rewardsPaid))
	}

	p.iteration++

	return StakingMetrics{
		NewStaked:         actualStaked,
		RejectedStake:     rejected,
		UnlockedPrincipal: unlockedPrincipal,
		RewardsPaid:       rewardsPaid,
		TotalStaked:       p.totalStaked,
		CurrentAPY:        p.CurrentAPY(),
		UtilizationPct:    p.UtilizationPct(),
	}
}
