package market

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestStatePriceFloor(t *testing.T) {
	s := NewState(Config{
		TotalSupply:              decimal.NewFromInt(1_000_000),
		InitialPrice:             decimal.NewFromFloat(1.0),
		InitialCirculatingSupply: decimal.NewFromInt(100_000),
	})
	s.UpdatePrice(decimal.NewFromFloat(0.0001))
	if !s.CurrentPrice().Equal(minPrice) {
		t.Fatalf("expected price floored at %s, got %s", minPrice, s.CurrentPrice())
	}
}

func TestStateSupplyFloor(t *testing.T) {
	s := NewState(Config{
		TotalSupply:              decimal.NewFromInt(1_000_000),
		InitialPrice:             decimal.NewFromFloat(1.0),
		InitialCirculatingSupply: decimal.NewFromInt(100),
	})
	s.UpdateCirculatingSupply(decimal.NewFromInt(-1000))
	if !s.Snap().CirculatingSupply.IsZero() {
		t.Fatalf("expected circulating supply floored at 0, got %s", s.Snap().CirculatingSupply)
	}
}

func TestEOEPricingStaysAboveFloor(t *testing.T) {
	s := NewState(Config{
		TotalSupply:              decimal.NewFromInt(10_000_000),
		InitialPrice:             decimal.NewFromFloat(1.0),
		InitialCirculatingSupply: decimal.NewFromInt(1_000_000),
	})
	s.SetMonthlyPressures(decimal.NewFromInt(50_000), decimal.NewFromInt(20_000), decimal.NewFromInt(100_000))

	controller := NewEOEController(DefaultEOEConfig(), nil)
	price := controller.Execute(s)
	if price.LessThan(minPrice) {
		t.Fatalf("expected price above floor, got %s", price)
	}
}

func TestBondingCurveMatchesInitialPoint(t *testing.T) {
	cfg := DefaultBondingCurveConfig()
	controller := NewBondingCurveController(cfg)
	s := NewState(Config{
		TotalSupply:              decimal.NewFromInt(10_000_000),
		InitialPrice:             decimal.NewFromFloat(1.0),
		InitialCirculatingSupply: decimal.NewFromFloat(cfg.InitialSupply),
	})
	price := controller.Execute(s)
	diff := price.Sub(decimal.NewFromFloat(cfg.InitialPrice)).Abs()
	if diff.GreaterThan(decimal.NewFromFloat(0.0001)) {
		t.Fatalf("expected price ~%v at initial supply, got %s", cfg.InitialPrice, price)
	}
}

func TestStakingAPYInterpolation(t *testing.T) {
	cfg := DefaultStakingConfig()
	pool := NewStakingPool(cfg, decimal.NewFromInt(1_000_000)) // capacity = 500,000

	emptyAPY := pool.CurrentAPY()
	if emptyAPY <= cfg.BaseAPY {
		t.Fatalf("expected empty-pool APY above base APY, got %v", emptyAPY)
	}

	s := NewState(Config{TotalSupply: decimal.NewFromInt(1_000_000), InitialPrice: decimal.NewFromFloat(1.0)})
	pool.Execute(s, decimal.NewFromInt(500_000)) // fill to capacity

	fullAPY := pool.CurrentAPY()
	if fullAPY >= emptyAPY {
		t.Fatalf("expected full-pool APY below empty-pool APY, got %v vs %v", fullAPY, emptyAPY)
	}
}

func TestStakingRejectsExcessWithoutReturning(t *testing.T) {
	pool := NewStakingPool(DefaultStakingConfig(), decimal.NewFromInt(1_000_000)) // capacity 500,000
	s := NewState(Config{TotalSupply: decimal.NewFromInt(1_000_000), InitialPrice: decimal.NewFromFloat(1.0)})

	metrics := pool.Execute(s, decimal.NewFromInt(600_000))
	if !metrics.NewStaked.Equal(decimal.NewFromInt(500_000)) {
		t.Fatalf("expected 500000 staked, got %s", metrics.NewStaked)
	}
	if !metrics.RejectedStake.Equal(decimal.NewFromInt(100_000)) {
		t.Fatalf("expected 100000 rejected, got %s", metrics.RejectedStake)
	}
}

func TestStakingRewardsUseLockTimeAPY(t *testing.T) {
	cfg := DefaultStakingConfig()
	cfg.LockupMonths = 2
	pool := NewStakingPool(cfg, decimal.NewFromInt(1_000_000))
	s := NewState(Config{TotalSupply: decimal.NewFromInt(1_000_000), InitialPrice: decimal.NewFromFloat(1.0)})

	lockAPY := pool.CurrentAPY()
	pool.Execute(s, decimal.NewFromInt(100_000))
	// Stake heavily to change current APY before unlock, so we can verify
	// rewards used the APY captured at lock time, not the now-current one.
	pool.Execute(s, decimal.NewFromInt(300_000))
	metrics := pool.Execute(s, decimal.Zero)

	expectedRewards := decimal.NewFromInt(100_000).
		Mul(decimal.NewFromFloat(lockAPY / 12.0)).
		Mul(decimal.NewFromInt(int64(cfg.LockupMonths)))
	if !metrics.RewardsPaid.Equal(expectedRewards) {
		t.Fatalf("expected rewards %s using lock-time APY, got %s", expectedRewards, metrics.RewardsPaid)
	}
}

func TestTreasuryBurnScenario(t *testing.T) {
	cfg := TreasuryConfig{
		InitialBalancePct: 0.15,
		TransactionFeePct: 0.10,
		HoldPct:           0.0,
		LiquidityPct:      0.0,
		BuybackPct:        1.0,
		BurnBoughtTokens:  true,
	}
	treasury, err := NewTreasuryController(cfg, decimal.NewFromInt(10_000_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := NewState(Config{
		TotalSupply:              decimal.NewFromInt(10_000_000),
		InitialPrice:             decimal.NewFromFloat(1.0),
		InitialCirculatingSupply: decimal.NewFromInt(10_000_000),
	})

	// sellVolume * price * feePct = 5,000,000 * 1.0 * 0.10 = 500,000 fees.
	metrics := treasury.Execute(s, decimal.NewFromInt(5_000_000), decimal.NewFromFloat(1.0))
	if !metrics.FeesCollected.Equal(decimal.NewFromInt(500_000)) {
		t.Fatalf("expected fees 500000, got %s", metrics.FeesCollected)
	}
	if !metrics.TokensBought.Equal(decimal.NewFromInt(500_000)) {
		t.Fatalf("expected tokens_bought 500000, got %s", metrics.TokensBought)
	}
	if !metrics.TokensBurned.Equal(decimal.NewFromInt(500_000)) {
		t.Fatalf("expected tokens_burned 500000, got %s", metrics.TokensBurned)
	}

	expectedSupply := decimal.NewFromInt(10_000_000).Sub(decimal.NewFromInt(500_000))
	if !s.Snap().CirculatingSupply.Equal(expectedSupply) {
		t.Fatalf("expected circulating supply %s after burn, got %s", expectedSupply, s.Snap().CirculatingSupply)
	}
}

func TestTreasuryRejectsBadSplit(t *testing.T) {
	cfg := DefaultTreasuryConfig()
	cfg.HoldPct = 0.9
	_, err := NewTreasuryController(cfg, decimal.NewFromInt(1_000_000))
	if err == nil {
		t.Fatalf("expected error for allocation split not summing to 1")
	}
}

func TestVolumeControllerProportional(t *testing.T) {
	s := NewState(Config{
		TotalSupply:              decimal.NewFromInt(1_000_000),
		InitialPrice:             decimal.NewFromFloat(1.0),
		InitialCirculatingSupply: decimal.NewFromInt(500_000),
	})
	vc := NewVolumeController(VolumeConfig{Model: VolumeProportional, BaseDailyVolume: 1_000_000, VolumeMultiplier: 1.0})
	got := vc.Execute(s)
	if !got.Equal(decimal.NewFromInt(500_000)) {
		t.Fatalf("expected 500000 (half supply ratio), got %s", got)
	}
}
