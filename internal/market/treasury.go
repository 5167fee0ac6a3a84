package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TreasuryConfig configures fee collection and allocation.
type TreasuryConfig struct {
	InitialBalancePct float64 // fraction of total supply seeded as token balance, default 0.15
	TransactionFeePct float64 // fee taken on sell volume, default 0.02
	HoldPct           float64 // default 0.50
	LiquidityPct      float64 // default 0.30
	BuybackPct        float64 // default 0.20
	BurnBoughtTokens  bool    // default true
}

// DefaultTreasuryConfig returns the original implementation's defaults.
func DefaultTreasuryConfig() TreasuryConfig {
	return TreasuryConfig{
		InitialBalancePct: 0.15,
		TransactionFeePct: 0.02,
		HoldPct:           0.50,
		LiquidityPct:      0.30,
		BuybackPct:        0.20,
		BurnBoughtTokens:  true,
	}
}

// TreasuryMetrics summarizes one tick's treasury activity.
type TreasuryMetrics struct {
	FeesCollected     decimal.Decimal
	LiquidityDeployed bool
	LiquidityTokens   decimal.Decimal
	LiquidityFiat     decimal.Decimal
	TokensBought      decimal.Decimal
	TokensBurned      decimal.Decimal
	TokenBalance      decimal.Decimal
	FiatBalance       decimal.Decimal
}

// TreasuryController collects transaction fees and allocates them across
// hold/liquidity/buyback buckets.
type TreasuryController struct {
	cfg TreasuryConfig

	tokenBalance decimal.Decimal
	fiatBalance  decimal.Decimal

	totalFeesCollected      decimal.Decimal
	totalTokensBought       decimal.Decimal
	totalTokensBurned       decimal.Decimal
	liquidityDeployedTokens decimal.Decimal
	liquidityDeployedFiat   decimal.Decimal

	iteration int
}

// NewTreasuryController validates the allocation split sums to 1 (within
// 0.01 tolerance) and builds a TreasuryController sized against
// totalSupply.
func NewTreasuryController(cfg TreasuryConfig, totalSupply decimal.Decimal) (*TreasuryController, error) {
	sum := cfg.HoldPct + cfg.LiquidityPct + cfg.BuybackPct
	if sum < 0.99 || sum > 1.01 {
		return nil, fmt.Errorf("market: treasury allocation split must sum to ~1.0, got %v", sum)
	}
	return &TreasuryController{
		cfg:          cfg,
		tokenBalance: totalSupply.Mul(decimal.NewFromFloat(cfg.InitialBalancePct)),
		fiatBalance:  decimal.Zero,
	}, nil
}

// Execute collects fees on sellVolumeTokens at currentPrice, allocates them,
// deploys liquidity 50/50 when affordable, executes a buyback, and burns
// bought tokens when configured to.
func (t *TreasuryController) Execute(s *State, sellVolumeTokens, currentPrice decimal.Decimal) TreasuryMetrics {
	feesFiat := sellVolumeTokens.Mul(currentPrice).Mul(decimal.NewFromFloat(t.cfg.TransactionFeePct))
	t.fiatBalance = t.fiatBalance.Add(feesFiat)
	t.totalFeesCollected = t.totalFeesCollected.Add(feesFiat)

	holdAmount := feesFiat.Mul(decimal.NewFromFloat(t.cfg.HoldPct))
	liquidityAmount := feesFiat.Mul(decimal.NewFromFloat(t.cfg.LiquidityPct))
	buybackAmount := feesFiat.Mul(decimal.NewFromFloat(t.cfg.BuybackPct))
	_ = holdAmount // held implicitly: it simply stays in fiatBalance

	metrics := TreasuryMetrics{FeesCollected: feesFiat}

	if liquidityAmount.IsPositive() && currentPrice.IsPositive() {
		liquidityFiat := liquidityAmount.Div(decimal.NewFromInt(2))
		liquidityTokens := liquidityFiat.Div(currentPrice)
		if liquidityTokens.LessThanOrEqual(t.tokenBalance) {
			t.tokenBalance = t.tokenBalance.Sub(liquidityTokens)
			t.fiatBalance = t.fiatBalance.Sub(liquidityFiat)
			t.liquidityDeployedTokens = t.liquidityDeployedTokens.Add(liquidityTokens)
			t.liquidityDeployedFiat = t.liquidityDeployedFiat.Add(liquidityFiat)
			metrics.LiquidityDeployed = true
			metrics.LiquidityTokens = liquidityTokens
			metrics.LiquidityFiat = liquidityFiat
		}
	}

	if buybackAmount.IsPositive() && currentPrice.IsPositive() {
		tokensBought := buybackAmount.Div(currentPrice)
		t.fiatBalance = t.fiatBalance.Sub(buybackAmount)
		t.totalTokensBought = t.totalTokensBought.Add(tokensBought)
		metrics.TokensBought = tokensBought

		if t.cfg.BurnBoughtTokens {
			t.totalTokensBurned = t.totalTokensBurned.Add(tokensBought)
			metrics.TokensBurned = tokensBought
			s.UpdateCirculatingSupply(tokensBought.Neg())
		} else {
			t.tokenBalance = t.tokenBalance.Add(tokensBought)
		}
	}

	t.iteration++
	metrics.TokenBalance = t.tokenBalance
	metrics.FiatBalance = t.fiatBalance
	return metrics
}
