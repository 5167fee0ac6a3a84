// Package config loads the token/buckets/abm/monte_carlo configuration
// sections via spf13/viper, supporting JSON/YAML and environment overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// TokenConfig describes the overall token economy.
type TokenConfig struct {
	TotalSupply              float64 `mapstructure:"total_supply" json:"total_supply"`
	InitialPrice             float64 `mapstructure:"initial_price" json:"initial_price"`
	InitialCirculatingSupply float64 `mapstructure:"initial_circulating_supply" json:"initial_circulating_supply"`
	StartDate                string  `mapstructure:"start_date" json:"start_date"` // "2006-01-02"
}

// BucketConfig describes one allocation bucket's vesting terms and cohort.
type BucketConfig struct {
	Name            string  `mapstructure:"name" json:"name"`
	TotalAllocation float64 `mapstructure:"total_allocation" json:"total_allocation"`
	TGEPercent      float64 `mapstructure:"tge_percent" json:"tge_percent"`
	CliffMonths     int     `mapstructure:"cliff_months" json:"cliff_months"`
	VestingMonths   int     `mapstructure:"vesting_months" json:"vesting_months"`
	Cohort          string  `mapstructure:"cohort" json:"cohort"` // resolves a CohortProfile; falls back to Community
	HolderCount     int     `mapstructure:"holder_count" json:"holder_count"` // 0 means estimate from allocation
}

// EOEConfig mirrors market.EOEConfig's tunables.
type EOEConfig struct {
	HoldingTimeMonths float64 `mapstructure:"holding_time_months" json:"holding_time_months"`
	SmoothingFactor   float64 `mapstructure:"smoothing_factor" json:"smoothing_factor"`
	MinPrice          float64 `mapstructure:"min_price" json:"min_price"`
}

// BondingCurveConfig mirrors market.BondingCurveConfig's tunables.
type BondingCurveConfig struct {
	InitialPrice  float64 `mapstructure:"initial_price" json:"initial_price"`
	InitialSupply float64 `mapstructure:"initial_supply" json:"initial_supply"`
	CurveExponent float64 `mapstructure:"curve_exponent" json:"curve_exponent"`
	MinPrice      float64 `mapstructure:"min_price" json:"min_price"`
}

// IssuanceCurveConfig mirrors market.IssuanceCurveConfig's tunables.
type IssuanceCurveConfig struct {
	InitialPrice float64 `mapstructure:"initial_price" json:"initial_price"`
	MaxSupply    float64 `mapstructure:"max_supply" json:"max_supply"`
	Alpha        float64 `mapstructure:"alpha" json:"alpha"`
	MinPrice     float64 `mapstructure:"min_price" json:"min_price"`
}

// StakingConfig mirrors market.StakingConfig's tunables.
type StakingConfig struct {
	BaseAPY            float64 `mapstructure:"base_apy" json:"base_apy"`
	MaxCapacityPct     float64 `mapstructure:"max_capacity_pct" json:"max_capacity_pct"`
	LockupMonths       int     `mapstructure:"lockup_months" json:"lockup_months"`
	APYMultiplierEmpty float64 `mapstructure:"apy_multiplier_at_empty" json:"apy_multiplier_at_empty"`
	APYMultiplierFull  float64 `mapstructure:"apy_multiplier_at_full" json:"apy_multiplier_at_full"`
}

// TreasuryConfig mirrors market.TreasuryConfig's tunables.
type TreasuryConfig struct {
	InitialBalancePct float64 `mapstructure:"initial_balance_pct" json:"initial_balance_pct"`
	TransactionFeePct float64 `mapstructure:"transaction_fee_pct" json:"transaction_fee_pct"`
	HoldPct           float64 `mapstructure:"hold_pct" json:"hold_pct"`
	LiquidityPct      float64 `mapstructure:"liquidity_pct" json:"liquidity_pct"`
	BuybackPct        float64 `mapstructure:"buyback_pct" json:"buyback_pct"`
	BurnBoughtTokens  bool    `mapstructure:"burn_bought_tokens" json:"burn_bought_tokens"`
}

// VolumeConfig mirrors market.VolumeConfig's tunables.
type VolumeConfig struct {
	Model            string  `mapstructure:"volume_model" json:"volume_model"`
	BaseDailyVolume  float64 `mapstructure:"base_daily_volume" json:"base_daily_volume"`
	VolumeMultiplier float64 `mapstructure:"volume_multiplier" json:"volume_multiplier"`
}

// ABMConfig configures the simulation engine and its controllers.
type ABMConfig struct {
	Seed             uint64               `mapstructure:"seed" json:"seed"`
	HorizonMonths    int                  `mapstructure:"horizon_months" json:"horizon_months"`
	PricingModel     string               `mapstructure:"pricing_model" json:"pricing_model"`
	EOE              EOEConfig            `mapstructure:"eoe" json:"eoe"`
	BondingCurve     BondingCurveConfig   `mapstructure:"bonding_curve" json:"bonding_curve"`
	IssuanceCurve    IssuanceCurveConfig  `mapstructure:"issuance_curve" json:"issuance_curve"`
	ConstantPrice    float64              `mapstructure:"constant_price" json:"constant_price"`
	EnableStaking    bool                 `mapstructure:"enable_staking" json:"enable_staking"`
	Staking          StakingConfig        `mapstructure:"staking" json:"staking"`
	EnableTreasury   bool                 `mapstructure:"enable_treasury" json:"enable_treasury"`
	Treasury         TreasuryConfig       `mapstructure:"treasury" json:"treasury"`
	EnableVolume     bool                 `mapstructure:"enable_volume" json:"enable_volume"`
	Volume           VolumeConfig         `mapstructure:"volume" json:"volume"`
	AgentGranularity string               `mapstructure:"agent_granularity" json:"agent_granularity"` // "" = adaptive
}

// MonteCarloConfig configures a Monte Carlo run layered on top of an ABM
// config.
type MonteCarloConfig struct {
	NumTrials        int       `mapstructure:"num_trials" json:"num_trials"`
	ConfidenceLevels []float64 `mapstructure:"confidence_levels" json:"confidence_levels"`
	MaxConcurrency   int       `mapstructure:"max_concurrency" json:"max_concurrency"`
}

// SimulationConfig is the full, top-level configuration for one simulation
// (or Monte Carlo) run.
type SimulationConfig struct {
	Token      TokenConfig        `mapstructure:"token" json:"token"`
	Buckets    []BucketConfig     `mapstructure:"buckets" json:"buckets"`
	ABM        ABMConfig          `mapstructure:"abm" json:"abm"`
	MonteCarlo *MonteCarloConfig  `mapstructure:"monte_carlo" json:"monte_carlo,omitempty"`
}

// StartDate parses Token.StartDate, defaulting to the Unix epoch if empty or
// malformed.
func (c SimulationConfig) StartDate() time.Time {
	t, err := time.Parse("2006-01-02", c.Token.StartDate)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return t
}

// Load reads a SimulationConfig from path (JSON or YAML, by extension),
// applying ABM_-prefixed environment variable overrides the way viper's
// AutomaticEnv does for the teacher's other services.
func Load(path string) (*SimulationConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ABM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg SimulationConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("abm.pricing_model", "eoe")
	v.SetDefault("abm.eoe.holding_time_months", 6.0)
	v.SetDefault("abm.eoe.smoothing_factor", 0.7)
	v.SetDefault("abm.eoe.min_price", 0.01)
	v.SetDefault("abm.bonding_curve.initial_price", 1.0)
	v.SetDefault("abm.bonding_curve.initial_supply", 1_000_000.0)
	v.SetDefault("abm.bonding_curve.curve_exponent", 2.0)
	v.SetDefault("abm.bonding_curve.min_price", 0.01)
	v.SetDefault("abm.issuance_curve.initial_price", 1.0)
	v.SetDefault("abm.issuance_curve.max_supply", 1_000_000_000.0)
	v.SetDefault("abm.issuance_curve.alpha", 0.5)
	v.SetDefault("abm.issuance_curve.min_price", 0.01)
	v.SetDefault("abm.staking.base_apy", 0.12)
	v.SetDefault("abm.staking.max_capacity_pct", 0.5)
	v.SetDefault("abm.staking.lockup_months", 6)
	v.SetDefault("abm.staking.apy_multiplier_at_empty", 1.5)
	v.SetDefault("abm.staking.apy_multiplier_at_full", 0.5)
	v.SetDefault("abm.treasury.initial_balance_pct", 0.15)
	v.SetDefault("abm.treasury.transaction_fee_pct", 0.02)
	v.SetDefault("abm.treasury.hold_pct", 0.50)
	v.SetDefault("abm.treasury.liquidity_pct", 0.30)
	v.SetDefault("abm.treasury.buyback_pct", 0.20)
	v.SetDefault("abm.treasury.burn_bought_tokens", true)
	v.SetDefault("abm.volume.volume_model", "proportional")
	v.SetDefault("abm.volume.base_daily_volume", 10_000_000.0)
	v.SetDefault("abm.volume.volume_multiplier", 1.0)
	v.SetDefault("monte_carlo.confidence_levels", []float64{10, 50, 90})
	v.SetDefault("monte_carlo.max_concurrency", 8)
}
