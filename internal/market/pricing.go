package market

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// PricingModel names the pricing controller variant to construct.
type PricingModel string

const (
	PricingEOE           PricingModel = "eoe"
	PricingBondingCurve  PricingModel = "bonding_curve"
	PricingIssuanceCurve PricingModel = "issuance_curve"
	PricingConstant      PricingModel = "constant"
)

// PricingController computes next tick's price from the current state.
type PricingController interface {
	Execute(s *State) decimal.Decimal
}

// VolumeSource supplies demand-side fiat volume to EOE pricing, decoupled
// from any concrete VolumeController implementation.
type VolumeSource interface {
	Execute(s *State) decimal.Decimal
}

// EOEConfig configures the equation-of-exchange controller.
type EOEConfig struct {
	HoldingTimeMonths float64 // average holding time in months, default 6
	SmoothingFactor   float64 // exponential smoothing alpha, default 0.7
	MinPrice          float64 // floor price, default 0.01
}

// DefaultEOEConfig returns the original implementation's defaults.
func DefaultEOEConfig() EOEConfig {
	return EOEConfig{HoldingTimeMonths: 6.0, SmoothingFactor: 0.7, MinPrice: 0.01}
}

// EOEController implements price = demand_fiat / (supply * velocity), with
// exponential smoothing against the previous price.
type EOEController struct {
	cfg      EOEConfig
	velocity float64
	volume   VolumeSource // optional; nil means sell-pressure-based demand
}

// NewEOEController builds an EOE controller. volume may be nil.
func NewEOEController(cfg EOEConfig, volume VolumeSource) *EOEController {
	velocity := 0.0
	if cfg.HoldingTimeMonths > 0 {
		velocity = 12.0 / cfg.HoldingTimeMonths
	}
	return &EOEController{cfg: cfg, velocity: velocity, volume: volume}
}

// SetVolumeController attaches a demand-side volume source after
// construction, mirroring the original wiring where pricing and volume
// controllers are linked once both exist.
func (c *EOEController) SetVolumeController(v VolumeSource) {
	c.volume = v
}

// Execute computes the next price.
func (c *EOEController) Execute(s *State) decimal.Decimal {
	snap := s.Snap()

	var demandFiat decimal.Decimal
	if c.volume != nil {
		demandFiat = c.volume.Execute(s)
	} else {
		demandFiat = snap.TotalSellPressure.Mul(snap.Price)
	}

	oldPrice := snap.Price
	var rawPrice decimal.Decimal
	if snap.CirculatingSupply.IsPositive() && c.velocity > 0 {
		denom := snap.CirculatingSupply.Mul(decimal.NewFromFloat(c.velocity))
		rawPrice = demandFiat.Div(denom)
	} else {
		rawPrice = oldPrice
	}

	alpha := decimal.NewFromFloat(c.cfg.SmoothingFactor)
	smoothed := oldPrice.Mul(alpha).Add(rawPrice.Mul(decimal.NewFromFloat(1).Sub(alpha)))

	floor := decimal.NewFromFloat(c.cfg.MinPrice)
	if smoothed.LessThan(floor) {
		return floor
	}
	return smoothed
}

// BondingCurveConfig configures price = k * supply^exponent.
type BondingCurveConfig struct {
	InitialPrice   float64
	InitialSupply  float64
	CurveExponent  float64
	MinPrice       float64
}

// DefaultBondingCurveConfig returns the original defaults.
func DefaultBondingCurveConfig() BondingCurveConfig {
	return BondingCurveConfig{InitialPrice: 1.0, InitialSupply: 1_000_000, CurveExponent: 2.0, MinPrice: 0.01}
}

// BondingCurveController implements price = k * supply^n, k fixed at
// construction so that price(InitialSupply) == InitialPrice.
type BondingCurveController struct {
	cfg BondingCurveConfig
	k   float64
}

// NewBondingCurveController builds a bonding curve controller.
func NewBondingCurveController(cfg BondingCurveConfig) *BondingCurveController {
	k := 0.0
	if cfg.InitialSupply > 0 {
		k = cfg.InitialPrice / math.Pow(cfg.InitialSupply, cfg.CurveExponent)
	}
	return &BondingCurveController{cfg: cfg, k: k}
}

// Execute computes the curve price for current supply.
func (c *BondingCurveController) Execute(s *State) decimal.Decimal {
	supply := s.Snap().CirculatingSupply.InexactFloat64()
	price := c.cfg.MinPrice
	if supply > 0 {
		price = c.k * math.Pow(supply, c.cfg.CurveExponent)
	}
	if price < c.cfg.MinPrice {
		price = c.cfg.MinPrice
	}
	return decimal.NewFromFloat(price)
}

// IssuanceCurveConfig configures price = P0 * (1 + supply/maxSupply)^alpha.
type IssuanceCurveConfig struct {
	InitialPrice float64
	MaxSupply    float64
	Alpha        float64
	MinPrice     float64
}

// DefaultIssuanceCurveConfig returns the original defaults.
func DefaultIssuanceCurveConfig() IssuanceCurveConfig {
	return IssuanceCurveConfig{InitialPrice: 1.0, MaxSupply: 1_000_000_000, Alpha: 0.5, MinPrice: 0.01}
}

// IssuanceCurveController implements a monotone issuance-based price curve.
type IssuanceCurveController struct {
	cfg IssuanceCurveConfig
}

// NewIssuanceCurveController builds an issuance curve controller.
func NewIssuanceCurveController(cfg IssuanceCurveConfig) *IssuanceCurveController {
	return &IssuanceCurveController{cfg: cfg}
}

// Execute computes the issuance-curve price for current supply.
func (c *IssuanceCurveController) Execute(s *State) decimal.Decimal {
	supply := s.Snap().CirculatingSupply.InexactFloat64()
	ratio := 0.0
	if c.cfg.MaxSupply > 0 {
		ratio = supply / c.cfg.MaxSupply
	}
	price := c.cfg.InitialPrice * math.Pow(1+ratio, c.cfg.Alpha)
	if price < c.cfg.MinPrice {
		price = c.cfg.MinPrice
	}
	return decimal.NewFromFloat(price)
}

// ConstantController always returns a fixed price.
type ConstantController struct {
	price decimal.Decimal
}

// NewConstantController builds a fixed-price controller.
func NewConstantController(price float64) *ConstantController {
	return &ConstantController{price: decimal.NewFromFloat(price)}
}

// Execute returns the fixed price, ignoring market state.
func (c *ConstantController) Execute(s *State) decimal.Decimal {
	return c.price
}

// PricingControllerConfig is the tagged-union config used by the factory.
type PricingControllerConfig struct {
	Model          PricingModel
	EOE            EOEConfig
	BondingCurve   BondingCurveConfig
	IssuanceCurve  IssuanceCurveConfig
	ConstantPrice  float64
}

// NewPricingController constructs the pricing controller named by cfg.Model.
func NewPricingController(cfg PricingControllerConfig, volume VolumeSource) (PricingController, error) {
	switch cfg.Model {
	case PricingEOE, "":
		return NewEOEController(cfg.EOE, volume), nil
	case PricingBondingCurve:
		return NewBondingCurveController(cfg.BondingCurve), nil
	case PricingIssuanceCurve:
		return NewIssuanceCurveController(cfg.IssuanceCurve), nil
	case PricingConstant:
		return NewConstantController(cfg.ConstantPrice), nil
	default:
		return nil, fmt.Errorf("market: unknown pricing model %q", cfg.Model)
	}
}
