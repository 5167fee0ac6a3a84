package market

import "github.com/shopspring/decimal"

// VolumeModel names the demand-volume variant.
type VolumeModel string

const (
	VolumeProportional VolumeModel = "proportional"
	VolumeConstant      VolumeModel = "constant"
)

// VolumeConfig configures a VolumeController.
type VolumeConfig struct {
	Model            VolumeModel
	BaseDailyVolume  float64 // default 10,000,000
	VolumeMultiplier float64 // default 1.0
}

// DefaultVolumeConfig returns the original implementation's defaults.
func DefaultVolumeConfig() VolumeConfig {
	return VolumeConfig{Model: VolumeProportional, BaseDailyVolume: 10_000_000, VolumeMultiplier: 1.0}
}

// VolumeController supplies demand-side fiat volume to EOE pricing.
type VolumeController struct {
	cfg VolumeConfig
}

// NewVolumeController builds a VolumeController.
func NewVolumeController(cfg VolumeConfig) *VolumeController {
	return &VolumeController{cfg: cfg}
}

// Execute computes this tick's demand volume in fiat terms.
func (v *VolumeController) Execute(s *State) decimal.Decimal {
	var volume decimal.Decimal
	switch v.cfg.Model {
	case VolumeConstant:
		volume = decimal.NewFromFloat(v.cfg.BaseDailyVolume * v.cfg.VolumeMultiplier)
	default: // proportional
		snap := s.Snap()
		ratio := 0.0
		if snap.TotalSupply.IsPositive() {
			ratio = snap.CirculatingSupply.Div(snap.TotalSupply).InexactFloat64()
		}
		volume = decimal.NewFromFloat(v.cfg.BaseDailyVolume * ratio * v.cfg.VolumeMultiplier)
	}
	if volume.IsNegative() {
		return decimal.Zero
	}
	return volume
}
