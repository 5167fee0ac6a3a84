// Package agent implements heterogeneous token-holder agents sampled from
// per-cohort statistical profiles, and the behavior those agents execute
// once per simulated month.
package agent

import (
	"math/rand/v2"

	"github.com/shopspring/decimal"
	"github.com/tokenlab/abm-engine/internal/vesting"
	"gonum.org/v1/gonum/stat/distuv"
	exprand "golang.org/x/exp/rand"
)

// Profile parameterizes the statistical distributions a cohort samples its
// agents' behavioral attributes from.
type Profile struct {
	RiskAlpha, RiskBeta             float64
	HoldTimeShape, HoldTimeScale    float64
	SellPressureMean, SellPressureStd float64
	PriceSensAlpha, PriceSensBeta   float64
	StakeAlpha, StakeBeta           float64
	CliffShockMultiplier            float64
	TakeProfitThreshold             float64
	StopLossThreshold               float64
}

// DefaultProfile is a generic base profile. ResolveProfile does not use it:
// unrecognized cohorts fall back to the Community profile.
func DefaultProfile() Profile {
	return Profile{
		RiskAlpha: 2.0, RiskBeta: 2.0,
		HoldTimeShape: 2.0, HoldTimeScale: 6.0,
		SellPressureMean: 0.25, SellPressureStd: 0.05,
		PriceSensAlpha: 2.0, PriceSensBeta: 2.0,
		StakeAlpha: 3.0, StakeBeta: 7.0,
		CliffShockMultiplier: 2.0,
		TakeProfitThreshold:  0.5,
		StopLossThreshold:    -0.3,
	}
}

// DefaultCohortProfiles holds the named cohort overrides of DefaultProfile,
// matching the original implementation's per-cohort tuning.
func DefaultCohortProfiles() map[string]Profile {
	return map[string]Profile{
		"Team": {
			RiskAlpha: 2, RiskBeta: 8,
			HoldTimeShape: 2, HoldTimeScale: 12,
			SellPressureMean: 0.10, SellPressureStd: 0.03,
			PriceSensAlpha: 2, PriceSensBeta: 8,
			StakeAlpha: 6, StakeBeta: 4,
			CliffShockMultiplier: 1.5,
			TakeProfitThreshold:  0.5,
			StopLossThreshold:    -0.3,
		},
		"VC": {
			RiskAlpha: 5, RiskBeta: 5,
			HoldTimeShape: 1.5, HoldTimeScale: 6,
			SellPressureMean: 0.40, SellPressureStd: 0.10,
			PriceSensAlpha: 6, PriceSensBeta: 4,
			StakeAlpha: 3, StakeBeta: 7,
			CliffShockMultiplier: 3.0,
			TakeProfitThreshold:  0.5,
			StopLossThreshold:    -0.3,
		},
		"Community": {
			RiskAlpha: 5, RiskBeta: 3,
			HoldTimeShape: 2, HoldTimeScale: 4,
			SellPressureMean: 0.25, SellPressureStd: 0.08,
			PriceSensAlpha: 5, PriceSensBeta: 5,
			StakeAlpha: 4, StakeBeta: 6,
			CliffShockMultiplier: 2.0,
			TakeProfitThreshold:  0.5,
			StopLossThreshold:    -0.3,
		},
		"Investors": {
			RiskAlpha: 6, RiskBeta: 4,
			HoldTimeShape: 2, HoldTimeScale: 8,
			SellPressureMean: 0.30, SellPressureStd: 0.08,
			PriceSensAlpha: 7, PriceSensBeta: 3,
			StakeAlpha: 5, StakeBeta: 5,
			CliffShockMultiplier: 2.5,
			TakeProfitThreshold:  0.5,
			StopLossThreshold:    -0.3,
		},
		"Advisors": {
			RiskAlpha: 3, RiskBeta: 7,
			HoldTimeShape: 2, HoldTimeScale: 10,
			SellPressureMean: 0.20, SellPressureStd: 0.05,
			PriceSensAlpha: 4, PriceSensBeta: 6,
			StakeAlpha: 4, StakeBeta: 6,
			CliffShockMultiplier: 1.8,
			TakeProfitThreshold:  0.5,
			StopLossThreshold:    -0.3,
		},
	}
}

// ResolveProfile looks up a named cohort's profile, falling back to the
// Community profile for unrecognized bucket/cohort names (matching the
// original's conservative default).
func ResolveProfile(cohortName string) Profile {
	profiles := DefaultCohortProfiles()
	if p, ok := profiles[cohortName]; ok {
		return p
	}
	return profiles["Community"]
}

// Cohort samples a named population of agents from a Profile using a
// seeded, reproducible source.
type Cohort struct {
	Name    string
	Profile Profile
	seed    uint64
}

// NewCohort builds a Cohort. seed must be derived deterministically (see
// SeedFor, which internal/wiring uses) so repeated runs with the same base
// seed produce identical populations.
func NewCohort(name string, profile Profile, seed uint64) *Cohort {
	return &Cohort{Name: name, Profile: profile, seed: seed}
}

// CreateAgents builds numAgents agents splitting totalAllocation evenly,
// each with its own vesting schedule cloned from vestingCfg, tagged with
// scalingWeight for meta-agent aggregation.
func (c *Cohort) CreateAgents(numAgents int, totalAllocation decimal.Decimal, vestingCfg vesting.Config, scalingWeight float64) []*Agent {
	if numAgents <= 0 {
		return nil
	}

	src := exprand.NewSource(c.seed)
	riskDist := distuv.Beta{Alpha: c.Profile.RiskAlpha, Beta: c.Profile.RiskBeta, Src: src}
	holdDist := distuv.Gamma{Alpha: c.Profile.HoldTimeShape, Beta: 1.0 / c.Profile.HoldTimeScale, Src: src}
	sellDist := distuv.Normal{Mu: c.Profile.SellPressureMean, Sigma: c.Profile.SellPressureStd, Src: src}
	priceSensDist := distuv.Beta{Alpha: c.Profile.PriceSensAlpha, Beta: c.Profile.PriceSensBeta, Src: src}
	stakeDist := distuv.Beta{Alpha: c.Profile.StakeAlpha, Beta: c.Profile.StakeBeta, Src: src}

	perAgentAllocation := totalAllocation.Div(decimal.NewFromInt(int64(numAgents)))

	agents := make([]*Agent, 0, numAgents)
	for i := 0; i < numAgents; i++ {
		attrs := Attributes{
			AgentID:              id(c.Name, i),
			Cohort:               c.Name,
			RiskTolerance:        riskDist.Rand(),
			HoldTimePreference:   holdDist.Rand(),
			PriceSensitivity:     priceSensDist.Rand(),
			StakingPropensity:    clip(stakeDist.Rand(), 0, 1),
			AllocationTokens:     perAgentAllocation,
			SellPressureBase:     clip(sellDist.Rand(), 0, 1),
			CliffShockMultiplier: c.Profile.CliffShockMultiplier,
			TakeProfitThreshold:  c.Profile.TakeProfitThreshold,
			StopLossThreshold:    c.Profile.StopLossThreshold,
			ScalingWeight:        scalingWeight,
		}
		agents = append(agents, NewAgent(attrs, vesting.NewSchedule(vesting.Config{
			TotalAllocation: perAgentAllocation,
			TGEPercent:      vestingCfg.TGEPercent,
			CliffMonths:     vestingCfg.CliffMonths,
			VestingMonths:   vestingCfg.VestingMonths,
		})))
	}
	return agents
}

func id(cohort string, index int) string {
	return cohort + "-" + itoa(index)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// deterministicU64 derives a uint64 seed from a base seed and a name, so a
// cohort's population is reproducible given the run's base seed without
// requiring the caller to pre-enumerate per-cohort seeds.
func deterministicU64(baseSeed uint64, name string) uint64 {
	h := rand.NewPCG(baseSeed, fnv1a(name))
	r := rand.New(h)
	return r.Uint64()
}

func fnv1a(s string) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= 1099511628211
	}
	return h
}

// SeedFor derives this cohort's deterministic RNG seed from a run's base
// seed, and returns a new Cohort carrying it.
func (c *Cohort) SeedFor(baseSeed uint64) *Cohort {
	return &Cohort{Name: c.Name, Profile: c.Profile, seed: deterministicU64(baseSeed, c.Name)}
}
