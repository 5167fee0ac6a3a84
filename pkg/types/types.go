// Package types provides shared wire types for the token-economy
// simulation engine: the request/response shapes that cross the
// internal/apiserver boundary.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricingModel names a pricing controller variant at the wire boundary,
// mirroring internal/market.PricingModel.
type PricingModel string

const (
	PricingModelEOE           PricingModel = "eoe"
	PricingModelBondingCurve  PricingModel = "bonding_curve"
	PricingModelIssuanceCurve PricingModel = "issuance_curve"
	PricingModelConstant      PricingModel = "constant"
)

// ScalingStrategy names an agent-population scaling strategy at the wire
// boundary, mirroring internal/scaling.Strategy. Empty means adaptive
// (chosen from the configured token holder count).
type ScalingStrategy string

const (
	ScalingFullIndividual        ScalingStrategy = "full_individual"
	ScalingRepresentativeSampling ScalingStrategy = "representative_sampling"
	ScalingMetaAgents            ScalingStrategy = "meta_agents"
)

// BucketRequest is one vesting bucket in a SimulationRequest.
type BucketRequest struct {
	Name            string  `json:"name"`
	TotalAllocation float64 `json:"totalAllocation"`
	TGEPercent      float64 `json:"tgePercent"`
	CliffMonths     int     `json:"cliffMonths"`
	VestingMonths   int     `json:"vestingMonths"`
	Cohort          string  `json:"cohort"`
	HolderCount     int     `json:"holderCount,omitempty"`
}

// SimulationRequest is the external payload submitted to run one ABM
// simulation.
type SimulationRequest struct {
	TotalSupply              float64         `json:"totalSupply"`
	InitialPrice             float64         `json:"initialPrice"`
	InitialCirculatingSupply float64         `json:"initialCirculatingSupply"`
	StartDate                string          `json:"startDate"`
	HorizonMonths            int             `json:"horizonMonths"`
	Seed                     uint64          `json:"seed"`
	PricingModel             PricingModel    `json:"pricingModel"`
	ScalingStrategy          ScalingStrategy `json:"scalingStrategy,omitempty"`
	EnableStaking            bool            `json:"enableStaking"`
	EnableTreasury           bool            `json:"enableTreasury"`
	EnableVolume             bool            `json:"enableVolume"`
	Buckets                  []BucketRequest `json:"buckets"`
}

// MonteCarloRequest wraps a SimulationRequest with trial-level parameters.
type MonteCarloRequest struct {
	Simulation       SimulationRequest `json:"simulation"`
	NumTrials        int               `json:"numTrials"`
	ConfidenceLevels []float64         `json:"confidenceLevels,omitempty"`
	MaxConcurrency   int               `json:"maxConcurrency,omitempty"`
}

// CohortResultResponse is one cohort's aggregated monthly figures.
type CohortResultResponse struct {
	Cohort        string          `json:"cohort"`
	NumAgents     int             `json:"numAgents"`
	SellTokens    decimal.Decimal `json:"sellTokens"`
	StakeTokens   decimal.Decimal `json:"stakeTokens"`
	HoldTokens    decimal.Decimal `json:"holdTokens"`
}

// IterationResultResponse is one simulated month's external payload.
type IterationResultResponse struct {
	MonthIndex        int                              `json:"monthIndex"`
	Date              string                           `json:"date"`
	Price             decimal.Decimal                  `json:"price"`
	CirculatingSupply decimal.Decimal                  `json:"circulatingSupply"`
	TotalUnlocked     decimal.Decimal                  `json:"totalUnlocked"`
	TotalSold         decimal.Decimal                  `json:"totalSold"`
	TotalStaked       decimal.Decimal                  `json:"totalStaked"`
	TotalHeld         decimal.Decimal                  `json:"totalHeld"`
	CohortResults     map[string]CohortResultResponse `json:"cohortResults,omitempty"`
}

// SimulationResponse is the completed result of a single-trial run.
type SimulationResponse struct {
	GlobalMetrics        []IterationResultResponse `json:"globalMetrics"`
	ExecutionTimeSeconds float64                    `json:"executionTimeSeconds"`
	Warnings             []string                   `json:"warnings,omitempty"`
}

// MetricSnapshotResponse is one month's cross-trial aggregate at a given
// percentile or mean.
type MetricSnapshotResponse struct {
	MonthIndex        int     `json:"monthIndex"`
	Price             float64 `json:"price"`
	CirculatingSupply float64 `json:"circulatingSupply"`
	TotalUnlocked     float64 `json:"totalUnlocked"`
	TotalSold         float64 `json:"totalSold"`
	TotalStaked       float64 `json:"totalStaked"`
	TotalHeld         float64 `json:"totalHeld"`
}

// PercentileResponse holds the per-month metric trajectories at one
// requested percentile across all trials.
type PercentileResponse struct {
	Percentile    float64                  `json:"percentile"`
	GlobalMetrics []MetricSnapshotResponse `json:"globalMetrics"`
	FinalPrice    float64                  `json:"finalPrice"`
	TotalSold     float64                  `json:"totalSold"`
}

// SummaryStatisticsResponse summarizes final-state figures across trials.
type SummaryStatisticsResponse struct {
	MeanFinalPrice         float64 `json:"meanFinalPrice"`
	StdFinalPrice          float64 `json:"stdFinalPrice"`
	MinFinalPrice          float64 `json:"minFinalPrice"`
	MaxFinalPrice          float64 `json:"maxFinalPrice"`
	P10FinalPrice          float64 `json:"p10FinalPrice"`
	P50FinalPrice          float64 `json:"p50FinalPrice"`
	P90FinalPrice          float64 `json:"p90FinalPrice"`
	MeanTotalSold          float64 `json:"meanTotalSold"`
	StdTotalSold           float64 `json:"stdTotalSold"`
	CoefficientOfVariation float64 `json:"coefficientOfVariation"`
	MeanMaxDrawdown        float64 `json:"meanMaxDrawdown"`
	WorstMaxDrawdown       float64 `json:"worstMaxDrawdown"`
}

// MonteCarloResponse is the completed result of a Monte Carlo run.
type MonteCarloResponse struct {
	NumTrials            int                      `json:"numTrials"`
	Percentiles          []PercentileResponse     `json:"percentiles"`
	MeanTrajectory       []MetricSnapshotResponse `json:"meanTrajectory"`
	Summary              SummaryStatisticsResponse `json:"summary"`
	ExecutionTimeSeconds float64                   `json:"executionTimeSeconds"`
}

// JobStatusResponse is the external view of one job's lifecycle state.
type JobStatusResponse struct {
	JobID        string     `json:"jobId"`
	Status       string     `json:"status"`
	IsMonteCarlo bool       `json:"isMonteCarlo"`
	CurrentMonth int        `json:"currentMonth"`
	TotalMonths  int        `json:"totalMonths"`
	ProgressPct  float64    `json:"progressPct"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// QueueStatsResponse is the external view of jobs.Stats.
type QueueStatsResponse struct {
	Total     int `json:"total"`
	Running   int `json:"running"`
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}
