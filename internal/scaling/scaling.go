// Package scaling decides how many concrete agents a simulation should
// instantiate per cohort, trading fidelity for runtime as holder counts
// grow, and produces the scaling weight each meta-agent stands in for.
package scaling

// Strategy names one of the three agent-population scaling regimes.
type Strategy string

const (
	FullIndividual         Strategy = "full_individual"
	RepresentativeSampling Strategy = "representative_sampling"
	MetaAgents             Strategy = "meta_agents"
)

const (
	FullIndividualThreshold         = 1000
	RepresentativeSamplingThreshold = 10000
	RepresentativeSampleSize        = 1000
	MetaAgentsPerCohort             = 50
)

// DetermineStrategy picks a Strategy for the given total holder count,
// unless forced overrides it.
func DetermineStrategy(totalHolders int, forced Strategy) Strategy {
	if forced != "" {
		return forced
	}
	switch {
	case totalHolders <= FullIndividualThreshold:
		return FullIndividual
	case totalHolders <= RepresentativeSamplingThreshold:
		return RepresentativeSampling
	default:
		return MetaAgents
	}
}

// CohortCount is one cohort's agent-count/scaling-weight allocation.
type CohortCount struct {
	NumAgents     int
	ScalingWeight float64
}

// CalculateAgentCounts maps each cohort's real holder count to a concrete
// agent count and scaling weight, under the given strategy.
func CalculateAgentCounts(cohortHolderCounts map[string]int, strategy Strategy) map[string]CohortCount {
	totalHolders := 0
	for _, count := range cohortHolderCounts {
		totalHolders += count
	}

	result := make(map[string]CohortCount, len(cohortHolderCounts))
	for cohort, count := range cohortHolderCounts {
		switch strategy {
		case FullIndividual:
			result[cohort] = CohortCount{NumAgents: count, ScalingWeight: 1.0}
		case RepresentativeSampling:
			numAgents := RepresentativeSampleSize * count / max(totalHolders, 1)
			if numAgents < 10 {
				numAgents = 10
			}
			weight := float64(count) / float64(numAgents)
			result[cohort] = CohortCount{NumAgents: numAgents, ScalingWeight: weight}
		case MetaAgents:
			weight := float64(count) / float64(MetaAgentsPerCohort)
			result[cohort] = CohortCount{NumAgents: MetaAgentsPerCohort, ScalingWeight: weight}
		default:
			result[cohort] = CohortCount{NumAgents: count, ScalingWeight: 1.0}
		}
	}
	return result
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// holderDensity estimates holders-per-token for buckets without an explicit
// holder count, matching the original implementation's coarse heuristic.
var holderDensity = map[string]float64{
	"Team":      0.0001,
	"VC":        0.0001,
	"Advisors":  0.0002,
	"Investors": 0.001,
	"Community": 0.01,
	"Public":    0.02,
}

const defaultHolderDensity = 0.001

// EstimateHolderCount derives an approximate holder count for a bucket from
// its token allocation when no explicit count is configured.
func EstimateHolderCount(bucketName string, tokensAllocated float64) int {
	density, ok := holderDensity[bucketName]
	if !ok {
		density = defaultHolderDensity
	}
	estimated := int(tokensAllocated * density)
	if estimated < 1 {
		return 1
	}
	return estimated
}
