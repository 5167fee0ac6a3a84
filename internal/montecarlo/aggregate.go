package montecarlo

import (
	"math"
	"sort"
)

// computePercentiles computes, independently per month and per metric, the
// value at each requested percentile across all trials.
func computePercentiles(trials []Trial, levels []float64) []Percentile {
	if len(trials) == 0 {
		return nil
	}
	numMonths := len(trials[0].GlobalMetrics)

	results := make([]Percentile, 0, len(levels))
	for _, level := range levels {
		snapshots := make([]MetricSnapshot, numMonths)
		for month := 0; month < numMonths; month++ {
			snapshots[month] = MetricSnapshot{
				MonthIndex:        month,
				Price:             percentileAt(extractMonthMetric(trials, month, priceOf), level),
				CirculatingSupply: percentileAt(extractMonthMetric(trials, month, supplyOf), level),
				TotalUnlocked:     percentileAt(extractMonthMetric(trials, month, unlockedOf), level),
				TotalSold:         percentileAt(extractMonthMetric(trials, month, soldOf), level),
				TotalStaked:       percentileAt(extractMonthMetric(trials, month, stakedOf), level),
				TotalHeld:         percentileAt(extractMonthMetric(trials, month, heldOf), level),
			}
		}

		finalPrices := make([]float64, len(trials))
		totalSolds := make([]float64, len(trials))
		for i, tr := range trials {
			finalPrices[i] = tr.FinalPrice
			totalSolds[i] = tr.TotalSold
		}

		results = append(results, Percentile{
			Percentile:    level,
			GlobalMetrics: snapshots,
			FinalPrice:    percentileAt(finalPrices, level),
			TotalSold:     percentileAt(totalSolds, level),
		})
	}
	return results
}

// computeMeanTrajectory computes, independently per month and per metric,
// the mean across all trials.
func computeMeanTrajectory(trials []Trial) []MetricSnapshot {
	if len(trials) == 0 {
		return nil
	}
	numMonths := len(trials[0].GlobalMetrics)
	out := make([]MetricSnapshot, numMonths)
	for month := 0; month < numMonths; month++ {
		out[month] = MetricSnapshot{
			MonthIndex:        month,
			Price:             mean(extractMonthMetric(trials, month, priceOf)),
			CirculatingSupply: mean(extractMonthMetric(trials, month, supplyOf)),
			TotalUnlocked:     mean(extractMonthMetric(trials, month, unlockedOf)),
			TotalSold:         mean(extractMonthMetric(trials, month, soldOf)),
			TotalStaked:       mean(extractMonthMetric(trials, month, stakedOf)),
			TotalHeld:         mean(extractMonthMetric(trials, month, heldOf)),
		}
	}
	return out
}

// computeSummary summarizes the distribution of trial final outcomes.
func computeSummary(trials []Trial) SummaryStatistics {
	if len(trials) == 0 {
		return SummaryStatistics{}
	}
	finalPrices := make([]float64, len(trials))
	totalSolds := make([]float64, len(trials))
	drawdowns := make([]float64, len(trials))
	for i, tr := range trials {
		finalPrices[i] = tr.FinalPrice
		totalSolds[i] = tr.TotalSold
		drawdowns[i] = tr.MaxDrawdown
	}

	meanPrice := mean(finalPrices)
	stdPrice := stddev(finalPrices, meanPrice)
	cv := 0.0
	if meanPrice != 0 {
		cv = stdPrice / meanPrice
	}

	return SummaryStatistics{
		MeanFinalPrice:         meanPrice,
		StdFinalPrice:          stdPrice,
		MinFinalPrice:          minOf(finalPrices),
		MaxFinalPrice:          maxOf(finalPrices),
		P10FinalPrice:          percentileAt(finalPrices, 10),
		P50FinalPrice:          percentileAt(finalPrices, 50),
		P90FinalPrice:          percentileAt(finalPrices, 90),
		MeanTotalSold:          mean(totalSolds),
		StdTotalSold:           stddev(totalSolds, mean(totalSolds)),
		CoefficientOfVariation: cv,
		MeanMaxDrawdown:        mean(drawdowns),
		WorstMaxDrawdown:       maxOf(drawdowns),
	}
}

func priceOf(r metricRow) float64     { return r.Price }
func supplyOf(r metricRow) float64    { return r.CirculatingSupply }
func unlockedOf(r metricRow) float64  { return r.TotalUnlocked }
func soldOf(r metricRow) float64      { return r.TotalSold }
func stakedOf(r metricRow) float64    { return r.TotalStaked }
func heldOf(r metricRow) float64      { return r.TotalHeld }

type metricRow struct {
	Price             float64
	CirculatingSupply float64
	TotalUnlocked     float64
	TotalSold         float64
	TotalStaked       float64
	TotalHeld         float64
}

func extractMonthMetric(trials []Trial, month int, field func(metricRow) float64) []float64 {
	out := make([]float64, 0, len(trials))
	for _, tr := range trials {
		if month >= len(tr.GlobalMetrics) {
			continue
		}
		m := tr.GlobalMetrics[month]
		out = append(out, field(metricRow{
			Price:             m.Price.InexactFloat64(),
			CirculatingSupply: m.CirculatingSupply.InexactFloat64(),
			TotalUnlocked:     m.TotalUnlocked.InexactFloat64(),
			TotalSold:         m.TotalSold.InexactFloat64(),
			TotalStaked:       m.TotalStaked.InexactFloat64(),
			TotalHeld:         m.TotalHeld.InexactFloat64(),
		}))
	}
	return out
}

// percentileAt returns the value at the given percentile (0-100) using
// linear interpolation between closest ranks, matching numpy's default
// percentile method.
func percentileAt(values []float64, percentile float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (percentile / 100.0) * float64(len(sorted)-1)
	lowerIdx := int(math.Floor(rank))
	upperIdx := int(math.Ceil(rank))
	if lowerIdx == upperIdx {
		return sorted[lowerIdx]
	}
	frac := rank - float64(lowerIdx)
	return sorted[lowerIdx]*(1-frac) + sorted[upperIdx]*frac
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, m float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		d := v - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

func minOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
