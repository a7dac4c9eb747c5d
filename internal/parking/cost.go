package parking

import "math"

// CostBreakdown is the travel-time estimate for one selected candidate.
type CostBreakdown struct {
	CarMinutes    float64  `json:"carMinutes"`
	WalkMinutes   float64  `json:"walkMinutes"`
	SearchMinutes *float64 `json:"searchMinutes"`
	TotalMinutes  float64  `json:"totalMinutes"`
}

// SavingsResult is the time saved against the cohort average, in whole minutes.
type SavingsResult struct {
	SavedMinutes int `json:"savedMinutes"`
}

// Verdict compares a candidate against the cohort.
type Verdict string

const (
	VerdictFaster  Verdict = "FASTER"
	VerdictSlower  Verdict = "SLOWER"
	VerdictAverage Verdict = "AVERAGE"
)

// SearchComparison compares a candidate's search delay with the cohort average.
type SearchComparison struct {
	AverageMinutes int     `json:"averageMinutes"`
	DiffMinutes    int     `json:"diffMinutes"`
	Verdict        Verdict `json:"verdict"`
}

// TripComparison compares the full trip with the same trip at the average search delay.
type TripComparison struct {
	AverageTotalMinutes int     `json:"averageTotalMinutes"`
	DiffMinutes         int     `json:"diffMinutes"`
	Verdict             Verdict `json:"verdict"`
}

// CohortAverage returns the mean known search delay over candidates,
// or nil when no candidate has one. Duplicates are counted as given.
func CohortAverage(candidates []Candidate) *float64 {
	var sum float64
	n := 0
	for _, c := range candidates {
		if d := c.Delay(); d != nil {
			sum += *d
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// Combine builds the cost breakdown for a car leg, a walk leg and a search delay.
// An unknown delay stays nil in the breakdown and only counts as zero in the total.
func Combine(car, walk RouteLeg, delayMinutes *float64) CostBreakdown {
	b := CostBreakdown{
		CarMinutes:    car.Minutes(),
		WalkMinutes:   walk.Minutes(),
		SearchMinutes: normalize(delayMinutes),
	}
	b.TotalMinutes = b.CarMinutes + b.WalkMinutes
	if b.SearchMinutes != nil {
		b.TotalMinutes += *b.SearchMinutes
	}
	return b
}

// Savings returns the minutes saved compared with parking at the average delay.
// It is nil unless both the breakdown's search delay and the average are known.
func Savings(b CostBreakdown, cohortAverage *float64) *SavingsResult {
	avgTotal, ok := averageTotal(b, cohortAverage)
	if !ok {
		return nil
	}
	return &SavingsResult{SavedMinutes: int(math.Round(avgTotal - b.TotalMinutes))}
}

// CompareSearch compares a search delay with the cohort average.
func CompareSearch(delayMinutes, cohortAverage *float64) *SearchComparison {
	d := normalize(delayMinutes)
	avg := normalize(cohortAverage)
	if d == nil || avg == nil {
		return nil
	}
	diff := int(math.Round(*avg - *d))
	return &SearchComparison{
		AverageMinutes: int(math.Round(*avg)),
		DiffMinutes:    diff,
		Verdict:        verdictFor(diff),
	}
}

// CompareTrip compares the whole trip with the cohort-average trip.
// DiffMinutes always equals Savings(b, cohortAverage).SavedMinutes.
func CompareTrip(b CostBreakdown, cohortAverage *float64) *TripComparison {
	avgTotal, ok := averageTotal(b, cohortAverage)
	if !ok {
		return nil
	}
	diff := int(math.Round(avgTotal - b.TotalMinutes))
	return &TripComparison{
		AverageTotalMinutes: int(math.Round(avgTotal)),
		DiffMinutes:         diff,
		Verdict:             verdictFor(diff),
	}
}

func averageTotal(b CostBreakdown, cohortAverage *float64) (float64, bool) {
	avg := normalize(cohortAverage)
	if avg == nil || normalize(b.SearchMinutes) == nil {
		return 0, false
	}
	return *avg + b.CarMinutes + b.WalkMinutes, true
}

func verdictFor(diff int) Verdict {
	switch {
	case diff > 0:
		return VerdictFaster
	case diff < 0:
		return VerdictSlower
	default:
		return VerdictAverage
	}
}
