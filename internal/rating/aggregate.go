package rating

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Clark-Hu/lopperater/internal/domain"
)

// ComputeAverages returns the per-criterion means of ratings. Overall is the
// mean of each rating's own three-field mean. The result does not depend on
// input order and is not rounded.
func ComputeAverages(ratings []domain.Rating) domain.AverageRatings {
	n := len(ratings)
	if n == 0 {
		return domain.AverageRatings{}
	}
	selection := make([]float64, n)
	friendliness := make([]float64, n)
	creativity := make([]float64, n)
	overall := make([]float64, n)
	for i, r := range ratings {
		selection[i] = r.Selection
		friendliness[i] = r.Friendliness
		creativity[i] = r.Creativity
		overall[i] = r.Scores.Mean()
	}
	count := float64(n)
	return domain.AverageRatings{
		Selection:    sortedSum(selection) / count,
		Friendliness: sortedSum(friendliness) / count,
		Creativity:   sortedSum(creativity) / count,
		Overall:      sortedSum(overall) / count,
	}
}

// OverallMean is the display form of the overall average, rounded to two
// decimals.
func OverallMean(ratings []domain.Rating) float64 {
	overall, _ := decimal.NewFromFloat(ComputeAverages(ratings).Overall).Round(2).Float64()
	return overall
}

// sortedSum adds values in ascending order so any permutation of the input
// produces the same float result. values is sorted in place.
func sortedSum(values []float64) float64 {
	sort.Float64s(values)
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum
}
