package rag

import "math"

// DefaultSelfRating is assumed when the model gives no self-assessment.
const DefaultSelfRating = 0.7

// Confidence blends retrieval similarity (40%), context coverage (30%) and
// the model's self-rating (30%) into a score in [0,1], rounded to two
// decimals. Coverage saturates at four contexts.
func Confidence(similarities []float64, contextCount int, selfRated float64) float64 {
	var similarityScore float64
	if len(similarities) > 0 {
		var sum float64
		for _, s := range similarities {
			sum += s
		}
		similarityScore = sum / float64(len(similarities))
	}

	coverageScore := math.Min(float64(contextCount)/4, 1)

	if selfRated <= 0 {
		selfRated = DefaultSelfRating
	}

	confidence := similarityScore*0.4 + coverageScore*0.3 + selfRated*0.3
	return math.Round(confidence*100) / 100
}
