package services

import "github.com/TFMV/sqlgate/pkg/models"

// Feature weights for the complexity score.
const (
	weightAggregation  = 2
	weightGroupBy      = 2
	weightJoin         = 3
	weightSubquery     = 3
	weightHaving       = 2
	weightUnion        = 3
	weightWindow       = 4
	weightDistinct     = 1
	weightOrderBy      = 1
	weightComplexWhere = 1
)

// Score sums the weights of the flags set in f and buckets the total.
// The score is informational and never gates dispatch.
func Score(f models.FeatureSet) (int, models.ComplexityLevel) {
	score := 0
	add := func(set bool, weight int) {
		if set {
			score += weight
		}
	}

	add(f.HasAggregation, weightAggregation)
	add(f.HasGroupBy, weightGroupBy)
	add(f.HasJoin, weightJoin)
	add(f.HasSubquery, weightSubquery)
	add(f.HasHaving, weightHaving)
	add(f.HasUnion, weightUnion)
	add(f.HasWindow, weightWindow)
	add(f.HasDistinct, weightDistinct)
	add(f.HasOrderBy, weightOrderBy)
	add(f.HasComplexWhere, weightComplexWhere)

	return score, LevelForScore(score)
}

// LevelForScore maps a numeric score to its complexity bucket.
func LevelForScore(score int) models.ComplexityLevel {
	switch {
	case score <= 0:
		return models.ComplexitySimple
	case score <= 3:
		return models.ComplexityModerate
	case score <= 6:
		return models.ComplexityComplex
	default:
		return models.ComplexityVeryComplex
	}
}
