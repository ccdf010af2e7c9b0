package services

import (
	"regexp"

	"github.com/TFMV/sqlgate/pkg/models"
)

// featurePatterns holds the compiled detectors run against masked query text.
type featurePatterns struct {
	aggregations []*regexp.Regexp
	groupBy      *regexp.Regexp
	having       *regexp.Regexp
	join         *regexp.Regexp
	union        *regexp.Regexp
	distinct     *regexp.Regexp
	subquery     *regexp.Regexp
	window       *regexp.Regexp
	orderBy      *regexp.Regexp

	orderByClause *regexp.Regexp
	whereClause   *regexp.Regexp
	complexWhere  []*regexp.Regexp
}

func newFeaturePatterns() *featurePatterns {
	return &featurePatterns{
		aggregations: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bCOUNT\s*\(\s*\*\s*\)`),
			regexp.MustCompile(`(?i)\bCOUNT\s*\(\s*DISTINCT\s+[\w.]+\s*\)`),
			regexp.MustCompile(`(?i)\bCOUNT\s*\(\s*[\w.]+\s*\)`),
			regexp.MustCompile(`(?i)\b(SUM|AVG|MAX|MIN)\s*\(\s*[\w.]+\s*\)`),
			regexp.MustCompile(`(?i)\bGROUP_CONCAT\s*\(`),
		},
		groupBy:  regexp.MustCompile(`(?i)\bGROUP\s+BY\b`),
		having:   regexp.MustCompile(`(?i)\bHAVING\b`),
		join:     regexp.MustCompile(`(?i)\bJOIN\b`),
		union:    regexp.MustCompile(`(?i)\bUNION\b`),
		distinct: regexp.MustCompile(`(?i)\bSELECT\s+DISTINCT\b`),
		subquery: regexp.MustCompile(`(?i)\(\s*SELECT\b`),
		window:   regexp.MustCompile(`(?i)\bOVER\s*\(`),
		orderBy:  regexp.MustCompile(`(?i)\bORDER\s+BY\b`),

		orderByClause: regexp.MustCompile(`(?is)\bORDER\s+BY\s+(.+?)(?:\s+LIMIT\b|\s*;|\s*$)`),
		whereClause:   regexp.MustCompile(`(?is)\bWHERE\s+(.+?)(?:\s+GROUP\b|\s+ORDER\b|\s+LIMIT\b|\s*;|\s*$)`),
		complexWhere: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bIN\s*\(`),
			regexp.MustCompile(`(?i)\bBETWEEN\b`),
			regexp.MustCompile(`(?i)\bLIKE\b`),
			regexp.MustCompile(`(?i)\bIS\s+NULL\b`),
			regexp.MustCompile(`(?i)\bIS\s+NOT\s+NULL\b`),
			regexp.MustCompile(`(?i)\bEXISTS\b`),
			regexp.MustCompile(`(?i)\(\s*SELECT\s`),
		},
	}
}

// ExtractFeatures scans text for structural features. Quoted literals never
// contribute a feature. It never fails; unparseable text yields an empty set.
func (c *Classifier) ExtractFeatures(text string) models.FeatureSet {
	return c.extract(maskLiterals(text))
}

func (c *Classifier) extract(q maskedQuery) models.FeatureSet {
	p := c.features
	s := q.masked

	f := models.FeatureSet{
		HasAggregation: anyMatch(p.aggregations, s),
		HasGroupBy:     p.groupBy.MatchString(s),
		HasHaving:      p.having.MatchString(s),
		HasJoin:        p.join.MatchString(s),
		HasUnion:       p.union.MatchString(s),
		HasDistinct:    p.distinct.MatchString(s),
		HasSubquery:    p.subquery.MatchString(s),
		HasWindow:      p.window.MatchString(s),
		HasOrderBy:     p.orderBy.MatchString(s),
	}

	if f.HasOrderBy {
		if loc := p.orderByClause.FindStringSubmatchIndex(s); loc != nil {
			f.OrderByFields = splitTopLevel(q.slice(loc[2], loc[3]))
		}
	}

	if loc := p.whereClause.FindStringSubmatchIndex(s); loc != nil {
		f.HasComplexWhere = anyMatch(p.complexWhere, s[loc[2]:loc[3]])
	}

	return f
}

func anyMatch(patterns []*regexp.Regexp, s string) bool {
	for _, re := range patterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
