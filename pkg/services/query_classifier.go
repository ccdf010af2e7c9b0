// Package services contains business logic implementations.
package services

import (
	"regexp"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/TFMV/sqlgate/pkg/models"
)

// Classifier assigns a QueryKind and FeatureSet to raw query text.
// It holds only compiled patterns and is safe for concurrent use.
// Construct one per process and pass it to the components that need it.
type Classifier struct {
	advancedSelect  []*regexp.Regexp
	aggregationCall *regexp.Regexp
	features        *featurePatterns
}

// NewClassifier compiles all classification patterns.
func NewClassifier() *Classifier {
	return &Classifier{
		advancedSelect: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bJOIN\b`),
			regexp.MustCompile(`(?i)\bGROUP\s+BY\b`),
			regexp.MustCompile(`(?i)\bHAVING\b`),
			regexp.MustCompile(`(?i)\bUNION\b`),
			regexp.MustCompile(`(?i)\bORDER\s+BY\b`),
			regexp.MustCompile(`(?i)\bDISTINCT\b`),
		},
		aggregationCall: regexp.MustCompile(`(?i)\b(COUNT|SUM|AVG|MAX|MIN|GROUP_CONCAT)\s*\(`),
		features:        newFeaturePatterns(),
	}
}

// Classify returns the kind of text. It is total: anything without a
// recognized leading keyword, including empty text, is ReadSimple. Comments
// before the keyword are skipped.
func (c *Classifier) Classify(text string) models.QueryKind {
	return c.classify(maskLiterals(text))
}

func (c *Classifier) classify(q maskedQuery) models.QueryKind {
	upper := strings.ToUpper(strings.TrimSpace(q.masked))

	switch leadingKeyword(q.masked) {
	case "SELECT":
		if anyMatch(c.advancedSelect, upper) || c.aggregationCall.MatchString(upper) {
			return models.SelectAdvanced
		}
		return models.ReadSimple
	case "INSERT", "CREATE":
		return models.Create
	case "UPDATE":
		return models.Update
	case "DELETE", "DROP":
		return models.Delete
	default:
		return models.ReadSimple
	}
}

// Analyze classifies text, extracts its features, scores them and checks
// every string literal for injection payloads.
func (c *Classifier) Analyze(text string) *models.Analysis {
	q := maskLiterals(text)
	features := c.extract(q)
	score, level := Score(features)

	return &models.Analysis{
		Query:      text,
		Kind:       c.classify(q),
		Features:   features,
		Score:      score,
		Complexity: level,
		Findings:   injectionFindings(q.literals),
	}
}

func injectionFindings(literals []string) []models.InjectionFinding {
	var findings []models.InjectionFinding
	for _, lit := range literals {
		if lit == "" {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(lit); isSQLi {
			findings = append(findings, models.InjectionFinding{
				Literal:     lit,
				Fingerprint: string(fingerprint),
			})
		}
	}
	return findings
}
