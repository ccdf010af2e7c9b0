package models

import (
	"fmt"
)

// QueryKind is the closed classification tag assigned to a raw query string.
type QueryKind int

const (
	// ReadSimple is a plain SELECT, and the default for unrecognized text.
	ReadSimple QueryKind = iota
	// SelectAdvanced is a SELECT using joins, grouping, ordering, set operations or aggregates.
	SelectAdvanced
	// Create covers INSERT and CREATE statements.
	Create
	// Update covers UPDATE statements.
	Update
	// Delete covers DELETE and DROP statements.
	Delete
)

// AllQueryKinds lists every kind in declaration order.
var AllQueryKinds = []QueryKind{ReadSimple, SelectAdvanced, Create, Update, Delete}

var queryKindHandlerNames = map[QueryKind]string{
	ReadSimple:     "read",
	SelectAdvanced: "select",
	Create:         "create",
	Update:         "update",
	Delete:         "delete",
}

// String returns the Go-style name of the kind.
func (k QueryKind) String() string {
	switch k {
	case ReadSimple:
		return "ReadSimple"
	case SelectAdvanced:
		return "SelectAdvanced"
	case Create:
		return "Create"
	case Update:
		return "Update"
	case Delete:
		return "Delete"
	default:
		return fmt.Sprintf("QueryKind(%d)", int(k))
	}
}

// HandlerName returns the name of the handler that serves this kind.
func (k QueryKind) HandlerName() string {
	if name, ok := queryKindHandlerNames[k]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether k is one of the declared kinds.
func (k QueryKind) Valid() bool {
	_, ok := queryKindHandlerNames[k]
	return ok
}

// MarshalText encodes the kind as its handler name.
func (k QueryKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid query kind %d", int(k))
	}
	return []byte(k.HandlerName()), nil
}

// UnmarshalText decodes a handler name into a kind.
func (k *QueryKind) UnmarshalText(text []byte) error {
	kind, err := ParseQueryKind(string(text))
	if err != nil {
		return err
	}
	*k = kind
	return nil
}

// ParseQueryKind resolves a handler name to its kind.
func ParseQueryKind(name string) (QueryKind, error) {
	for kind, n := range queryKindHandlerNames {
		if n == name {
			return kind, nil
		}
	}
	return ReadSimple, fmt.Errorf("unknown query kind %q", name)
}

// FeatureSet is the structural summary extracted from query text.
type FeatureSet struct {
	HasAggregation  bool     `json:"hasAggregation" yaml:"hasAggregation"`
	HasGroupBy      bool     `json:"hasGroupBy" yaml:"hasGroupBy"`
	HasHaving       bool     `json:"hasHaving" yaml:"hasHaving"`
	HasJoin         bool     `json:"hasJoin" yaml:"hasJoin"`
	HasUnion        bool     `json:"hasUnion" yaml:"hasUnion"`
	HasDistinct     bool     `json:"hasDistinct" yaml:"hasDistinct"`
	HasSubquery     bool     `json:"hasSubquery" yaml:"hasSubquery"`
	HasWindow       bool     `json:"hasWindow" yaml:"hasWindow"`
	HasOrderBy      bool     `json:"hasOrderBy" yaml:"hasOrderBy"`
	HasComplexWhere bool     `json:"hasComplexWhere" yaml:"hasComplexWhere"`
	OrderByFields   []string `json:"orderByFields,omitempty" yaml:"orderByFields,omitempty"`
}

// ComplexityLevel is the ordinal bucket derived from a weighted feature score.
type ComplexityLevel int

const (
	ComplexitySimple ComplexityLevel = iota
	ComplexityModerate
	ComplexityComplex
	ComplexityVeryComplex
)

func (c ComplexityLevel) String() string {
	switch c {
	case ComplexitySimple:
		return "simple"
	case ComplexityModerate:
		return "moderate"
	case ComplexityComplex:
		return "complex"
	case ComplexityVeryComplex:
		return "very_complex"
	default:
		return "unknown"
	}
}

// MarshalText encodes the level by name.
func (c ComplexityLevel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a level name.
func (c *ComplexityLevel) UnmarshalText(text []byte) error {
	switch string(text) {
	case "simple":
		*c = ComplexitySimple
	case "moderate":
		*c = ComplexityModerate
	case "complex":
		*c = ComplexityComplex
	case "very_complex":
		*c = ComplexityVeryComplex
	default:
		return fmt.Errorf("unknown complexity level %q", string(text))
	}
	return nil
}

// InjectionFinding flags a string literal that looks like an injection payload.
type InjectionFinding struct {
	Literal     string `json:"literal" yaml:"literal"`
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`
}

// Analysis is the full pre-execution verdict for one query text.
type Analysis struct {
	Query      string             `json:"query" yaml:"query"`
	Kind       QueryKind          `json:"kind" yaml:"kind"`
	Features   FeatureSet         `json:"features" yaml:"features"`
	Score      int                `json:"score" yaml:"score"`
	Complexity ComplexityLevel    `json:"complexity" yaml:"complexity"`
	Findings   []InjectionFinding `json:"injectionFindings,omitempty" yaml:"injectionFindings,omitempty"`
}
