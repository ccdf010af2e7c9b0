package models

import "time"

// MaxHistoryEntries bounds the persisted history log.
const MaxHistoryEntries = 50

// HistoryKey is the durable key the history snapshot is stored under.
const HistoryKey = "queryHistory"

// HistoryFeatures is the reduced feature tag set kept with each entry.
type HistoryFeatures struct {
	OrderBy  bool `json:"orderBy" yaml:"orderBy"`
	Distinct bool `json:"distinct" yaml:"distinct"`
	GroupBy  bool `json:"groupBy" yaml:"groupBy"`
	Having   bool `json:"having" yaml:"having"`
	Join     bool `json:"join" yaml:"join"`
}

// HistoryFeaturesOf reduces a feature set to the tags stored in history.
func HistoryFeaturesOf(f FeatureSet) HistoryFeatures {
	return HistoryFeatures{
		OrderBy:  f.HasOrderBy,
		Distinct: f.HasDistinct,
		GroupBy:  f.HasGroupBy,
		Having:   f.HasHaving,
		Join:     f.HasJoin,
	}
}

// HistoryEntry is one recorded query attempt.
type HistoryEntry struct {
	ID        string          `json:"id" yaml:"id"`
	Query     string          `json:"query" yaml:"query"`
	Database  string          `json:"database" yaml:"database"`
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
	Success   bool            `json:"success" yaml:"success"`
	Type      QueryKind       `json:"type" yaml:"type"`
	Features  HistoryFeatures `json:"features" yaml:"features"`
}
