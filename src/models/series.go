package models

import "time"

// MSeriesPoint is one reconstructed point of a candidate series. Derived from
// buckets, never persisted.
type MSeriesPoint struct {
	Date  time.Time `json:"date"`
	Value int64     `json:"value"`
}

// MSeries is the ordered-by-time point sequence for one candidate at one
// granularity.
type MSeries struct {
	Name   string         `json:"name"`
	Points []MSeriesPoint `json:"points"`
}
