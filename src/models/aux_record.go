package models

import "time"

// Auxiliary dataset kinds.
const (
	AuxKindPoll   = "poll"
	AuxKindMarket = "market"
)

// MAuxRecord is one appended poll or market observation. Records are
// append-only; the latest insertion wins for the snapshot cache, older rows
// expire via retention.
type MAuxRecord struct {
	Kind        string             `json:"kind"`
	Percentages map[string]float64 `json:"percentages"`
	ObservedAt  time.Time          `json:"observed_at"`
	InsertedAt  time.Time          `json:"inserted_at"`
}
