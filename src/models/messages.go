package models

// -----------------------------------------------------------------------------
// Subscriber protocol messages. Every frame on the wire is an MEnvelope whose
// Data shape depends on Type.
// -----------------------------------------------------------------------------

// Envelope kinds.
const (
	MsgSeries = "series"
	MsgPoint  = "point"
	MsgCount  = "count"
	MsgPoll   = "poll"
	MsgMarket = "market"
	MsgError  = "error"
)

type MEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// MSeriesPayload is sent once per connection, before any point message.
type MSeriesPayload struct {
	SeriesByGranularity map[string][]MSeries `json:"series"`
	SnapshotTime        int64                `json:"snapshot_time"`
}

// MPointPayload carries last-bucket totals per granularity per candidate.
// These are snapshots of the current bucket, not deltas: consumers must
// overwrite by timestamp, never sum.
type MPointPayload struct {
	Totals    map[string]map[string]int64 `json:"totals"`
	Timestamp int64                       `json:"timestamp"`
}

// MCountPayload is broadcast to all subscribers on every join/leave.
type MCountPayload struct {
	Clients int `json:"clients"`
}

// MErrorPayload is broadcast once when the aggregation loop hits a fatal
// condition and stops.
type MErrorPayload struct {
	Message string `json:"message"`
}
