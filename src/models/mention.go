package models

import "time"

// MRawEvent is one item of the upstream firehose: free text plus the moment
// it was observed. Delivery is at-least-once and unordered.
type MRawEvent struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// MBucket is the stored per-candidate, per-minute mention counter.
// At most one row exists per (name, bucket_start); writes are
// increment-upserts, never overwrites.
type MBucket struct {
	Name        string    `json:"name"`
	BucketStart time.Time `json:"bucket_start"`
	Count       int64     `json:"count"`
}
