package interfaces

import (
	"time"

	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

// -----------------------------------------------------------------------------
// IDatabase defines the contract for storage operations.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// IncrementMentionBucket atomically upserts one mention into the
	// (name, bucketStart) counter: creates the bucket with count 1 if absent,
	// increments it by 1 otherwise. Safe under concurrent callers for the
	// same key.
	IncrementMentionBucket(name string, bucketStart time.Time) error

	// -----------------------------------------------------------------------------

	// QueryBucketsSince returns bucket rows with bucket_start >= since,
	// ordered by (name, bucket_start) ascending.
	QueryBucketsSince(since time.Time) ([]models.MBucket, error)

	// -----------------------------------------------------------------------------

	// LastBucketTotals returns the per-candidate sum of counts for buckets
	// with bucket_start >= since. Cheap current-bucket query for the
	// broadcast tick.
	LastBucketTotals(since time.Time) (map[string]int64, error)

	// -----------------------------------------------------------------------------

	// SaveAuxRecord appends one poll or market record.
	SaveAuxRecord(record models.MAuxRecord) error

	// -----------------------------------------------------------------------------

	// LatestAuxRecord returns the most recently inserted record of the given
	// kind, or nil if none exists yet.
	LatestAuxRecord(kind string) (*models.MAuxRecord, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes buckets and aux records older than the
	// retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
