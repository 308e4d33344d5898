package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bsouthga/gop-primary-twitter-fun/src/helpers"
	"github.com/bsouthga/gop-primary-twitter-fun/src/interfaces"
	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"

	_ "modernc.org/sqlite"
)

var _ interfaces.IDatabase = (*AsyncSQLiteDB)(nil)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg *models.MConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.Storage.DBPath

	// Open DB
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return &helpers.DatabaseError{TrackerError: helpers.TrackerError{
			Message: "failed to open sqlite database", Cause: err,
		}}
	}

	if err := db.Ping(); err != nil {
		return &helpers.DatabaseError{TrackerError: helpers.TrackerError{
			Message: "sqlite database unreachable", Cause: err,
		}}
	}

	// One pooled connection: writes serialize in the pool instead of
	// surfacing SQLITE_BUSY under concurrent ingest.
	db.SetMaxOpenConns(1)

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	// Buckets survive restarts: the rolling window would otherwise start
	// empty after every deploy. Retention, not recreation, bounds growth.
	query := `
		CREATE TABLE IF NOT EXISTS mention_buckets (
			name TEXT,
			bucket_start INTEGER,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (name, bucket_start)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create mention_buckets: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS aux_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			percentages TEXT NOT NULL,
			observed_at INTEGER,
			inserted_at INTEGER NOT NULL
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create aux_records: %w", err)
	}

	query = `CREATE INDEX IF NOT EXISTS idx_aux_records_kind ON aux_records (kind, id DESC);`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create aux_records index: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) IncrementMentionBucket(name string, bucketStart time.Time) error {
	// Single-statement upsert: the find-and-increment happens inside the
	// engine, so concurrent callers for the same key never lose counts.
	query := `
		INSERT INTO mention_buckets (name, bucket_start, count)
		VALUES (?, ?, 1)
		ON CONFLICT (name, bucket_start) DO UPDATE SET count = count + 1
	`
	_, err := d.DB.Exec(query, name, bucketStart.UTC().Unix())
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) QueryBucketsSince(since time.Time) ([]models.MBucket, error) {
	query := `
		SELECT name, bucket_start, count
		FROM mention_buckets
		WHERE bucket_start >= ?
		ORDER BY name ASC, bucket_start ASC
	`
	rows, err := d.DB.Query(query, since.UTC().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var buckets []models.MBucket
	for rows.Next() {
		var b models.MBucket
		var start int64
		if err := rows.Scan(&b.Name, &start, &b.Count); err != nil {
			return nil, err
		}
		b.BucketStart = time.Unix(start, 0).UTC()
		buckets = append(buckets, b)
	}

	return buckets, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) LastBucketTotals(since time.Time) (map[string]int64, error) {
	query := `
		SELECT name, SUM(count)
		FROM mention_buckets
		WHERE bucket_start >= ?
		GROUP BY name
	`
	rows, err := d.DB.Query(query, since.UTC().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var name string
		var total int64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, err
		}
		totals[name] = total
	}

	return totals, rows.Err()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveAuxRecord(record models.MAuxRecord) error {
	percentages, err := json.Marshal(record.Percentages)
	if err != nil {
		return fmt.Errorf("failed to marshal percentages: %w", err)
	}

	query := `
		INSERT INTO aux_records (kind, percentages, observed_at, inserted_at)
		VALUES (?, ?, ?, ?)
	`
	_, err = d.DB.Exec(query, record.Kind, string(percentages),
		record.ObservedAt.UTC().Unix(), record.InsertedAt.UTC().Unix())
	return err
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) LatestAuxRecord(kind string) (*models.MAuxRecord, error) {
	query := `
		SELECT kind, percentages, observed_at, inserted_at
		FROM aux_records
		WHERE kind = ?
		ORDER BY id DESC
		LIMIT 1
	`
	row := d.DB.QueryRow(query, kind)

	var record models.MAuxRecord
	var percentages string
	var observed, inserted int64
	if err := row.Scan(&record.Kind, &percentages, &observed, &inserted); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if err := json.Unmarshal([]byte(percentages), &record.Percentages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal percentages: %w", err)
	}
	record.ObservedAt = time.Unix(observed, 0).UTC()
	record.InsertedAt = time.Unix(inserted, 0).UTC()

	return &record, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData() error {
	now := time.Now().UTC()

	bucketCutoff := now.Add(-time.Duration(d.Config.BucketRetentionHours) * time.Hour).Unix()
	if _, err := d.DB.Exec("DELETE FROM mention_buckets WHERE bucket_start < ?", bucketCutoff); err != nil {
		d.Logger.Error("Cleanup mention_buckets error: %v", err)
		return err
	}

	auxCutoff := now.Add(-time.Duration(d.Config.External.RetentionHours) * time.Hour).Unix()
	if _, err := d.DB.Exec("DELETE FROM aux_records WHERE inserted_at < ?", auxCutoff); err != nil {
		d.Logger.Error("Cleanup aux_records error: %v", err)
		return err
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
