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

	_ "github.com/lib/pq"
)

var _ interfaces.IDatabase = (*PostgresDB)(nil)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) (*PostgresDB, error) {
	return &PostgresDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return &helpers.DatabaseError{TrackerError: helpers.TrackerError{
			Message: "failed to open postgres database", Cause: err,
		}}
	}

	if err := db.Ping(); err != nil {
		return &helpers.DatabaseError{TrackerError: helpers.TrackerError{
			Message: "postgres database unreachable", Cause: err,
		}}
	}

	d.DB = db

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully")
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	query := `
		CREATE TABLE IF NOT EXISTS mention_buckets (
			name TEXT,
			bucket_start BIGINT,
			count BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (name, bucket_start)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create mention_buckets: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS aux_records (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			percentages TEXT NOT NULL,
			observed_at BIGINT,
			inserted_at BIGINT NOT NULL
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

func (d *PostgresDB) IncrementMentionBucket(name string, bucketStart time.Time) error {
	query := `
		INSERT INTO mention_buckets (name, bucket_start, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (name, bucket_start) DO UPDATE SET count = mention_buckets.count + 1
	`
	_, err := d.DB.Exec(query, name, bucketStart.UTC().Unix())
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) QueryBucketsSince(since time.Time) ([]models.MBucket, error) {
	query := `
		SELECT name, bucket_start, count
		FROM mention_buckets
		WHERE bucket_start >= $1
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

func (d *PostgresDB) LastBucketTotals(since time.Time) (map[string]int64, error) {
	query := `
		SELECT name, SUM(count)
		FROM mention_buckets
		WHERE bucket_start >= $1
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

func (d *PostgresDB) SaveAuxRecord(record models.MAuxRecord) error {
	percentages, err := json.Marshal(record.Percentages)
	if err != nil {
		return fmt.Errorf("failed to marshal percentages: %w", err)
	}

	query := `
		INSERT INTO aux_records (kind, percentages, observed_at, inserted_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err = d.DB.Exec(query, record.Kind, string(percentages),
		record.ObservedAt.UTC().Unix(), record.InsertedAt.UTC().Unix())
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LatestAuxRecord(kind string) (*models.MAuxRecord, error) {
	query := `
		SELECT kind, percentages, observed_at, inserted_at
		FROM aux_records
		WHERE kind = $1
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

func (d *PostgresDB) CleanupOldData() error {
	now := time.Now().UTC()

	bucketCutoff := now.Add(-time.Duration(d.Config.BucketRetentionHours) * time.Hour).Unix()
	if _, err := d.DB.Exec("DELETE FROM mention_buckets WHERE bucket_start < $1", bucketCutoff); err != nil {
		d.Logger.Error("Cleanup mention_buckets error: %v", err)
		return err
	}

	auxCutoff := now.Add(-time.Duration(d.Config.External.RetentionHours) * time.Hour).Unix()
	if _, err := d.DB.Exec("DELETE FROM aux_records WHERE inserted_at < $1", auxCutoff); err != nil {
		d.Logger.Error("Cleanup aux_records error: %v", err)
		return err
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
