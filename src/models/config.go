package models

// MConfig Structure
type MConfig struct {
	Name       string            `yaml:"name"`
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	LogLevel   string            `yaml:"log_level"`
	Storage    MStorageConfig    `yaml:"storage"`
	Network    MNetworkConfig    `yaml:"network"`
	Stream     MStreamConfig     `yaml:"stream"`
	External   MExternalConfig   `yaml:"external"`
	Cache      MCacheConfig      `yaml:"cache"`
	Broadcast  MBroadcastConfig  `yaml:"broadcast"`
	Candidates []MCandidate      `yaml:"candidates"`
	// Series granularities served to subscribers, e.g. ["minute", "hour"].
	Granularities []string `yaml:"granularities"`
	// Buckets older than this are deleted by retention cleanup. Must cover
	// the longest granularity lookback or hourly series silently lose data.
	BucketRetentionHours int `yaml:"bucket_retention_hours"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	Enabled            bool     `yaml:"enabled"`
	Proxies            []string `yaml:"proxies"`
	RequestTimeout     int      `yaml:"timeout"`
	MaxRetries         int      `yaml:"retries"`
	ConcurrentRequests int      `yaml:"concurrent_requests"`
	UserAgent          string   `yaml:"user_agent"`
}

type MStreamConfig struct {
	URL               string `yaml:"url"`
	ReconnectAttempts int    `yaml:"reconnect_attempts"`
	ReconnectDelaySec int    `yaml:"reconnect_delay_seconds"`
}

type MExternalConfig struct {
	PollURL        string `yaml:"poll_url"`
	MarketURL      string `yaml:"market_url"`
	RefreshMinutes int    `yaml:"refresh_minutes"`
	RetentionHours int    `yaml:"retention_hours"`
}

type MCacheConfig struct {
	RefreshSeconds int `yaml:"refresh_seconds"`
}

type MBroadcastConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}
