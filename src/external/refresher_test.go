package external

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsouthga/gop-primary-twitter-fun/src/logger"
	"github.com/bsouthga/gop-primary-twitter-fun/src/models"
)

const pollBody = `return_json({
	"poll": {
		"rcp_avg": [
			{
				"date": "Mon, 01 Feb 2016 00:00:00 GMT",
				"candidate": [
					{"name": "alice", "value": "35.5"},
					{"name": "bob", "value": "22.1"},
					{"name": "carol", "value": "--"}
				]
			},
			{
				"date": "Sun, 31 Jan 2016 00:00:00 GMT",
				"candidate": [{"name": "alice", "value": "34.0"}]
			}
		]
	}
});`

const marketBody = `{
	"table": [
		["alice", "61.2%", "extra"],
		["bob", 21.4],
		["carol", "n/a"]
	],
	"timestamp": "02-01-2016 09:30pm"
}`

// -----------------------------------------------------------------------------

func TestParsePollBody(t *testing.T) {
	percentages, observed, err := parsePollBody([]byte(pollBody))
	require.NoError(t, err)

	// Takes the newest row; unparseable values are skipped.
	assert.Equal(t, map[string]float64{"alice": 35.5, "bob": 22.1}, percentages)
	assert.Equal(t, time.Date(2016, 2, 1, 0, 0, 0, 0, time.UTC), observed)
}

func TestParsePollBodyBareDate(t *testing.T) {
	body := `return_json({"poll":{"rcp_avg":[{"date":"2/1/2016","candidate":[{"name":"alice","value":"10"}]}]}});`
	_, observed, err := parsePollBody([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2016, 2, 1, 0, 0, 0, 0, time.UTC), observed)
}

func TestParsePollBodyRejectsGarbage(t *testing.T) {
	_, _, err := parsePollBody([]byte("<html>rate limited</html>"))
	assert.Error(t, err)

	_, _, err = parsePollBody([]byte(`return_json({"poll":{"rcp_avg":[]}});`))
	assert.Error(t, err)
}

func TestParseMarketBody(t *testing.T) {
	percentages, observed, err := parseMarketBody([]byte(marketBody))
	require.NoError(t, err)

	assert.Equal(t, map[string]float64{"alice": 61.2, "bob": 21.4}, percentages)
	assert.Equal(t, time.Date(2016, 2, 1, 21, 30, 0, 0, time.UTC), observed)
}

func TestParseMarketBodyRejectsEmptyTable(t *testing.T) {
	_, _, err := parseMarketBody([]byte(`{"table": [], "timestamp": ""}`))
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------

// fakeNetwork routes canned responses or failures by URL.
type fakeNetwork struct {
	mu        sync.Mutex
	responses map[string][]byte
	failures  map[string]error
	calls     []string
}

func (f *fakeNetwork) Get(url string, params map[string]string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.failures[url]; ok {
		return nil, err
	}
	return f.responses[url], nil
}

// recordingDB captures saved aux records.
type recordingDB struct {
	mu      sync.Mutex
	records []models.MAuxRecord
}

func (r *recordingDB) Initialize() error                              { return nil }
func (r *recordingDB) IncrementMentionBucket(string, time.Time) error { return nil }
func (r *recordingDB) QueryBucketsSince(time.Time) ([]models.MBucket, error) {
	return nil, nil
}
func (r *recordingDB) LastBucketTotals(time.Time) (map[string]int64, error) {
	return nil, nil
}
func (r *recordingDB) SaveAuxRecord(record models.MAuxRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}
func (r *recordingDB) LatestAuxRecord(string) (*models.MAuxRecord, error) { return nil, nil }
func (r *recordingDB) CleanupOldData() error                              { return nil }
func (r *recordingDB) Close() error                                       { return nil }

func (r *recordingDB) byKind(kind string) []models.MAuxRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.MAuxRecord
	for _, rec := range r.records {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	return out
}

func testConfig() *models.MConfig {
	return &models.MConfig{
		External: models.MExternalConfig{
			PollURL:        "https://polls.test/avg.js",
			MarketURL:      "https://market.test/table.json",
			RefreshMinutes: 60,
		},
	}
}

// -----------------------------------------------------------------------------

func TestRefreshAllSavesBothKinds(t *testing.T) {
	cfg := testConfig()
	net := &fakeNetwork{responses: map[string][]byte{
		cfg.External.PollURL:   []byte(pollBody),
		cfg.External.MarketURL: []byte(marketBody),
	}}
	db := &recordingDB{}

	r := NewRefresher(cfg, net, db, []string{"alice", "bob"}, logger.NewLogger(nil, "test"))
	r.RefreshAll()

	polls := db.byKind(models.AuxKindPoll)
	require.Len(t, polls, 1)
	assert.Equal(t, map[string]float64{"alice": 35.5, "bob": 22.1}, polls[0].Percentages)

	markets := db.byKind(models.AuxKindMarket)
	require.Len(t, markets, 1)
	assert.Equal(t, map[string]float64{"alice": 61.2, "bob": 21.4}, markets[0].Percentages)
}

func TestRefreshAllSourcesAreIndependent(t *testing.T) {
	cfg := testConfig()
	net := &fakeNetwork{
		responses: map[string][]byte{
			cfg.External.MarketURL: []byte(marketBody),
		},
		failures: map[string]error{
			cfg.External.PollURL: errors.New("connection refused"),
		},
	}
	db := &recordingDB{}

	r := NewRefresher(cfg, net, db, []string{"alice", "bob"}, logger.NewLogger(nil, "test"))
	r.RefreshAll()

	// Poll failure never blocks the market record.
	assert.Empty(t, db.byKind(models.AuxKindPoll))
	require.Len(t, db.byKind(models.AuxKindMarket), 1)
}

func TestRefreshFiltersUntrackedCandidates(t *testing.T) {
	cfg := testConfig()
	net := &fakeNetwork{responses: map[string][]byte{
		cfg.External.PollURL:   []byte(pollBody),
		cfg.External.MarketURL: []byte(marketBody),
	}}
	db := &recordingDB{}

	r := NewRefresher(cfg, net, db, []string{"alice"}, logger.NewLogger(nil, "test"))
	r.RefreshAll()

	polls := db.byKind(models.AuxKindPoll)
	require.Len(t, polls, 1)
	assert.Equal(t, map[string]float64{"alice": 35.5}, polls[0].Percentages)
}
