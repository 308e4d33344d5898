package external

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Prediction-market feed: `{"table": [["Name", "12.3", ...], ...],
// "timestamp": "MM-DD-YYYY hh:mma"}`.
// -----------------------------------------------------------------------------

type marketResponse struct {
	Table     [][]json.RawMessage `json:"table"`
	Timestamp string              `json:"timestamp"`
}

const marketTimeLayout = "01-02-2006 03:04pm"

// -----------------------------------------------------------------------------

// parseMarketBody extracts the candidate -> percentage map and the feed's own
// observation timestamp.
func parseMarketBody(body []byte) (map[string]float64, time.Time, error) {
	var resp marketResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to parse market body: %w", err)
	}

	if len(resp.Table) == 0 {
		return nil, time.Time{}, fmt.Errorf("market body contains no table rows")
	}

	percentages := make(map[string]float64, len(resp.Table))
	for _, row := range resp.Table {
		if len(row) < 2 {
			continue
		}

		var name string
		if err := json.Unmarshal(row[0], &name); err != nil {
			continue
		}

		value, ok := parseCell(row[1])
		if !ok {
			continue
		}
		percentages[name] = value
	}

	if len(percentages) == 0 {
		return nil, time.Time{}, fmt.Errorf("market table has no parseable rows")
	}

	observed, err := time.Parse(marketTimeLayout, resp.Timestamp)
	if err != nil {
		observed = time.Now().UTC()
	}

	return percentages, observed.UTC(), nil
}

// -----------------------------------------------------------------------------

// parseCell accepts either a JSON number or a numeric string, with or without
// a trailing percent sign.
func parseCell(raw json.RawMessage) (float64, bool) {
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, true
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0, false
	}

	str = strings.TrimSuffix(strings.TrimSpace(str), "%")
	number, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, false
	}
	return number, true
}
