package external

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// RCP-style poll feed: a JSON-P body of the form `return_json({...});` whose
// payload carries rolling-average rows per candidate.
// -----------------------------------------------------------------------------

type pollResponse struct {
	Poll struct {
		RcpAvg []pollRow `json:"rcp_avg"`
	} `json:"poll"`
}

type pollRow struct {
	Date      string `json:"date"`
	Candidate []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"candidate"`
}

// -----------------------------------------------------------------------------

// parsePollBody unwraps the JSON-P envelope and extracts the latest rolling
// average as a candidate -> percentage map plus its observation date.
func parsePollBody(body []byte) (map[string]float64, time.Time, error) {
	raw := strings.TrimSpace(string(body))
	raw = strings.TrimPrefix(raw, "return_json(")
	raw = strings.TrimSuffix(raw, ";")
	raw = strings.TrimSuffix(raw, ")")

	var resp pollResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to parse poll body: %w", err)
	}

	if len(resp.Poll.RcpAvg) == 0 {
		return nil, time.Time{}, fmt.Errorf("poll body contains no rolling average rows")
	}

	// The feed lists the newest average first.
	row := resp.Poll.RcpAvg[0]

	percentages := make(map[string]float64, len(row.Candidate))
	for _, c := range row.Candidate {
		value, err := strconv.ParseFloat(strings.TrimSpace(c.Value), 64)
		if err != nil {
			continue
		}
		percentages[c.Name] = value
	}

	if len(percentages) == 0 {
		return nil, time.Time{}, fmt.Errorf("poll row has no parseable percentages")
	}

	observed, err := time.Parse(time.RFC1123, row.Date)
	if err != nil {
		// Some exports use a bare date.
		if observed, err = time.Parse("1/2/2006", row.Date); err != nil {
			observed = time.Now().UTC()
		}
	}

	return percentages, observed.UTC(), nil
}
