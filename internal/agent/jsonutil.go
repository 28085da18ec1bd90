package agent

import (
	"encoding/json"
	"strings"
)

// decodeLooseJSON unmarshals LLM output into v, tolerating prose around the
// JSON object (models often wrap JSON in markdown fences or commentary). It
// returns false when no parseable object is found; callers then fall back to
// a deterministic default instead of propagating a parse error.
func decodeLooseJSON(raw string, v any) bool {
	if json.Unmarshal([]byte(raw), v) == nil {
		return true
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(raw[start:end+1]), v) == nil
}
