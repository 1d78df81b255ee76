package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Key composes a cache key from an endpoint and its query parameters.
// Parameters are sorted so the same request always maps to the same key.
func Key(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	for i, k := range keys {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		fmt.Fprintf(&b, "%s=%s", k, params[k])
	}
	return b.String()
}

// DayKey builds the per-competition, per-day key used for fixture lists,
// e.g. "epl_2024-01-01".
func DayKey(code string, day time.Time) string {
	return strings.ToLower(strings.TrimSpace(code)) + "_" + day.Format(time.DateOnly)
}
