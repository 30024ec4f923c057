package ytmedia

import (
	"strconv"
	"strings"
)

// parseDurationString converts "3:47" or "1:23:45" to seconds. Returns 0 for
// anything unparseable, which callers treat as unbounded/live.
func parseDurationString(s string) int {
	if s == "" || s == "N/A" {
		return 0
	}

	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}

	return total
}
