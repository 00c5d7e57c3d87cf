package internal

import (
	"strconv"
	"strings"
	"time"
)

// isExpired reports whether an MM/DD/YYYY expiry has passed the reference
// instant. A contract stays tradable until end of day, so same-day expiries
// remain valid until 23:59:59. Anything unparseable is treated as not expired
// rather than silently dropped.
func isExpired(expiry string, referenceTime time.Time) bool {
	parts := strings.Split(expiry, "/")
	if len(parts) != 3 {
		return false
	}

	month, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return false
	}
	day, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return false
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return false
	}

	endOfDay := time.Date(year, time.Month(month), day, 23, 59, 59, 0, referenceTime.Location())
	return endOfDay.Before(referenceTime)
}
