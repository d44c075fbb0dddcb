package cache

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultExpireTime is used when no expire string is configured.
const DefaultExpireTime = time.Hour

var expirePattern = regexp.MustCompile(`^(\d+)([hdwmy])$`)

// ParseExpireTime parses a human duration string into a TTL.
// Supported units: h (hours), d (days), w (weeks), m (months = 30 days),
// y (years = 365 days). An empty string yields the 1h default.
func ParseExpireTime(s string) (time.Duration, error) {
	if s == "" {
		return DefaultExpireTime, nil
	}

	match := expirePattern.FindStringSubmatch(strings.ToLower(s))
	if match == nil {
		return 0, fmt.Errorf("invalid expire time %q: expected number + unit (h/d/w/m/y)", s)
	}

	value, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, fmt.Errorf("invalid expire time %q: %w", s, err)
	}

	switch match[2] {
	case "h":
		return time.Duration(value) * time.Hour, nil
	case "d":
		return time.Duration(value) * 24 * time.Hour, nil
	case "w":
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	case "m":
		return time.Duration(value) * 30 * 24 * time.Hour, nil
	case "y":
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	}

	return 0, fmt.Errorf("unsupported expire time unit %q", match[2])
}
