package market

import (
	"fmt"
	"strings"
	"time"
)

// ParseTimeframe maps chart timeframe strings ("1s", "1m", "5m", "15m",
// "1h", "4h", "1d") to durations.
func ParseTimeframe(tf string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(tf)) {
	case "1s":
		return time.Second, nil
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "30m":
		return 30 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported timeframe string: %s", tf)
	}
}

// TimeframeString is the inverse of ParseTimeframe.
func TimeframeString(d time.Duration) (string, error) {
	if d <= 0 {
		return "", fmt.Errorf("invalid timeframe: %s", d)
	}
	switch {
	case d < time.Minute && d%time.Second == 0:
		return fmt.Sprintf("%ds", d/time.Second), nil
	case d < time.Hour && d%time.Minute == 0:
		return fmt.Sprintf("%dm", d/time.Minute), nil
	case d < 24*time.Hour && d%time.Hour == 0:
		return fmt.Sprintf("%dh", d/time.Hour), nil
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%dd", d/(24*time.Hour)), nil
	}
	return "", fmt.Errorf("cannot map timeframe: %s", d)
}
