package config

import (
	"fmt"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// parseFlexibleDuration parses a YAML duration field. It tries the
// standard library first ("5s", "1h30m") and falls back to
// str2duration for the day/week/month/year units time.ParseDuration
// doesn't understand ("3d", "2w", "1mo"), which operators writing
// engine.yaml reach for more often than they reach for the docs.
func parseFlexibleDuration(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	d, err := str2duration.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	return d, nil
}
