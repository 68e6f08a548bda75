package config

import (
	"fmt"
	"strings"
	"time"
)

// Never is the resolved value of a timeout key set to "never". Dispatch treats
// it as no deadline and the button registry as no expiry.
const Never time.Duration = -1

const neverKeyword = "never"

// parseTimeout resolves a timeout key. Empty gives def, "never" (or "off")
// gives Never, anything else must be a positive Go duration.
func parseTimeout(key, raw string, def time.Duration) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "":
		return def, nil
	case neverKeyword, "off":
		return Never, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be a positive duration or %q, got %q", key, neverKeyword, raw)
	}
	return d, nil
}
