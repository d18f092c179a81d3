// Package score estimates how likely a challenge submission came from an
// automated agent. The number is advisory telemetry and never gates a
// correct answer.
package score

import (
	"time"

	"github.com/TecharoHQ/glimpse/lib/difficulty"
)

const (
	Min = 0
	Max = 100
)

// Score combines response time, the difficulty of the challenge, and the
// client's history into a value between Min and Max. Higher is more
// suspicious.
func Score(responseTime time.Duration, level int, h difficulty.History) int {
	result := 0

	switch ms := responseTime.Milliseconds(); {
	case ms < 500:
		result += 30
	case ms < 1000:
		result += 15
	case ms < 5000:
	default:
		// slow answers look like a human thinking it over
		result -= 10
	}

	if level >= 3 {
		result += level * 5
	}

	if h.Attempts >= 5 && h.SuccessRate() > 0.9 {
		result += 20
	}

	return min(max(result, Min), Max)
}
