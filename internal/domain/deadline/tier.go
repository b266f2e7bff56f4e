// internal/domain/deadline/tier.go
package deadline

import (
	"fmt"
	"time"
)

// Tier is a deadline-proximity alert level.
type Tier string

const (
	Tier24h     Tier = "24h"
	Tier6h      Tier = "6h"
	Tier1h      Tier = "1h"
	TierOverdue Tier = "overdue"
)

// Tiers lists every tier from least to most urgent.
var Tiers = []Tier{Tier24h, Tier6h, Tier1h, TierOverdue}

// Threshold is the remaining time at which the tier becomes due. Overdue has none.
func (t Tier) Threshold() time.Duration {
	switch t {
	case Tier24h:
		return 24 * time.Hour
	case Tier6h:
		return 6 * time.Hour
	case Tier1h:
		return time.Hour
	default:
		return 0
	}
}

// Urgency orders tiers: higher is more urgent. Unknown tiers rank below everything.
func (t Tier) Urgency() int {
	switch t {
	case Tier24h:
		return 1
	case Tier6h:
		return 2
	case Tier1h:
		return 3
	case TierOverdue:
		return 4
	default:
		return 0
	}
}

func (t Tier) Valid() bool {
	return t.Urgency() > 0
}

// ParseTier accepts the wire names used in delivery records.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}
