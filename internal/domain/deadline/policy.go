// internal/domain/deadline/policy.go
package deadline

import (
	"fmt"
	"strings"
	"time"
)

// DefaultWindow is how far below a threshold the window policy still fires.
const DefaultWindow = 5 * time.Minute

// Policy selects the tier that fires for the given remaining time, if any.
type Policy interface {
	Select(remaining time.Duration) (Tier, bool)
	Name() string
}

// urgentFirst is the precedence used when several thresholds match.
var urgentFirst = []Tier{Tier1h, Tier6h, Tier24h}

// WindowPolicy fires a tier only while the remaining time sits in (threshold-Window, threshold].
// A poll interval coarser than Window can skip a tier entirely.
type WindowPolicy struct {
	Window time.Duration
}

func (p WindowPolicy) Name() string { return "window" }

func (p WindowPolicy) Select(remaining time.Duration) (Tier, bool) {
	if remaining <= 0 {
		return TierOverdue, true
	}
	window := p.Window
	if window <= 0 {
		window = DefaultWindow
	}
	for _, t := range urgentFirst {
		th := t.Threshold()
		if remaining <= th && remaining > th-window {
			return t, true
		}
	}
	return "", false
}

// CrossingPolicy fires the most urgent threshold the remaining time has dropped below.
// It does not depend on the poll cadence; combined with delivery records each tier fires once.
type CrossingPolicy struct{}

func (CrossingPolicy) Name() string { return "crossing" }

func (CrossingPolicy) Select(remaining time.Duration) (Tier, bool) {
	if remaining <= 0 {
		return TierOverdue, true
	}
	for _, t := range urgentFirst {
		if remaining < t.Threshold() {
			return t, true
		}
	}
	return "", false
}

// NewPolicy builds a policy from its configured name.
func NewPolicy(mode string, window time.Duration) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "crossing":
		return CrossingPolicy{}, nil
	case "window":
		return WindowPolicy{Window: window}, nil
	default:
		return nil, fmt.Errorf("unknown deadline tier mode %q (want crossing or window)", mode)
	}
}
