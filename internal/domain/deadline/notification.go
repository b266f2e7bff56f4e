// internal/domain/deadline/notification.go
package deadline

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DeadlineNotification is one rendered alert for a (group, round, tier).
type DeadlineNotification struct {
	GroupAddress  common.Address
	GroupName     string
	RoundNumber   uint64
	Tier          Tier
	TimeRemaining time.Duration
	Message       string
	// RequireInteraction asks the presenter to keep the alert until the member dismisses it.
	RequireInteraction bool
}

// RenderMessage returns the member-facing text of a tier.
func RenderMessage(tier Tier, groupName string, round uint64) string {
	switch tier {
	case Tier24h:
		return fmt.Sprintf("⏰ Reminder: You have 24 hours to contribute to %s (Round %d)", groupName, round)
	case Tier6h:
		return fmt.Sprintf("⚠️ Urgent: Only 6 hours left to contribute to %s (Round %d)", groupName, round)
	case Tier1h:
		return fmt.Sprintf("🚨 Last hour! Contribute to %s (Round %d) before deadline", groupName, round)
	case TierOverdue:
		return fmt.Sprintf("❌ Deadline passed for %s (Round %d). Late penalty may apply.", groupName, round)
	default:
		return ""
	}
}

// NewNotification renders the alert for a selected tier.
func NewNotification(group common.Address, groupName string, round uint64, tier Tier, remaining time.Duration) DeadlineNotification {
	return DeadlineNotification{
		GroupAddress:       group,
		GroupName:          groupName,
		RoundNumber:        round,
		Tier:               tier,
		TimeRemaining:      remaining,
		Message:            RenderMessage(tier, groupName, round),
		RequireInteraction: tier == TierOverdue,
	}
}
