// internal/domain/deadline/record.go
package deadline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// DeliveryRecord stores which tiers were already delivered for one (group, round).
// A new round has no record, so every tier is eligible again.
type DeliveryRecord struct {
	GroupAddress common.Address
	RoundNumber  uint64
	Tiers        map[Tier]bool
}

func NewDeliveryRecord(group common.Address, round uint64) *DeliveryRecord {
	return &DeliveryRecord{GroupAddress: group, RoundNumber: round, Tiers: make(map[Tier]bool)}
}

func (r *DeliveryRecord) Delivered(t Tier) bool {
	return r != nil && r.Tiers[t]
}

// Mark records t and reports whether it was newly added.
func (r *DeliveryRecord) Mark(t Tier) bool {
	if r.Tiers == nil {
		r.Tiers = make(map[Tier]bool)
	}
	if r.Tiers[t] {
		return false
	}
	r.Tiers[t] = true
	return true
}

// MostUrgent returns the most urgent delivered tier, or "" when nothing was delivered.
func (r *DeliveryRecord) MostUrgent() Tier {
	var best Tier
	if r == nil {
		return best
	}
	for t, ok := range r.Tiers {
		if ok && t.Urgency() > best.Urgency() {
			best = t
		}
	}
	return best
}

// RecordKey is the storage key "<namespace>-notification-<groupAddress>-<roundNumber>".
// The address is lower-cased so checksummed and plain spellings share a record.
func RecordKey(namespace string, group common.Address, round uint64) string {
	return fmt.Sprintf("%s-notification-%s-%d", namespace, strings.ToLower(group.Hex()), round)
}

// EncodeTiers serialises the delivered set as a JSON map of tier to boolean.
func EncodeTiers(tiers map[Tier]bool) ([]byte, error) {
	m := make(map[string]bool, len(tiers))
	for t, ok := range tiers {
		if ok {
			m[string(t)] = true
		}
	}
	return json.Marshal(m)
}

// DecodeTiers parses the JSON written by EncodeTiers. Unknown tier names are dropped.
func DecodeTiers(data []byte) (map[Tier]bool, error) {
	if len(data) == 0 {
		return make(map[Tier]bool), nil
	}
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode delivery record: %w", err)
	}
	tiers := make(map[Tier]bool, len(m))
	for k, ok := range m {
		t := Tier(k)
		if ok && t.Valid() {
			tiers[t] = true
		}
	}
	return tiers, nil
}
