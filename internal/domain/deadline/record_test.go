package deadline

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGroup = common.HexToAddress("0x00000000000000000000000000000000000000aB")

func TestRecordKey(t *testing.T) {
	assert.Equal(t,
		"susu-notification-0x00000000000000000000000000000000000000ab-7",
		RecordKey("susu", testGroup, 7))
}

func TestDeliveryRecord_MarkAndMostUrgent(t *testing.T) {
	r := NewDeliveryRecord(testGroup, 3)
	assert.Equal(t, Tier(""), r.MostUrgent())

	assert.True(t, r.Mark(Tier24h))
	assert.False(t, r.Mark(Tier24h))
	assert.True(t, r.Mark(Tier1h))

	assert.True(t, r.Delivered(Tier24h))
	assert.False(t, r.Delivered(Tier6h))
	assert.Equal(t, Tier1h, r.MostUrgent())

	var nilRecord *DeliveryRecord
	assert.False(t, nilRecord.Delivered(Tier24h))
}

func TestEncodeDecodeTiers(t *testing.T) {
	data, err := EncodeTiers(map[Tier]bool{Tier24h: true, Tier6h: true, Tier1h: false})
	require.NoError(t, err)
	assert.JSONEq(t, `{"24h":true,"6h":true}`, string(data))

	tiers, err := DecodeTiers([]byte(`{"24h":true,"1h":false,"12h":true,"overdue":true}`))
	require.NoError(t, err)
	assert.Equal(t, map[Tier]bool{Tier24h: true, TierOverdue: true}, tiers)

	tiers, err = DecodeTiers(nil)
	require.NoError(t, err)
	assert.Empty(t, tiers)

	_, err = DecodeTiers([]byte(`not json`))
	assert.Error(t, err)
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier("overdue")
	require.NoError(t, err)
	assert.Equal(t, TierOverdue, tier)

	_, err = ParseTier("2h")
	assert.Error(t, err)
}
