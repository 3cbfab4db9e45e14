package payroll_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexsystem/coachpay/payroll"
)

func TestEncodeTierTable_Shape(t *testing.T) {
	s, err := payroll.EncodeTierTable(payroll.TierTable{tier(1, 5, 500), tier(6, 10, 800)})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"min":1,"max":5,"amount":500},{"min":6,"max":10,"amount":800}]`, s)
	assert.Equal(t, `[{"min":1,"max":5,"amount":500},{"min":6,"max":10,"amount":800}]`, s, "field order is min, max, amount")

	empty, err := payroll.EncodeTierTable(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", empty)
}

func TestTierTable_RoundTrip_PreservesOrder(t *testing.T) {
	original := payroll.TierTable{
		tier(16, 99999, 1500),
		tier(1, 5, 500),
		{Min: 6, Max: 10, Amount: decimal.RequireFromString("812.75")},
		tier(3, 4, 0),
	}

	s, err := payroll.EncodeTierTable(original)
	require.NoError(t, err)

	decoded, err := payroll.DecodeTierTable(s)
	require.NoError(t, err)
	assert.True(t, original.Equal(decoded), "round trip changed table: %s", s)
}

func TestDecodeTierTable_AcceptsQuotedAmounts(t *testing.T) {
	decoded, err := payroll.DecodeTierTable(`[{"min":1,"max":5,"amount":"500.5"}]`)
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.True(t, decimal.RequireFromString("500.5").Equal(decoded[0].Amount))
}

func TestDecodeTierTable_Invalid(t *testing.T) {
	_, err := payroll.DecodeTierTable(`{"min":1}`)
	assert.Error(t, err)

	decoded, err := payroll.DecodeTierTable(`null`)
	require.NoError(t, err)
	assert.NotNil(t, decoded)
	assert.Empty(t, decoded)
}

func TestTier_EmbeddedInStruct(t *testing.T) {
	payload := struct {
		Tiers payroll.TierTable `json:"tiers"`
	}{Tiers: payroll.DefaultTierTable()}

	b, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.Contains(t, string(b), `{"min":16,"max":99999,"amount":1500}`)
}

// =============================================================================
// MONTH
// =============================================================================

func TestMonth_Bounds(t *testing.T) {
	m, err := payroll.NewMonth(2024, 2)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), m.Start())
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), m.End())
	assert.Equal(t, "2024-02", m.String())
	assert.True(t, m.Contains(time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC)))
	assert.False(t, m.Contains(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, payroll.Month{Year: 2024, Month: time.March}, m.Next())
	assert.Equal(t, payroll.Month{Year: 2023, Month: time.December}, payroll.Month{Year: 2024, Month: time.January}.Prev())
}

func TestNewMonth_OutOfRange(t *testing.T) {
	for _, mm := range []int{0, 13, -1} {
		_, err := payroll.NewMonth(2025, mm)
		assert.ErrorIs(t, err, payroll.ErrInvalidInput)
	}
}
