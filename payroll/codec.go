package payroll

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Persisted form of a tier table: a JSON array of {"min","max","amount"}.
// The live configuration and every snapshot use this encoding, so field
// names and tier order must survive a round trip.

type tierJSON struct {
	Min    int         `json:"min"`
	Max    int         `json:"max"`
	Amount json.Number `json:"amount"`
}

// MarshalJSON writes amount as a JSON number rather than decimal's default
// quoted string.
func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(tierJSON{Min: t.Min, Max: t.Max, Amount: json.Number(t.Amount.String())})
}

// UnmarshalJSON accepts amount as a number or a numeric string.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var raw struct {
		Min    int             `json:"min"`
		Max    int             `json:"max"`
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.Min, t.Max, t.Amount = raw.Min, raw.Max, raw.Amount
	return nil
}

// EncodeTierTable serializes tt to its persisted text form. A nil table
// encodes as "[]".
func EncodeTierTable(tt TierTable) (string, error) {
	if tt == nil {
		tt = TierTable{}
	}
	b, err := json.Marshal(tt)
	if err != nil {
		return "", fmt.Errorf("encode tier table: %w", err)
	}
	return string(b), nil
}

// DecodeTierTable parses the persisted text form.
func DecodeTierTable(s string) (TierTable, error) {
	var tt TierTable
	if err := json.Unmarshal([]byte(s), &tt); err != nil {
		return nil, fmt.Errorf("decode tier table: %w", err)
	}
	if tt == nil {
		tt = TierTable{}
	}
	return tt, nil
}
