package payroll

import "github.com/shopspring/decimal"

// =============================================================================
// PAY CALCULATOR - Pure functions over rule tables
// =============================================================================

// ComputePay returns the flat pay for a session with headcount attendees.
//
// Lookup order:
//  1. the first tier (in sequence order) whose [Min, Max] contains headcount
//  2. otherwise the LAST tier in sequence, used as a ceiling
//  3. zero for an empty table
//
// Overlapping ranges resolve by order of appearance, not by range width.
func ComputePay(headcount int, table TierTable) (decimal.Decimal, error) {
	if headcount < 1 {
		return decimal.Zero, &InvalidInputError{Field: "headcount", Value: headcount, Reason: "must be at least 1"}
	}
	for _, t := range table {
		if t.Contains(headcount) {
			return t.Amount, nil
		}
	}
	if len(table) > 0 {
		return table[len(table)-1].Amount, nil
	}
	return decimal.Zero, nil
}

// ComputeCommission returns units * rate for the plan. Unknown plans earn
// zero commission and are not an error.
//
// units is a multiplier of the fixed per-unit rate, not the sale price.
func ComputeCommission(plan PlanID, units decimal.Decimal, rates RateTable) decimal.Decimal {
	rate, ok := rates.Rate(plan)
	if !ok {
		return decimal.Zero
	}
	return units.Mul(rate)
}
