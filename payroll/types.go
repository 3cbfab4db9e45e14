/*
Package payroll provides the pay rule engine for the studio.

PURPOSE:
  Converts a coaching session's headcount into a flat pay amount using a
  tier table, converts a course sale into a commission using a fixed rate
  table, and keeps one frozen copy of the tier table per calendar month so
  that past payroll can be recomputed after the live rules change.

KEY CONCEPTS IN THIS FILE (types.go):
  - Tier / TierTable: inclusive headcount ranges mapped to flat amounts
  - RateTable: plan identifier to fixed per-unit commission
  - Attendance / Sale: the records the engine reads back for reports

DESIGN PRINCIPLES:
  1. Precision: all money is decimal.Decimal
  2. Order matters: tier tables are evaluated in sequence, never sorted
  3. Stored values are history: pay and commission stamped on a record
     are never revised in place

USAGE:
  engine := payroll.NewEngine(store)
  tiers, err := engine.GetCurrentRules(ctx)
  pay, err := payroll.ComputePay(8, tiers)

SEE ALSO:
  - calculator.go: ComputePay / ComputeCommission
  - snapshot.go: monthly snapshot archive and resolver
  - engine.go: the operations exposed to the service layer
  - aggregate.go: monthly per-teacher totals
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIERS - Headcount ranges mapped to flat pay
// =============================================================================

// Tier maps the closed headcount range [Min, Max] to a flat Amount.
type Tier struct {
	Min    int
	Max    int
	Amount decimal.Decimal
}

// Contains reports whether headcount falls inside the tier.
func (t Tier) Contains(headcount int) bool {
	return t.Min <= headcount && headcount <= t.Max
}

// Equal compares tiers by value; decimal amounts are compared numerically.
func (t Tier) Equal(o Tier) bool {
	return t.Min == o.Min && t.Max == o.Max && t.Amount.Equal(o.Amount)
}

// TierTable is an ordered sequence of tiers. The caller does not guarantee
// the tiers are sorted or non-overlapping.
type TierTable []Tier

// Equal reports whether both tables hold equal tiers in the same order.
func (tt TierTable) Equal(o TierTable) bool {
	if len(tt) != len(o) {
		return false
	}
	for i := range tt {
		if !tt[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// Clone returns a copy that shares no backing array with tt.
func (tt TierTable) Clone() TierTable {
	if tt == nil {
		return nil
	}
	out := make(TierTable, len(tt))
	copy(out, tt)
	return out
}

// Validate rejects negative bounds or amounts. Overlaps and min > max are
// allowed; lookup resolves them by order.
func (tt TierTable) Validate() error {
	for i, t := range tt {
		switch {
		case t.Min < 0:
			return &InvalidInputError{Field: tierField(i, "min"), Value: t.Min, Reason: "must be >= 0"}
		case t.Max < 0:
			return &InvalidInputError{Field: tierField(i, "max"), Value: t.Max, Reason: "must be >= 0"}
		case t.Amount.IsNegative():
			return &InvalidInputError{Field: tierField(i, "amount"), Value: t.Amount.String(), Reason: "must be >= 0"}
		}
	}
	return nil
}

// DefaultTierTable is served when no live table has been persisted yet.
func DefaultTierTable() TierTable {
	return TierTable{
		{Min: 1, Max: 5, Amount: decimal.NewFromInt(500)},
		{Min: 6, Max: 10, Amount: decimal.NewFromInt(800)},
		{Min: 11, Max: 15, Amount: decimal.NewFromInt(1200)},
		{Min: 16, Max: 99999, Amount: decimal.NewFromInt(1500)},
	}
}

// =============================================================================
// COMMISSION RATES - Fixed per-unit bonus per plan
// =============================================================================

type PlanID string

const (
	PlanA PlanID = "A"
	PlanB PlanID = "B"
	PlanC PlanID = "C"
)

// RateTable maps a plan to its fixed per-unit commission. A missing key is
// meaningful: the plan earns nothing.
type RateTable map[PlanID]decimal.Decimal

// DefaultRates is the commission table compiled into the engine.
func DefaultRates() RateTable {
	return RateTable{
		PlanA: decimal.NewFromInt(100),
		PlanB: decimal.NewFromInt(200),
		PlanC: decimal.NewFromInt(300),
	}
}

// Rate returns the rate for plan and whether the plan is known.
func (r RateTable) Rate(plan PlanID) (decimal.Decimal, bool) {
	rate, ok := r[plan]
	return rate, ok
}

// =============================================================================
// RECORDS - Supplied and stored by the surrounding service
// =============================================================================

type TeacherID string

// Teacher labels report rows.
type Teacher struct {
	ID        TeacherID
	Name      string
	CreatedAt time.Time
}

// Attendance is one coaching session. PayAtRecordTime was computed from the
// live table when the record was created and is never corrected.
type Attendance struct {
	ID              string
	Date            time.Time
	TeacherID       TeacherID
	CourseID        string
	Headcount       int
	PayAtRecordTime decimal.Decimal
	CreatedAt       time.Time
}

// Sale is one course sale. Amount is the sale price; Quantity is the
// commission multiplier. CommissionAtRecordTime is read back verbatim by
// reports.
type Sale struct {
	ID                     string
	Date                   time.Time
	TeacherID              TeacherID
	Plan                   PlanID
	Amount                 decimal.Decimal
	Quantity               decimal.Decimal
	CommissionAtRecordTime decimal.Decimal
	Note                   string
	CustomAmount           decimal.Decimal
	CreatedAt              time.Time
}
