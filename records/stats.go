package records

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/dexsystem/coachpay/payroll"
)

// Stats is the studio's cash view of a month. Unlike the payroll report it
// uses the STORED pay of each attendance, i.e. what was promised when the
// session was recorded.
type Stats struct {
	Month         payroll.Month
	TotalRevenue  decimal.Decimal
	TotalExpenses decimal.Decimal
	NetIncome     decimal.Decimal
}

// MonthlyStats sums sale amounts as revenue, and stored pay plus stored
// commission as expenses.
func (r *Recorder) MonthlyStats(ctx context.Context, month payroll.Month) (Stats, error) {
	if err := month.Validate(); err != nil {
		return Stats{}, err
	}
	from, to := month.Start(), month.End()

	attendances, err := r.store.AttendancesInRange(ctx, from, to)
	if err != nil {
		return Stats{}, fmt.Errorf("load attendances for %s: %w", month, err)
	}
	sales, err := r.store.SalesInRange(ctx, from, to)
	if err != nil {
		return Stats{}, fmt.Errorf("load sales for %s: %w", month, err)
	}

	revenue, expenses := decimal.Zero, decimal.Zero
	for _, a := range attendances {
		expenses = expenses.Add(a.PayAtRecordTime)
	}
	for _, s := range sales {
		revenue = revenue.Add(s.Amount)
		expenses = expenses.Add(s.CommissionAtRecordTime)
	}

	return Stats{
		Month:         month,
		TotalRevenue:  revenue,
		TotalExpenses: expenses,
		NetIncome:     revenue.Sub(expenses),
	}, nil
}
