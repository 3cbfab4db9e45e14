package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECOMPUTE AGGREGATOR - Monthly per-teacher totals
// =============================================================================

// MonthResolver is satisfied by *Engine and *Resolver.
type MonthResolver interface {
	ResolveRulesForMonth(ctx context.Context, month Month) (Resolution, error)
}

// TeacherTotals is one teacher's pay for a month.
type TeacherTotals struct {
	TeacherID  TeacherID
	BasePay    decimal.Decimal
	Commission decimal.Decimal
	Total      decimal.Decimal
	Sessions   int
	Sales      int
}

// MonthlyReport holds the totals and the rules used to compute them.
type MonthlyReport struct {
	Month  Month
	Source RuleSource
	Tiers  TierTable
	Totals map[TeacherID]TeacherTotals

	// Skipped lists attendance IDs that could not be priced.
	Skipped []string
}

// Rows returns the totals ordered by Total descending, then TeacherID.
func (r *MonthlyReport) Rows() []TeacherTotals {
	rows := make([]TeacherTotals, 0, len(r.Totals))
	for _, t := range r.Totals {
		rows = append(rows, t)
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Total.Cmp(rows[j].Total); c != 0 {
			return c > 0
		}
		return rows[i].TeacherID < rows[j].TeacherID
	})
	return rows
}

// Aggregator recomputes attendance pay from the month's resolved rules and
// sums STORED commissions. Commission is never recomputed.
type Aggregator struct {
	Rules   MonthResolver
	Records RecordSource
	Logger  *slog.Logger
}

// GetMonthlyTotals builds the report for month. Teachers whose total is
// exactly zero are omitted.
func (a *Aggregator) GetMonthlyTotals(ctx context.Context, month Month) (*MonthlyReport, error) {
	if err := month.Validate(); err != nil {
		return nil, err
	}
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res, err := a.Rules.ResolveRulesForMonth(ctx, month)
	if err != nil {
		return nil, err
	}

	from, to := month.Start(), month.End()
	attendances, err := a.Records.AttendancesInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load attendances for %s: %w", month, err)
	}
	sales, err := a.Records.SalesInRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load sales for %s: %w", month, err)
	}

	report := &MonthlyReport{
		Month:  month,
		Source: res.Source,
		Tiers:  res.Tiers,
		Totals: make(map[TeacherID]TeacherTotals),
	}

	acc := make(map[TeacherID]*TeacherTotals)
	get := func(id TeacherID) *TeacherTotals {
		t, ok := acc[id]
		if !ok {
			t = &TeacherTotals{TeacherID: id, BasePay: decimal.Zero, Commission: decimal.Zero}
			acc[id] = t
		}
		return t
	}

	for _, rec := range attendances {
		if !month.Contains(rec.Date) {
			continue
		}
		pay, err := ComputePay(rec.Headcount, res.Tiers)
		if err != nil {
			logger.WarnContext(ctx, "skipping attendance that cannot be priced",
				slog.String("attendance_id", rec.ID),
				slog.Int("headcount", rec.Headcount),
				slog.Any("error", err),
			)
			report.Skipped = append(report.Skipped, rec.ID)
			continue
		}
		t := get(rec.TeacherID)
		t.BasePay = t.BasePay.Add(pay)
		t.Sessions++
	}

	for _, rec := range sales {
		if !month.Contains(rec.Date) {
			continue
		}
		t := get(rec.TeacherID)
		t.Commission = t.Commission.Add(rec.CommissionAtRecordTime)
		t.Sales++
	}

	for id, t := range acc {
		t.Total = t.BasePay.Add(t.Commission)
		if t.Total.IsZero() {
			continue
		}
		report.Totals[id] = *t
	}
	return report, nil
}
