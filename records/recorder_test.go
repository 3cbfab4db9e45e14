package records_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexsystem/coachpay/logs"
	"github.com/dexsystem/coachpay/payroll"
	"github.com/dexsystem/coachpay/payroll/store"
	"github.com/dexsystem/coachpay/records"
)

var now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newRecorder(t *testing.T) (*records.Recorder, *payroll.Engine, *store.TxMemory) {
	t.Helper()
	s := store.NewTxMemory()
	engine := payroll.NewEngine(s,
		payroll.WithClock(payroll.FixedClock(now)),
		payroll.WithLocation(time.UTC),
		payroll.WithLogger(logs.Nop()),
	)
	rec := records.NewRecorder(engine, s, logs.Nop()).WithClock(payroll.FixedClock(now))
	return rec, engine, s
}

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func march() payroll.Month { return payroll.Month{Year: 2025, Month: time.March} }

// =============================================================================
// ATTENDANCE
// =============================================================================

func TestRecordAttendance_StampsLivePay(t *testing.T) {
	ctx := context.Background()
	rec, engine, _ := newRecorder(t)

	a, err := rec.RecordAttendance(ctx, records.AttendanceInput{
		Date: time.Date(2025, time.March, 8, 19, 30, 0, 0, time.UTC), TeacherID: "coach-1", CourseID: "kpop", Headcount: 8,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.True(t, d(800).Equal(a.PayAtRecordTime), "default table pays 800 for 6-10")
	assert.Equal(t, time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC), a.Date)

	_, ok, err := engine.GetSnapshot(ctx, march())
	require.NoError(t, err)
	assert.True(t, ok, "first record of the month pins the month's rules")
}

func TestRecordAttendance_StoredPayNotRevisedByRuleChange(t *testing.T) {
	ctx := context.Background()
	rec, engine, _ := newRecorder(t)

	a, err := rec.RecordAttendance(ctx, records.AttendanceInput{Date: now, TeacherID: "coach-1", Headcount: 3})
	require.NoError(t, err)
	require.NoError(t, engine.SetCurrentRules(ctx, payroll.TierTable{{Min: 1, Max: 99, Amount: d(9000)}}))

	list, err := rec.ListAttendances(ctx, march().Start(), march().End())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
	assert.True(t, d(500).Equal(list[0].PayAtRecordTime))
}

func TestRecordAttendance_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	rec, _, _ := newRecorder(t)

	_, err := rec.RecordAttendance(ctx, records.AttendanceInput{Date: now, TeacherID: "coach-1", Headcount: 0})
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)

	_, err = rec.RecordAttendance(ctx, records.AttendanceInput{Date: now, Headcount: 4})
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)

	_, err = rec.RecordAttendance(ctx, records.AttendanceInput{TeacherID: "coach-1", Headcount: 4})
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)
}

func TestDeleteAttendance_NotFound(t *testing.T) {
	rec, _, _ := newRecorder(t)
	assert.ErrorIs(t, rec.DeleteAttendance(context.Background(), "nope"), payroll.ErrNotFound)
}

// =============================================================================
// SALES
// =============================================================================

func TestRecordSale_CommissionRules(t *testing.T) {
	ctx := context.Background()
	rec, _, _ := newRecorder(t)

	cases := []struct {
		name     string
		in       records.SaleInput
		want     int64
		quantity int64
	}{
		{"computed from quantity", records.SaleInput{Plan: payroll.PlanA, Amount: d(7000), Quantity: d(7)}, 700, 7},
		{"quantity defaults to one", records.SaleInput{Plan: payroll.PlanC, Amount: d(3000)}, 300, 1},
		{"positive override wins", records.SaleInput{Plan: payroll.PlanA, Amount: d(1000), Quantity: d(2), Commission: d(450)}, 450, 2},
		{"zero override ignored", records.SaleInput{Plan: payroll.PlanB, Amount: d(1000), Commission: decimal.Zero}, 200, 1},
		{"unknown plan earns nothing", records.SaleInput{Plan: "VIP", Amount: d(9000), Quantity: d(3)}, 0, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			in := c.in
			in.Date = now
			in.TeacherID = "coach-1"

			sale, err := rec.RecordSale(ctx, in)
			require.NoError(t, err)
			assert.True(t, d(c.want).Equal(sale.CommissionAtRecordTime), "got %s", sale.CommissionAtRecordTime)
			assert.True(t, d(c.quantity).Equal(sale.Quantity))
		})
	}
}

func TestRecordSale_RejectsNegativeAmount(t *testing.T) {
	rec, _, _ := newRecorder(t)
	_, err := rec.RecordSale(context.Background(), records.SaleInput{
		Date: now, TeacherID: "coach-1", Plan: payroll.PlanA, Amount: d(-1),
	})
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)
}

// =============================================================================
// STATS
// =============================================================================

func TestMonthlyStats_UsesStoredValues(t *testing.T) {
	// GIVEN: Two March attendances (500 + 800 stored) and one sale of 3000
	//        with 300 commission, plus an April sale
	// WHEN: Computing March stats
	// THEN: revenue 3000, expenses 1600, net 1400
	ctx := context.Background()
	rec, _, _ := newRecorder(t)

	_, err := rec.RecordAttendance(ctx, records.AttendanceInput{Date: now, TeacherID: "coach-1", Headcount: 4})
	require.NoError(t, err)
	_, err = rec.RecordAttendance(ctx, records.AttendanceInput{Date: now, TeacherID: "coach-2", Headcount: 9})
	require.NoError(t, err)
	_, err = rec.RecordSale(ctx, records.SaleInput{Date: now, TeacherID: "coach-1", Plan: payroll.PlanC, Amount: d(3000)})
	require.NoError(t, err)
	_, err = rec.RecordSale(ctx, records.SaleInput{
		Date: time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC), TeacherID: "coach-1", Plan: payroll.PlanA, Amount: d(5000),
	})
	require.NoError(t, err)

	stats, err := rec.MonthlyStats(ctx, march())
	require.NoError(t, err)
	assert.True(t, d(3000).Equal(stats.TotalRevenue))
	assert.True(t, d(1600).Equal(stats.TotalExpenses))
	assert.True(t, d(1400).Equal(stats.NetIncome))
}

// =============================================================================
// TEACHERS
// =============================================================================

func TestCreateTeacher(t *testing.T) {
	ctx := context.Background()
	rec, _, _ := newRecorder(t)

	_, err := rec.CreateTeacher(ctx, "  ")
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)

	mei, err := rec.CreateTeacher(ctx, "Mei")
	require.NoError(t, err)
	assert.NotEmpty(t, mei.ID)

	_, err = rec.CreateTeacher(ctx, "Mei")
	assert.ErrorIs(t, err, payroll.ErrInvalidInput, "names are unique")

	teachers, err := rec.ListTeachers(ctx)
	require.NoError(t, err)
	assert.Len(t, teachers, 1)
}
