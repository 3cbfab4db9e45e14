/*
Package records creates attendance and sale records.

PURPOSE:
  Stamps each record with the pay or commission it earns at the moment it
  is created. Those stamped numbers are history: monthly payroll recomputes
  base pay from the month's snapshot, but commission is always read back
  from the sale as stored.

STAMPING RULES:
  Attendance: ComputePay(headcount, live tier table)
  Sale:       the commission supplied by the caller when it is > 0,
              otherwise ComputeCommission(plan, quantity), quantity
              defaulting to 1

  Recording reads the live table through Engine.GetCurrentRules, so the
  first record of a month also pins that month's snapshot.

SEE ALSO:
  - payroll/calculator.go: pricing functions
  - payroll/aggregate.go: monthly recompute over these records
*/
package records

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dexsystem/coachpay/payroll"
)

// Recorder writes records through a payroll.RecordStore.
type Recorder struct {
	engine *payroll.Engine
	store  payroll.RecordStore
	clock  payroll.Clock
	logger *slog.Logger
}

func NewRecorder(engine *payroll.Engine, store payroll.RecordStore, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{engine: engine, store: store, clock: time.Now, logger: logger}
}

// WithClock returns a copy of r that stamps CreatedAt from c.
func (r *Recorder) WithClock(c payroll.Clock) *Recorder {
	cp := *r
	cp.clock = c
	return &cp
}

// =============================================================================
// ATTENDANCE
// =============================================================================

type AttendanceInput struct {
	Date      time.Time
	TeacherID payroll.TeacherID
	CourseID  string
	Headcount int
}

// RecordAttendance prices the session from the live table and stores it.
func (r *Recorder) RecordAttendance(ctx context.Context, in AttendanceInput) (payroll.Attendance, error) {
	if err := requireRecordFields(in.Date, in.TeacherID); err != nil {
		return payroll.Attendance{}, err
	}

	tiers, err := r.engine.GetCurrentRules(ctx)
	if err != nil {
		return payroll.Attendance{}, err
	}
	pay, err := payroll.ComputePay(in.Headcount, tiers)
	if err != nil {
		return payroll.Attendance{}, err
	}

	a := payroll.Attendance{
		ID:              uuid.NewString(),
		Date:            dateOnly(in.Date),
		TeacherID:       in.TeacherID,
		CourseID:        strings.TrimSpace(in.CourseID),
		Headcount:       in.Headcount,
		PayAtRecordTime: pay,
		CreatedAt:       r.clock().UTC(),
	}
	if err := r.store.SaveAttendance(ctx, a); err != nil {
		return payroll.Attendance{}, err
	}

	r.logger.InfoContext(ctx, "attendance recorded",
		slog.String("attendance_id", a.ID),
		slog.String("teacher_id", string(a.TeacherID)),
		slog.Int("headcount", a.Headcount),
		slog.String("pay", pay.String()),
	)
	return a, nil
}

func (r *Recorder) DeleteAttendance(ctx context.Context, id string) error {
	return r.store.DeleteAttendance(ctx, id)
}

func (r *Recorder) ListAttendances(ctx context.Context, from, to time.Time) ([]payroll.Attendance, error) {
	return r.store.AttendancesInRange(ctx, from, to)
}

// =============================================================================
// SALES
// =============================================================================

type SaleInput struct {
	Date      time.Time
	TeacherID payroll.TeacherID
	Plan      payroll.PlanID
	Amount    decimal.Decimal

	// Quantity multiplies the plan rate. Zero means 1.
	Quantity decimal.Decimal

	// Commission, when positive, is stored instead of the computed value.
	Commission decimal.Decimal

	Note         string
	CustomAmount decimal.Decimal
}

// RecordSale stamps the commission and stores the sale.
func (r *Recorder) RecordSale(ctx context.Context, in SaleInput) (payroll.Sale, error) {
	if err := requireRecordFields(in.Date, in.TeacherID); err != nil {
		return payroll.Sale{}, err
	}
	if in.Amount.IsNegative() {
		return payroll.Sale{}, &payroll.InvalidInputError{Field: "amount", Value: in.Amount.String(), Reason: "must be >= 0"}
	}
	if in.Quantity.IsNegative() {
		return payroll.Sale{}, &payroll.InvalidInputError{Field: "quantity", Value: in.Quantity.String(), Reason: "must be >= 0"}
	}

	quantity := in.Quantity
	if quantity.IsZero() {
		quantity = decimal.NewFromInt(1)
	}
	commission := in.Commission
	if !commission.IsPositive() {
		commission = payroll.ComputeCommission(in.Plan, quantity, r.engine.Rates())
	}

	s := payroll.Sale{
		ID:                     uuid.NewString(),
		Date:                   dateOnly(in.Date),
		TeacherID:              in.TeacherID,
		Plan:                   in.Plan,
		Amount:                 in.Amount,
		Quantity:               quantity,
		CommissionAtRecordTime: commission,
		Note:                   strings.TrimSpace(in.Note),
		CustomAmount:           in.CustomAmount,
		CreatedAt:              r.clock().UTC(),
	}
	if err := r.store.SaveSale(ctx, s); err != nil {
		return payroll.Sale{}, err
	}

	r.logger.InfoContext(ctx, "sale recorded",
		slog.String("sale_id", s.ID),
		slog.String("teacher_id", string(s.TeacherID)),
		slog.String("plan", string(s.Plan)),
		slog.String("commission", commission.String()),
		slog.Bool("override", in.Commission.IsPositive()),
	)
	return s, nil
}

func (r *Recorder) DeleteSale(ctx context.Context, id string) error {
	return r.store.DeleteSale(ctx, id)
}

func (r *Recorder) ListSales(ctx context.Context, from, to time.Time) ([]payroll.Sale, error) {
	return r.store.SalesInRange(ctx, from, to)
}

// =============================================================================
// TEACHERS
// =============================================================================

// CreateTeacher stores a teacher under a fresh ID. Names must be unique.
func (r *Recorder) CreateTeacher(ctx context.Context, name string) (payroll.Teacher, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return payroll.Teacher{}, &payroll.InvalidInputError{Field: "name", Value: name, Reason: "required"}
	}
	t := payroll.Teacher{
		ID:        payroll.TeacherID(uuid.NewString()),
		Name:      name,
		CreatedAt: r.clock().UTC(),
	}
	if err := r.store.SaveTeacher(ctx, t); err != nil {
		return payroll.Teacher{}, err
	}
	return t, nil
}

func (r *Recorder) ListTeachers(ctx context.Context) ([]payroll.Teacher, error) {
	return r.store.ListTeachers(ctx)
}

func requireRecordFields(date time.Time, teacher payroll.TeacherID) error {
	if date.IsZero() {
		return &payroll.InvalidInputError{Field: "date", Value: "", Reason: "required"}
	}
	if strings.TrimSpace(string(teacher)) == "" {
		return &payroll.InvalidInputError{Field: "teacher_id", Value: teacher, Reason: "required"}
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
