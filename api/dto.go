/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the payroll domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts travel as JSON numbers (json.Number) and are converted to
  decimal.Decimal at the boundary, never through float64. Requests also
  accept quoted numbers.

VALIDATION:
  Request structs carry go-playground/validator tags. Handlers call
  h.validate.Struct before touching the domain; the domain then runs its
  own checks (e.g. TierTable.Validate).

SEE ALSO:
  - handlers.go: Uses these types
  - payroll/types.go: Domain types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dexsystem/coachpay/payroll"
	"github.com/dexsystem/coachpay/records"
)

const dateLayout = "2006-01-02"

// =============================================================================
// RULES
// =============================================================================

// TierDTO is one headcount tier: {"min":1,"max":5,"amount":500}.
type TierDTO struct {
	Min    int         `json:"min" validate:"gte=0"`
	Max    int         `json:"max" validate:"gte=0"`
	Amount json.Number `json:"amount" validate:"required"`
}

// UpdateRulesRequest replaces the live tier table.
type UpdateRulesRequest struct {
	Tiers []TierDTO `json:"tiers" validate:"required,dive"`
}

// RulesHistoryResponse is the tier table that applies to a month.
// Source is "live" when the month has no snapshot and today's table stood in.
type RulesHistoryResponse struct {
	Year   int       `json:"year"`
	Month  int       `json:"month"`
	Source string    `json:"source"`
	Tiers  []TierDTO `json:"tiers"`
}

// SnapshotDTO is one archived month.
type SnapshotDTO struct {
	ID        string    `json:"id"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Tiers     []TierDTO `json:"tiers"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
}

// =============================================================================
// RECORDS
// =============================================================================

type CreateTeacherRequest struct {
	Name string `json:"name" validate:"required"`
}

type TeacherDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateAttendanceRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	TeacherID string `json:"teacher_id" validate:"required"`
	CourseID  string `json:"course_id"`
	Headcount int    `json:"headcount" validate:"gte=1"`
}

type AttendanceDTO struct {
	ID        string      `json:"id"`
	Date      string      `json:"date"`
	TeacherID string      `json:"teacher_id"`
	CourseID  string      `json:"course_id,omitempty"`
	Headcount int         `json:"headcount"`
	Pay       json.Number `json:"calculated_salary"`
	CreatedAt string      `json:"created_at,omitempty"`
}

// CreateSaleRequest records a course sale. Quantity defaults to 1;
// a positive Commission overrides the plan rate.
type CreateSaleRequest struct {
	Date         string      `json:"date" validate:"required,datetime=2006-01-02"`
	TeacherID    string      `json:"teacher_id" validate:"required"`
	Plan         string      `json:"plan_type" validate:"required"`
	Amount       json.Number `json:"amount" validate:"required"`
	Quantity     json.Number `json:"quantity,omitempty"`
	Commission   json.Number `json:"commission,omitempty"`
	Note         string      `json:"note,omitempty"`
	CustomAmount json.Number `json:"custom_amount,omitempty"`
}

type SaleDTO struct {
	ID           string      `json:"id"`
	Date         string      `json:"date"`
	TeacherID    string      `json:"teacher_id"`
	Plan         string      `json:"plan_type"`
	Amount       json.Number `json:"amount"`
	Quantity     json.Number `json:"quantity"`
	Commission   json.Number `json:"commission"`
	Note         string      `json:"note,omitempty"`
	CustomAmount json.Number `json:"custom_amount"`
	CreatedAt    string      `json:"created_at,omitempty"`
}

// =============================================================================
// REPORTS
// =============================================================================

type PayrollRowDTO struct {
	TeacherID   string      `json:"teacher_id"`
	TeacherName string      `json:"teacher_name,omitempty"`
	BasePay     json.Number `json:"base_pay"`
	Commission  json.Number `json:"commission"`
	Total       json.Number `json:"total"`
	Sessions    int         `json:"sessions"`
	Sales       int         `json:"sales"`
}

// PayrollReportResponse is the recomputed payroll for one month.
type PayrollReportResponse struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Source     string          `json:"source"`
	Tiers      []TierDTO       `json:"tiers"`
	Rows       []PayrollRowDTO `json:"rows"`
	GrandTotal json.Number     `json:"grand_total"`
	Skipped    []string        `json:"skipped,omitempty"`
}

type MonthlyStatsDTO struct {
	Year          int         `json:"year"`
	Month         int         `json:"month"`
	TotalRevenue  json.Number `json:"total_revenue"`
	TotalExpenses json.Number `json:"total_expenses"`
	NetIncome     json.Number `json:"net_income"`
}

// MessageResponse acknowledges a write with no body of its own.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func toTierDTOs(tt payroll.TierTable) []TierDTO {
	out := make([]TierDTO, len(tt))
	for i, t := range tt {
		out[i] = TierDTO{Min: t.Min, Max: t.Max, Amount: money(t.Amount)}
	}
	return out
}

// toTierTable parses amounts; the engine checks signs.
func toTierTable(in []TierDTO) (payroll.TierTable, error) {
	out := make(payroll.TierTable, len(in))
	for i, t := range in {
		amount, err := decimal.NewFromString(t.Amount.String())
		if err != nil {
			return nil, &payroll.InvalidInputError{Field: "tiers.amount", Value: t.Amount, Reason: "not a number"}
		}
		out[i] = payroll.Tier{Min: t.Min, Max: t.Max, Amount: amount}
	}
	return out, nil
}

// parseOptionalMoney treats an absent value as zero.
func parseOptionalMoney(field string, n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, &payroll.InvalidInputError{Field: field, Value: n, Reason: "not a number"}
	}
	return d, nil
}

func toSnapshotDTO(s payroll.Snapshot) SnapshotDTO {
	return SnapshotDTO{
		ID:        s.ID,
		Year:      s.Month.Year,
		Month:     int(s.Month.Month),
		Tiers:     toTierDTOs(s.Tiers),
		CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toTeacherDTO(t payroll.Teacher) TeacherDTO {
	dto := TeacherDTO{ID: string(t.ID), Name: t.Name}
	if !t.CreatedAt.IsZero() {
		dto.CreatedAt = t.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toAttendanceDTO(a payroll.Attendance) AttendanceDTO {
	dto := AttendanceDTO{
		ID:        a.ID,
		Date:      a.Date.Format(dateLayout),
		TeacherID: string(a.TeacherID),
		CourseID:  a.CourseID,
		Headcount: a.Headcount,
		Pay:       money(a.PayAtRecordTime),
	}
	if !a.CreatedAt.IsZero() {
		dto.CreatedAt = a.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toSaleDTO(s payroll.Sale) SaleDTO {
	dto := SaleDTO{
		ID:           s.ID,
		Date:         s.Date.Format(dateLayout),
		TeacherID:    string(s.TeacherID),
		Plan:         string(s.Plan),
		Amount:       money(s.Amount),
		Quantity:     money(s.Quantity),
		Commission:   money(s.CommissionAtRecordTime),
		Note:         s.Note,
		CustomAmount: money(s.CustomAmount),
	}
	if !s.CreatedAt.IsZero() {
		dto.CreatedAt = s.CreatedAt.UTC().Format(time.RFC3339)
	}
	return dto
}

func toStatsDTO(s records.Stats) MonthlyStatsDTO {
	return MonthlyStatsDTO{
		Year:          s.Month.Year,
		Month:         int(s.Month.Month),
		TotalRevenue:  money(s.TotalRevenue),
		TotalExpenses: money(s.TotalExpenses),
		NetIncome:     money(s.NetIncome),
	}
}
