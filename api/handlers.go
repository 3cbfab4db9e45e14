/*
handlers.go - HTTP API handlers for coaching pay

PURPOSE:
  Exposes the pay rule engine, the monthly recompute and the record
  writer via REST API. Handles HTTP request/response, JSON serialization,
  and delegates to domain logic.

ENDPOINTS:
  Rules:
    GET    /api/rules                       Live tier table (pins the current month)
    PUT    /api/rules                       Replace live table + current month snapshot
    GET    /api/rules/history?year=&month=  Tier table that applies to a month
    GET    /api/rules/snapshots             Snapshot archive, newest first

  Payroll:
    GET    /api/payroll/{year}/{month}      Recomputed per-teacher totals (?format=csv)
    GET    /api/stats?year=&month=          Revenue vs expenses from stored values

  Records:
    GET    /api/teachers                    List teachers
    POST   /api/teachers                    Create teacher
    GET    /api/attendances?start_date=&end_date=
    POST   /api/attendances                 Record a session (pay stamped from live table)
    DELETE /api/attendances/{id}
    GET    /api/sales?start_date=&end_date=
    POST   /api/sales                       Record a sale (commission stamped)
    DELETE /api/sales/{id}

HISTORY SOURCE:
  /api/rules/history sets X-Rules-Source to "snapshot" or "live". "live"
  means the month was never pinned and today's rules stood in; callers
  should warn that the figures may not match what was paid.

ERROR HANDLING:
  Errors are returned as JSON {error, details} with HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 500: Persistence and internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - csv.go: Payroll CSV export
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/dexsystem/coachpay/payroll"
	"github.com/dexsystem/coachpay/records"
)

// RulesSourceHeader reports whether a historical table came from a snapshot.
const RulesSourceHeader = "X-Rules-Source"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine     *payroll.Engine
	Aggregator *payroll.Aggregator
	Recorder   *records.Recorder
	Logger     *slog.Logger

	validate *validator.Validate
}

// NewHandler creates a new handler over the engine and its record store.
func NewHandler(engine *payroll.Engine, store payroll.RecordStore, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Engine:     engine,
		Aggregator: &payroll.Aggregator{Rules: engine, Records: store, Logger: logger},
		Recorder:   records.NewRecorder(engine, store, logger),
		Logger:     logger,
		validate:   validator.New(),
	}
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// GetRules returns the live table and snapshots the current month if it has
// not been pinned yet.
func (h *Handler) GetRules(w http.ResponseWriter, r *http.Request) {
	tiers, err := h.Engine.GetCurrentRules(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to load rules", err)
		return
	}
	writeJSON(w, http.StatusOK, toTierDTOs(tiers))
}

// UpdateRules replaces the live table.
func (h *Handler) UpdateRules(w http.ResponseWriter, r *http.Request) {
	var req UpdateRulesRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	tiers, err := toTierTable(req.Tiers)
	if err != nil {
		h.writeDomainError(w, r, "Invalid tier table", err)
		return
	}
	if err := h.Engine.SetCurrentRules(r.Context(), tiers); err != nil {
		h.writeDomainError(w, r, "Failed to update rules", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "rules updated"})
}

// GetRulesHistory returns the table that applies to ?year=&month=.
func (h *Handler) GetRulesHistory(w http.ResponseWriter, r *http.Request) {
	month, err := monthFromQuery(r, h.Engine.CurrentMonth(), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	res, err := h.Engine.ResolveRulesForMonth(r.Context(), month)
	if err != nil {
		h.writeDomainError(w, r, "Failed to resolve rules", err)
		return
	}

	w.Header().Set(RulesSourceHeader, string(res.Source))
	writeJSON(w, http.StatusOK, RulesHistoryResponse{
		Year:   month.Year,
		Month:  int(month.Month),
		Source: string(res.Source),
		Tiers:  toTierDTOs(res.Tiers),
	})
}

// ListSnapshots returns the snapshot archive.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.Engine.ListSnapshots(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to list snapshots", err)
		return
	}
	dtos := make([]SnapshotDTO, len(snaps))
	for i, s := range snaps {
		dtos[i] = toSnapshotDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// GetPayroll returns the recomputed report for /{year}/{month}.
func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	month, err := monthFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	ctx := r.Context()
	report, err := h.Aggregator.GetMonthlyTotals(ctx, month)
	if err != nil {
		h.writeDomainError(w, r, "Failed to build payroll", err)
		return
	}
	names, err := h.teacherNames(r)
	if err != nil {
		h.writeDomainError(w, r, "Failed to load teachers", err)
		return
	}

	if strings.EqualFold(r.URL.Query().Get("format"), "csv") {
		h.writePayrollCSV(w, r, report, names)
		return
	}
	writeJSON(w, http.StatusOK, toPayrollReport(report, names))
}

// GetStats returns revenue and expenses for ?year=&month= (default: current).
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	month, err := monthFromQuery(r, h.Engine.CurrentMonth(), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	stats, err := h.Recorder.MonthlyStats(r.Context(), month)
	if err != nil {
		h.writeDomainError(w, r, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(stats))
}

func (h *Handler) teacherNames(r *http.Request) (map[payroll.TeacherID]string, error) {
	teachers, err := h.Recorder.ListTeachers(r.Context())
	if err != nil {
		return nil, err
	}
	names := make(map[payroll.TeacherID]string, len(teachers))
	for _, t := range teachers {
		names[t.ID] = t.Name
	}
	return names, nil
}

func toPayrollReport(report *payroll.MonthlyReport, names map[payroll.TeacherID]string) PayrollReportResponse {
	rows := report.Rows()
	resp := PayrollReportResponse{
		Year:    report.Month.Year,
		Month:   int(report.Month.Month),
		Source:  string(report.Source),
		Tiers:   toTierDTOs(report.Tiers),
		Rows:    make([]PayrollRowDTO, len(rows)),
		Skipped: report.Skipped,
	}
	grand := decimal.Zero
	for i, t := range rows {
		resp.Rows[i] = PayrollRowDTO{
			TeacherID:   string(t.TeacherID),
			TeacherName: names[t.TeacherID],
			BasePay:     money(t.BasePay),
			Commission:  money(t.Commission),
			Total:       money(t.Total),
			Sessions:    t.Sessions,
			Sales:       t.Sales,
		}
		grand = grand.Add(t.Total)
	}
	resp.GrandTotal = money(grand)
	return resp
}

// =============================================================================
// TEACHER HANDLERS
// =============================================================================

func (h *Handler) ListTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.Recorder.ListTeachers(r.Context())
	if err != nil {
		h.writeDomainError(w, r, "Failed to list teachers", err)
		return
	}
	dtos := make([]TeacherDTO, len(teachers))
	for i, t := range teachers {
		dtos[i] = toTeacherDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateTeacher(w http.ResponseWriter, r *http.Request) {
	var req CreateTeacherRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	t, err := h.Recorder.CreateTeacher(r.Context(), req.Name)
	if err != nil {
		h.writeDomainError(w, r, "Failed to create teacher", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTeacherDTO(t))
}

// =============================================================================
// ATTENDANCE HANDLERS
// =============================================================================

func (h *Handler) ListAttendances(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}
	list, err := h.Recorder.ListAttendances(r.Context(), from, to)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list attendances", err)
		return
	}
	dtos := make([]AttendanceDTO, len(list))
	for i, a := range list {
		dtos[i] = toAttendanceDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateAttendance(w http.ResponseWriter, r *http.Request) {
	var req CreateAttendanceRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	date, _ := time.Parse(dateLayout, req.Date) // validated by tag

	a, err := h.Recorder.RecordAttendance(r.Context(), records.AttendanceInput{
		Date:      date,
		TeacherID: payroll.TeacherID(req.TeacherID),
		CourseID:  req.CourseID,
		Headcount: req.Headcount,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to record attendance", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttendanceDTO(a))
}

func (h *Handler) DeleteAttendance(w http.ResponseWriter, r *http.Request) {
	if err := h.Recorder.DeleteAttendance(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, "Failed to delete attendance", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "deleted"})
}

// =============================================================================
// SALES HANDLERS
// =============================================================================

func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	from, to, err := h.dateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date range", err)
		return
	}
	list, err := h.Recorder.ListSales(r.Context(), from, to)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list sales", err)
		return
	}
	dtos := make([]SaleDTO, len(list))
	for i, s := range list {
		dtos[i] = toSaleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	var req CreateSaleRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	date, _ := time.Parse(dateLayout, req.Date) // validated by tag

	in := records.SaleInput{
		Date:      date,
		TeacherID: payroll.TeacherID(req.TeacherID),
		Plan:      payroll.PlanID(strings.TrimSpace(req.Plan)),
		Note:      req.Note,
	}
	amounts := []struct {
		field string
		raw   json.Number
		dst   *decimal.Decimal
	}{
		{"amount", req.Amount, &in.Amount},
		{"quantity", req.Quantity, &in.Quantity},
		{"commission", req.Commission, &in.Commission},
		{"custom_amount", req.CustomAmount, &in.CustomAmount},
	}
	for _, a := range amounts {
		v, err := parseOptionalMoney(a.field, a.raw)
		if err != nil {
			h.writeDomainError(w, r, "Invalid sale", err)
			return
		}
		*a.dst = v
	}

	sale, err := h.Recorder.RecordSale(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, "Failed to record sale", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSaleDTO(sale))
}

func (h *Handler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	if err := h.Recorder.DeleteSale(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, "Failed to delete sale", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "deleted"})
}

// =============================================================================
// REQUEST PARSING
// =============================================================================

// decodeAndValidate writes a 400 and returns false on failure.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			fields := make(map[string]string, len(ve))
			for _, fe := range ve {
				fields[fe.Namespace()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// monthFromQuery reads ?year=&month=. Missing values fall back to def
// unless required is set.
func monthFromQuery(r *http.Request, def payroll.Month, required bool) (payroll.Month, error) {
	q := r.URL.Query()
	ys, ms := q.Get("year"), q.Get("month")
	if ys == "" && ms == "" && !required {
		return def, nil
	}
	if ys == "" || ms == "" {
		return payroll.Month{}, errors.New("year and month are required")
	}
	return parseMonth(ys, ms)
}

func monthFromPath(r *http.Request) (payroll.Month, error) {
	return parseMonth(chi.URLParam(r, "year"), chi.URLParam(r, "month"))
}

func parseMonth(ys, ms string) (payroll.Month, error) {
	year, err := strconv.Atoi(ys)
	if err != nil {
		return payroll.Month{}, fmt.Errorf("year %q: %w", ys, payroll.ErrInvalidInput)
	}
	month, err := strconv.Atoi(ms)
	if err != nil {
		return payroll.Month{}, fmt.Errorf("month %q: %w", ms, payroll.ErrInvalidInput)
	}
	return payroll.NewMonth(year, month)
}

// dateRange reads ?start_date=&end_date=, defaulting to the current month.
func (h *Handler) dateRange(r *http.Request) (time.Time, time.Time, error) {
	cur := h.Engine.CurrentMonth()
	from, to := cur.Start(), cur.End()

	q := r.URL.Query()
	if s := q.Get("start_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("start_date: %w", err)
		}
		from = t
	}
	if s := q.Get("end_date"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("end_date: %w", err)
		}
		to = t
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errors.New("end_date is before start_date")
	}
	return from, to, nil
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps payroll errors to a status. Server-side failures are
// logged; their cause is not echoed to the client.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorContext(r.Context(), message,
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		writeError(w, status, message, nil)
		return
	}
	writeError(w, status, message, err)
}

func statusFor(err error) int {
	switch {
	case payroll.IsClientError(err):
		return http.StatusBadRequest
	case payroll.IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
