/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Rule read/update and the lazy current-month snapshot
- History source reporting (snapshot vs live fallback)
- Record creation and deletion
- Payroll report (JSON and CSV)
- Error status mapping
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexsystem/coachpay/api"
	"github.com/dexsystem/coachpay/logs"
	"github.com/dexsystem/coachpay/payroll"
	"github.com/dexsystem/coachpay/payroll/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var now = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type testServer struct {
	router http.Handler
	engine *payroll.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := store.NewTxMemory()
	return newTestServerWith(t, s, s)
}

func newTestServerWith(t *testing.T, rules payroll.RulesStore, recordStore payroll.RecordStore) *testServer {
	t.Helper()
	engine := payroll.NewEngine(rules,
		payroll.WithClock(payroll.FixedClock(now)),
		payroll.WithLocation(time.UTC),
		payroll.WithLogger(logs.Nop()),
	)
	h := api.NewHandler(engine, recordStore, logs.Nop())
	return &testServer{router: api.NewRouter(h, []string{"*"}), engine: engine}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

const t1Body = `{"tiers":[{"min":1,"max":10,"amount":600},{"min":11,"max":99999,"amount":1000}]}`

// =============================================================================
// RULES
// =============================================================================

func TestGetRules_DefaultsAndPinsCurrentMonth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	tiers := decode[[]api.TierDTO](t, rec)
	require.Len(t, tiers, 4)
	assert.Equal(t, api.TierDTO{Min: 1, Max: 5, Amount: "500"}, tiers[0])
	assert.Contains(t, rec.Body.String(), `"amount":500`, "amounts are JSON numbers")

	_, ok, err := ts.engine.GetSnapshot(context.Background(), payroll.Month{Year: 2025, Month: time.March})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateRules_ThenHistoryFromSnapshot(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/rules", t1Body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/rules/history?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "snapshot", rec.Header().Get(api.RulesSourceHeader))

	hist := decode[api.RulesHistoryResponse](t, rec)
	assert.Equal(t, "snapshot", hist.Source)
	require.Len(t, hist.Tiers, 2)
	assert.Equal(t, "600", hist.Tiers[0].Amount.String())

	rec = ts.do(t, http.MethodGet, "/api/rules/snapshots", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snaps := decode[[]api.SnapshotDTO](t, rec)
	require.Len(t, snaps, 1)
	assert.Equal(t, 3, snaps[0].Month)
}

func TestRulesHistory_UntouchedMonthFallsBackToLive(t *testing.T) {
	// GIVEN: Live rules set in March
	// WHEN: Asking for January, which was never pinned
	// THEN: The live table is returned and flagged as such
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/rules", t1Body).Code)

	rec := ts.do(t, http.MethodGet, "/api/rules/history?year=2025&month=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "live", rec.Header().Get(api.RulesSourceHeader))
	assert.Len(t, decode[api.RulesHistoryResponse](t, rec).Tiers, 2)

	_, ok, err := ts.engine.GetSnapshot(context.Background(), payroll.Month{Year: 2025, Month: time.January})
	require.NoError(t, err)
	assert.False(t, ok, "history reads never write")
}

func TestRulesHistory_BadMonth(t *testing.T) {
	ts := newTestServer(t)

	for _, q := range []string{"", "?year=2025", "?year=2025&month=13", "?year=2025&month=0", "?year=x&month=1"} {
		rec := ts.do(t, http.MethodGet, "/api/rules/history"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "query %q", q)
	}
}

func TestUpdateRules_Rejected(t *testing.T) {
	ts := newTestServer(t)

	cases := map[string]string{
		"negative amount": `{"tiers":[{"min":1,"max":5,"amount":-1}]}`,
		"negative min":    `{"tiers":[{"min":-1,"max":5,"amount":100}]}`,
		"missing tiers":   `{}`,
		"missing amount":  `{"tiers":[{"min":1,"max":5}]}`,
		"malformed":       `{"tiers":`,
	}
	for name, body := range cases {
		rec := ts.do(t, http.MethodPut, "/api/rules", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}

	live, err := ts.engine.CurrentTierTable(context.Background())
	require.NoError(t, err)
	assert.True(t, payroll.DefaultTierTable().Equal(live), "rejected updates leave the live table alone")
}

func TestUpdateRules_ValidationDetailsNameField(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPut, "/api/rules", `{"tiers":[{"min":-1,"max":5,"amount":100}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "gte", resp.Details["UpdateRulesRequest.Tiers[0].Min"])
}

// =============================================================================
// RECORDS
// =============================================================================

func TestCreateAttendance_StampsPay(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/attendances", map[string]any{
		"date": "2025-03-08", "teacher_id": "coach-mei", "course_id": "jazz", "headcount": 8,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	a := decode[api.AttendanceDTO](t, rec)
	assert.Equal(t, "800", a.Pay.String())
	assert.Equal(t, "2025-03-08", a.Date)

	rec = ts.do(t, http.MethodGet, "/api/attendances?start_date=2025-03-01&end_date=2025-03-31", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.AttendanceDTO](t, rec), 1)

	rec = ts.do(t, http.MethodDelete, "/api/attendances/"+a.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/api/attendances/"+a.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateAttendance_Invalid(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []map[string]any{
		{"date": "2025-03-08", "teacher_id": "coach-mei", "headcount": 0},
		{"date": "08/03/2025", "teacher_id": "coach-mei", "headcount": 3},
		{"date": "2025-03-08", "headcount": 3},
	} {
		rec := ts.do(t, http.MethodPost, "/api/attendances", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%v", body)
	}
}

func TestCreateSale_CommissionOverride(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/sales", `{"date":"2025-03-09","teacher_id":"coach-mei","plan_type":"A","amount":7000,"quantity":7}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "700", decode[api.SaleDTO](t, rec).Commission.String())

	rec = ts.do(t, http.MethodPost, "/api/sales", `{"date":"2025-03-09","teacher_id":"coach-mei","plan_type":"A","amount":7000,"commission":"250.5"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sale := decode[api.SaleDTO](t, rec)
	assert.Equal(t, "250.5", sale.Commission.String())
	assert.Equal(t, "1", sale.Quantity.String())

	rec = ts.do(t, http.MethodGet, "/api/sales", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]api.SaleDTO](t, rec), 2, "defaults to the current month")
}

func TestTeachers_CreateAndDuplicate(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/teachers", map[string]string{"name": "Mei"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, decode[api.TeacherDTO](t, rec).ID)

	rec = ts.do(t, http.MethodPost, "/api/teachers", map[string]string{"name": "Mei"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/teachers", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/teachers", nil)
	assert.Len(t, decode[[]api.TeacherDTO](t, rec), 1)
}

// =============================================================================
// PAYROLL
// =============================================================================

func seedMarch(t *testing.T, ts *testServer) payroll.TeacherID {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/teachers", map[string]string{"name": "Mei"})
	require.Equal(t, http.StatusCreated, rec.Code)
	mei := payroll.TeacherID(decode[api.TeacherDTO](t, rec).ID)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPut, "/api/rules", t1Body).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/attendances", map[string]any{
		"date": "2025-03-08", "teacher_id": mei, "headcount": 8,
	}).Code)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/sales", map[string]any{
		"date": "2025-03-09", "teacher_id": mei, "plan_type": "C", "amount": 3000,
	}).Code)
	return mei
}

func TestGetPayroll_JSON(t *testing.T) {
	ts := newTestServer(t)
	mei := seedMarch(t, ts)

	rec := ts.do(t, http.MethodGet, "/api/payroll/2025/3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	report := decode[api.PayrollReportResponse](t, rec)
	assert.Equal(t, "snapshot", report.Source)
	require.Len(t, report.Rows, 1)
	row := report.Rows[0]
	assert.Equal(t, string(mei), row.TeacherID)
	assert.Equal(t, "Mei", row.TeacherName)
	assert.Equal(t, "600", row.BasePay.String())
	assert.Equal(t, "300", row.Commission.String())
	assert.Equal(t, "900", row.Total.String())
	assert.Equal(t, "900", report.GrandTotal.String())
}

func TestGetPayroll_CSV(t *testing.T) {
	ts := newTestServer(t)
	mei := seedMarch(t, ts)

	rec := ts.do(t, http.MethodGet, "/api/payroll/2025/3?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "payroll-2025-03.csv")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "teacher_id", rows[0][0])
	assert.Equal(t, []string{string(mei), "Mei", "1", "600", "1", "300", "900"}, rows[1])
}

func TestGetPayroll_BadPath(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/payroll/2025/13", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/payroll/abc/3", nil).Code)
}

func TestGetStats(t *testing.T) {
	ts := newTestServer(t)
	seedMarch(t, ts)

	rec := ts.do(t, http.MethodGet, "/api/stats?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	stats := decode[api.MonthlyStatsDTO](t, rec)
	assert.Equal(t, "3000", stats.TotalRevenue.String())
	assert.Equal(t, "900", stats.TotalExpenses.String(), "stored pay 600 + stored commission 300")
	assert.Equal(t, "2100", stats.NetIncome.String())
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

type brokenRulesStore struct {
	*store.TxMemory
}

func (b brokenRulesStore) LoadTierTable(context.Context) (payroll.TierTable, bool, error) {
	return nil, false, errors.New("disk I/O error")
}

func TestPersistenceFailure_Returns500WithoutCause(t *testing.T) {
	mem := store.NewTxMemory()
	ts := newTestServerWith(t, brokenRulesStore{mem}, mem)

	rec := ts.do(t, http.MethodGet, "/api/rules", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk I/O")
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)
}
