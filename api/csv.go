package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/dexsystem/coachpay/payroll"
)

// writePayrollCSV streams the report as an attachment. Headers are already
// sent when the body fails, so a write error can only be logged.
func (h *Handler) writePayrollCSV(w http.ResponseWriter, r *http.Request, report *payroll.MonthlyReport, names map[payroll.TeacherID]string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="payroll-%s.csv"`, report.Month))
	w.Header().Set(RulesSourceHeader, string(report.Source))
	w.WriteHeader(http.StatusOK)

	if err := report.WriteCSV(w, names); err != nil {
		h.Logger.WarnContext(r.Context(), "payroll csv write failed",
			slog.String("month", report.Month.String()),
			slog.Any("error", err),
		)
	}
}
