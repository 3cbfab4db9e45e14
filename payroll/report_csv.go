package payroll

import (
	"encoding/csv"
	"io"
	"strconv"
)

var reportCSVHeader = []string{"teacher_id", "teacher_name", "sessions", "base_pay", "sales", "commission", "total"}

// WriteCSV writes Rows() with a header line. names labels teachers; a
// missing name is left blank.
func (r *MonthlyReport) WriteCSV(w io.Writer, names map[TeacherID]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportCSVHeader); err != nil {
		return err
	}
	for _, t := range r.Rows() {
		if err := cw.Write([]string{
			string(t.TeacherID),
			names[t.TeacherID],
			strconv.Itoa(t.Sessions),
			t.BasePay.String(),
			strconv.Itoa(t.Sales),
			t.Commission.String(),
			t.Total.String(),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
