package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/dexsystem/coachpay/payroll"
)

func NewTotalsCommand() *cobra.Command {
	var (
		year, month int
		asCSV       bool
	)

	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Print the recomputed payroll for a month",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := payroll.NewMonth(year, month)
			if err != nil {
				return err
			}

			a, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			agg := &payroll.Aggregator{Rules: a.engine, Records: a.store, Logger: a.logger}
			report, err := agg.GetMonthlyTotals(ctx, m)
			if err != nil {
				return err
			}

			teachers, err := a.store.ListTeachers(ctx)
			if err != nil {
				return err
			}
			names := make(map[payroll.TeacherID]string, len(teachers))
			for _, t := range teachers {
				names[t.ID] = t.Name
			}

			if report.Source == payroll.SourceLive {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s has no snapshot, base pay uses today's live table\n", m)
			}
			for _, id := range report.Skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: attendance %s skipped, headcount cannot be priced\n", id)
			}

			if asCSV {
				return report.WriteCSV(cmd.OutOrStdout(), names)
			}
			return printReport(cmd.OutOrStdout(), report, names)
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "year, e.g. 2025")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "print as CSV")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")

	return cmd
}

func printReport(w io.Writer, report *payroll.MonthlyReport, names map[payroll.TeacherID]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TEACHER\tSESSIONS\tBASE PAY\tSALES\tCOMMISSION\tTOTAL")

	grand := decimal.Zero
	for _, t := range report.Rows() {
		label := names[t.TeacherID]
		if label == "" {
			label = string(t.TeacherID)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\t%s\n", label, t.Sessions, t.BasePay, t.Sales, t.Commission, t.Total)
		grand = grand.Add(t.Total)
	}
	fmt.Fprintf(tw, "\t\t\t\t\t%s\n", grand)
	return tw.Flush()
}
