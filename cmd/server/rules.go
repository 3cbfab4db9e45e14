package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dexsystem/coachpay/payroll"
)

func NewRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and replace the tier table",
	}

	cmd.AddCommand(newRulesShowCommand())
	cmd.AddCommand(newRulesSetCommand())
	cmd.AddCommand(newRulesHistoryCommand())

	return cmd
}

func newRulesShowCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the live tier table (pins the current month)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			tiers, err := a.engine.GetCurrentRules(cmd.Context())
			if err != nil {
				return err
			}
			return printTiers(cmd.OutOrStdout(), tiers, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")

	return cmd
}

func newRulesSetCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the live tier table and the current month's snapshot",
		Long: `Reads a tier table from --file ("-" for stdin). Either a bare array
  [{"min":1,"max":5,"amount":500}, ...]
or an object
  {"tiers": [...]}
is accepted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			tiers, err := readTierFile(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			a, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.SetCurrentRules(cmd.Context(), tiers); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rules updated for %s (%d tiers)\n", a.engine.CurrentMonth(), len(tiers))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "tier table JSON file, or - for stdin")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func newRulesHistoryCommand() *cobra.Command {
	var (
		year, month int
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the tier table that applies to a month",
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

			res, err := a.engine.ResolveRulesForMonth(cmd.Context(), m)
			if err != nil {
				return err
			}
			if res.Fallback() {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s has no snapshot, showing today's live table\n", m)
			}
			return printTiers(cmd.OutOrStdout(), res.Tiers, asJSON)
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "year, e.g. 2025")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")

	return cmd
}

func readTierFile(stdin io.Reader, path string) (payroll.TierTable, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read tier file: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") {
		var wrapped struct {
			Tiers payroll.TierTable `json:"tiers"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err != nil {
			return nil, fmt.Errorf("parse tier file: %w", err)
		}
		if wrapped.Tiers == nil {
			return nil, fmt.Errorf("parse tier file: missing \"tiers\"")
		}
		return wrapped.Tiers, nil
	}
	return payroll.DecodeTierTable(text)
}

func printTiers(w io.Writer, tiers payroll.TierTable, asJSON bool) error {
	if asJSON {
		text, err := payroll.EncodeTierTable(tiers)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, text)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "MIN\tMAX\tAMOUNT\t")
	for _, t := range tiers {
		fmt.Fprintf(tw, "%d\t%d\t%s\t\n", t.Min, t.Max, t.Amount)
	}
	return tw.Flush()
}
