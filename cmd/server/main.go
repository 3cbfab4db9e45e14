/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the coaching pay server and its admin commands.

COMMANDS:
  serve            Start the HTTP API (graceful shutdown on SIGINT/SIGTERM)
  rules show       Print the live tier table
  rules set        Replace the live tier table from a JSON file
  rules history    Print the tier table that applies to a month
  totals           Print the recomputed payroll for a month

CONFIGURATION:
  --config points at a YAML file (default: config.yaml, optional). Every
  key can be overridden with COACHPAY_* environment variables, e.g.
    COACHPAY_DATABASE_PATH=":memory:" coachpay serve

EXAMPLES:
  # Run with file database
  coachpay serve --config=./config.yaml

  # Freeze new rules for the current month
  coachpay rules set --file=tiers.json

  # Export last month's payroll
  coachpay totals --year=2025 --month=3 --csv > payroll.csv

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration keys
  - store/sqlite/sqlite.go: Database implementation
*/
package main

func main() {
	Execute()
}
