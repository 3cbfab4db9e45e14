package payroll

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH - Calendar month used as the snapshot key
// =============================================================================

type Month struct {
	Year  int
	Month time.Month
}

// NewMonth validates month (1-12) and returns the key.
func NewMonth(year, month int) (Month, error) {
	if month < 1 || month > 12 {
		return Month{}, &InvalidInputError{Field: "month", Value: month, Reason: "must be between 1 and 12"}
	}
	return Month{Year: year, Month: time.Month(month)}, nil
}

// MonthOf returns the calendar month t falls in, in t's location.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Start is midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is midnight UTC on the last day of the month.
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, -1)
}

// Contains compares calendar dates only; time of day and zone are ignored.
func (m Month) Contains(t time.Time) bool {
	return t.Year() == m.Year && t.Month() == m.Month
}

func (m Month) Next() Month { return MonthOf(m.Start().AddDate(0, 1, 0)) }
func (m Month) Prev() Month { return MonthOf(m.Start().AddDate(0, -1, 0)) }

func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m Month) IsZero() bool { return m.Year == 0 && m.Month == 0 }

// Validate guards Month values built without NewMonth.
func (m Month) Validate() error {
	if m.Month < time.January || m.Month > time.December {
		return &InvalidInputError{Field: "month", Value: int(m.Month), Reason: "must be between 1 and 12"}
	}
	return nil
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock returns the current instant. Tests pin it to a fixed month.
type Clock func() time.Time

// FixedClock always returns t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
