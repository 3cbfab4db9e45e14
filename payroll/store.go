/*
store.go - Persistence interfaces for rules, snapshots and records

PURPOSE:
  Defines the boundary between the rule engine and whatever holds its
  state. The engine never owns storage; it is handed a RulesStore and,
  for reports, a RecordSource.

KEY INTERFACES:
  RulesStore:   live tier table + monthly snapshot archive
  TxRulesStore: RulesStore with atomic multi-write support
  RecordSource: read access to attendances and sales by date range
  RecordStore:  RecordSource plus the writes used by the recorder

ATOMIC RULE UPDATES:
  Replacing the live table also replaces the current month's snapshot.
  When the store implements TxRulesStore both writes run inside WithTx:
  either both land or neither does.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - payroll/store/memory.go: in-memory for tests and dev

SEE ALSO:
  - engine.go: uses these interfaces
*/
package payroll

import (
	"context"
	"time"
)

// =============================================================================
// RULES STORE - Live table and snapshot archive
// =============================================================================

type RulesStore interface {
	// LoadTierTable returns the persisted live table. found is false when
	// nothing has been saved yet.
	LoadTierTable(ctx context.Context) (table TierTable, found bool, err error)

	// SaveTierTable replaces the live table wholesale.
	SaveTierTable(ctx context.Context, table TierTable) error

	// GetSnapshot returns nil, nil when month has no snapshot.
	GetSnapshot(ctx context.Context, month Month) (*Snapshot, error)

	// UpsertSnapshot creates or fully replaces the snapshot for its month.
	UpsertSnapshot(ctx context.Context, snap Snapshot) error

	// ListSnapshots returns every snapshot, newest month first.
	ListSnapshots(ctx context.Context) ([]Snapshot, error)
}

// TxRulesStore wraps RulesStore with transaction support.
type TxRulesStore interface {
	RulesStore

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(RulesStore) error) error
}

// =============================================================================
// RECORDS
// =============================================================================

// RecordSource lists records whose date falls in [from, to], inclusive.
type RecordSource interface {
	AttendancesInRange(ctx context.Context, from, to time.Time) ([]Attendance, error)
	SalesInRange(ctx context.Context, from, to time.Time) ([]Sale, error)
}

type RecordStore interface {
	RecordSource

	SaveAttendance(ctx context.Context, a Attendance) error
	DeleteAttendance(ctx context.Context, id string) error
	SaveSale(ctx context.Context, s Sale) error
	DeleteSale(ctx context.Context, id string) error

	SaveTeacher(ctx context.Context, t Teacher) error
	ListTeachers(ctx context.Context) ([]Teacher, error)
}
