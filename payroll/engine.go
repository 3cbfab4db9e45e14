/*
engine.go - Operations exposed to the service layer

PURPOSE:
  Engine is the one object the service layer talks to. It owns the clock
  that decides "the current month", the lock that keeps the live table and
  the current month's snapshot in agreement, and the engine logger.

OPERATIONS:
  GetCurrentRules   live table + EnsureSnapshot(current month)
  GetRulesForMonth  pure resolver read
  SetCurrentRules   replace live table + snapshot current month, atomically

  The side-effecting read is composed from two explicit operations,
  CurrentTierTable (pure) and EnsureSnapshot (command), so each can be
  exercised on its own.

VERSIONING RULES:
  - A month becomes reproducible from the first time its rules are read
    or written. Edits made earlier in that month, before any read,
    overwrite history silently.
  - A rule update only ever rewrites the CURRENT month's snapshot.
  - A month never touched resolves to today's live table.

CONCURRENCY:
  SetCurrentTierTable and EnsureSnapshot serialize on one mutex, so the
  check-then-write in EnsureSnapshot cannot interleave with an update in
  this process. Separate processes sharing one database can still race;
  last writer wins.
*/
package payroll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine serves the live rule table and its monthly snapshots.
type Engine struct {
	store    RulesStore
	resolver *Resolver
	rates    RateTable
	clock    Clock
	loc      *time.Location
	logger   *slog.Logger

	mu sync.Mutex
}

type Option func(*Engine)

// WithClock pins "now". Defaults to time.Now.
func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

// WithLocation sets the zone that decides the current calendar month.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRates replaces the compiled-in commission table.
func WithRates(r RateTable) Option { return func(e *Engine) { e.rates = r } }

// NewEngine creates an engine over store.
func NewEngine(store RulesStore, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		resolver: &Resolver{Store: store},
		rates:    DefaultRates(),
		clock:    time.Now,
		loc:      time.Local,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rates returns a copy of the commission table.
func (e *Engine) Rates() RateTable {
	out := make(RateTable, len(e.rates))
	for k, v := range e.rates {
		out[k] = v
	}
	return out
}

// CurrentMonth is the calendar month of the engine clock in its location.
func (e *Engine) CurrentMonth() Month {
	return MonthOf(e.clock().In(e.loc))
}

// =============================================================================
// RULE STORE
// =============================================================================

// CurrentTierTable returns the live table, or DefaultTierTable when nothing
// has been persisted. It has no side effects.
func (e *Engine) CurrentTierTable(ctx context.Context) (TierTable, error) {
	return e.resolver.LiveTierTable(ctx)
}

// SetCurrentTierTable replaces the live table and the current month's
// snapshot. Both writes share a transaction when the store supports one.
func (e *Engine) SetCurrentTierTable(ctx context.Context, table TierTable) error {
	if err := table.Validate(); err != nil {
		return err
	}
	table = table.Clone()
	if table == nil {
		table = TierTable{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	month := e.CurrentMonth()
	write := func(s RulesStore) error {
		if err := s.SaveTierTable(ctx, table); err != nil {
			return persistenceErr("save tier table", err)
		}
		return e.upsertSnapshot(ctx, s, month, table)
	}

	var err error
	if txs, ok := e.store.(TxRulesStore); ok {
		err = txs.WithTx(ctx, write)
	} else {
		err = write(e.store)
	}
	if err != nil {
		e.logger.ErrorContext(ctx, "tier table update failed", slog.String("month", month.String()), slog.Any("error", err))
		return persistenceErr("set current tier table", err)
	}

	e.logger.InfoContext(ctx, "tier table updated",
		slog.String("month", month.String()),
		slog.Int("tiers", len(table)),
	)
	return nil
}

// =============================================================================
// SNAPSHOT ARCHIVE
// =============================================================================

// GetSnapshot is an exact lookup. ok is false when month has no snapshot.
func (e *Engine) GetSnapshot(ctx context.Context, month Month) (TierTable, bool, error) {
	if err := month.Validate(); err != nil {
		return nil, false, err
	}
	snap, err := e.store.GetSnapshot(ctx, month)
	if err != nil {
		return nil, false, persistenceErr("get snapshot", err)
	}
	if snap == nil {
		return nil, false, nil
	}
	return snap.Tiers.Clone(), true, nil
}

// UpsertSnapshot creates or fully replaces the snapshot for month.
// Writing the same table twice leaves the snapshot unchanged.
func (e *Engine) UpsertSnapshot(ctx context.Context, month Month, table TierTable) error {
	if err := month.Validate(); err != nil {
		return err
	}
	if err := table.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.upsertSnapshot(ctx, e.store, month, table.Clone())
}

// EnsureSnapshot captures the live table for month if month has no
// snapshot yet. captured reports whether a snapshot was written.
func (e *Engine) EnsureSnapshot(ctx context.Context, month Month) (captured bool, err error) {
	if err := month.Validate(); err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	existing, err := e.store.GetSnapshot(ctx, month)
	if err != nil {
		return false, persistenceErr("get snapshot", err)
	}
	if existing != nil {
		return false, nil
	}

	live, err := e.resolver.LiveTierTable(ctx)
	if err != nil {
		return false, err
	}
	if err := e.upsertSnapshot(ctx, e.store, month, live); err != nil {
		return false, err
	}

	e.logger.InfoContext(ctx, "captured monthly rule snapshot", slog.String("month", month.String()))
	return true, nil
}

// ListSnapshots returns the archive, newest month first.
func (e *Engine) ListSnapshots(ctx context.Context) ([]Snapshot, error) {
	snaps, err := e.store.ListSnapshots(ctx)
	if err != nil {
		return nil, persistenceErr("list snapshots", err)
	}
	return snaps, nil
}

// ResolveRulesForMonth resolves through the archive and logs when the live
// table is standing in for a missing snapshot.
func (e *Engine) ResolveRulesForMonth(ctx context.Context, month Month) (Resolution, error) {
	if err := month.Validate(); err != nil {
		return Resolution{}, err
	}
	res, err := e.resolver.ResolveRulesForMonth(ctx, month)
	if err != nil {
		return Resolution{}, err
	}
	if res.Fallback() {
		e.logger.WarnContext(ctx, "no rule snapshot for month, using live table",
			slog.String("month", month.String()),
		)
	}
	return res, nil
}

// upsertSnapshot expects e.mu to be held.
func (e *Engine) upsertSnapshot(ctx context.Context, s RulesStore, month Month, table TierTable) error {
	now := e.clock().UTC()
	snap := Snapshot{
		ID:        uuid.NewString(),
		Month:     month,
		Tiers:     table,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.UpsertSnapshot(ctx, snap); err != nil {
		return persistenceErr("upsert snapshot", err)
	}
	return nil
}

// =============================================================================
// SERVICE BOUNDARY
// =============================================================================

// GetCurrentRules returns the live table and makes sure the current month
// has a snapshot of it.
func (e *Engine) GetCurrentRules(ctx context.Context) (TierTable, error) {
	table, err := e.CurrentTierTable(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := e.EnsureSnapshot(ctx, e.CurrentMonth()); err != nil {
		return nil, err
	}
	return table, nil
}

// GetRulesForMonth is a pure read through the resolver.
func (e *Engine) GetRulesForMonth(ctx context.Context, year, month int) (TierTable, error) {
	m, err := NewMonth(year, month)
	if err != nil {
		return nil, err
	}
	res, err := e.ResolveRulesForMonth(ctx, m)
	if err != nil {
		return nil, err
	}
	return res.Tiers, nil
}

// SetCurrentRules replaces the live rules; see SetCurrentTierTable.
func (e *Engine) SetCurrentRules(ctx context.Context, table TierTable) error {
	return e.SetCurrentTierTable(ctx, table)
}
