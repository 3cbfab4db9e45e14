package payroll

import (
	"context"
	"time"
)

// =============================================================================
// SNAPSHOT - Tier table frozen for a calendar month
// =============================================================================

// Snapshot is the tier table that governs Month. There is at most one per
// month; a later write in the same month replaces it in place.
type Snapshot struct {
	ID        string
	Month     Month
	Tiers     TierTable
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RuleSource says where a resolved table came from.
type RuleSource string

const (
	SourceSnapshot RuleSource = "snapshot"
	SourceLive     RuleSource = "live"
)

// Resolution is the table governing Month plus its provenance.
type Resolution struct {
	Month  Month
	Tiers  TierTable
	Source RuleSource
}

// Fallback reports whether the live table stood in for a missing snapshot.
func (r Resolution) Fallback() bool { return r.Source == SourceLive }

// =============================================================================
// RESOLVER - Read path deciding snapshot vs live
// =============================================================================

// Resolver has no side effects. A month with no snapshot resolves to
// TODAY's live table, not the table that was live during that month.
type Resolver struct {
	Store RulesStore
}

// ResolveRulesForMonth returns the snapshot for month if one exists,
// otherwise the live table (or the default table if nothing is persisted).
func (r *Resolver) ResolveRulesForMonth(ctx context.Context, month Month) (Resolution, error) {
	snap, err := r.Store.GetSnapshot(ctx, month)
	if err != nil {
		return Resolution{}, persistenceErr("get snapshot", err)
	}
	if snap != nil {
		return Resolution{Month: month, Tiers: snap.Tiers.Clone(), Source: SourceSnapshot}, nil
	}

	live, err := r.LiveTierTable(ctx)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{Month: month, Tiers: live, Source: SourceLive}, nil
}

// LiveTierTable returns the persisted live table or DefaultTierTable.
func (r *Resolver) LiveTierTable(ctx context.Context) (TierTable, error) {
	table, found, err := r.Store.LoadTierTable(ctx)
	if err != nil {
		return nil, persistenceErr("load tier table", err)
	}
	if !found {
		return DefaultTierTable(), nil
	}
	return table.Clone(), nil
}
