// Package store provides in-memory payroll store implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dexsystem/coachpay/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state memoryState
}

type memoryState struct {
	tiers       payroll.TierTable
	hasTiers    bool
	snapshots   map[payroll.Month]payroll.Snapshot
	attendances map[string]payroll.Attendance
	sales       map[string]payroll.Sale
	teachers    map[payroll.TeacherID]payroll.Teacher
}

func newState() memoryState {
	return memoryState{
		snapshots:   make(map[payroll.Month]payroll.Snapshot),
		attendances: make(map[string]payroll.Attendance),
		sales:       make(map[string]payroll.Sale),
		teachers:    make(map[payroll.TeacherID]payroll.Teacher),
	}
}

func NewMemory() *Memory {
	return &Memory{state: newState()}
}

var (
	_ payroll.RulesStore  = (*Memory)(nil)
	_ payroll.RecordStore = (*Memory)(nil)
)

// --- rules ---

func (m *Memory) LoadTierTable(_ context.Context) (payroll.TierTable, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.loadTierTable()
}

func (m *Memory) SaveTierTable(_ context.Context, table payroll.TierTable) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.saveTierTable(table)
	return nil
}

func (m *Memory) GetSnapshot(_ context.Context, month payroll.Month) (*payroll.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getSnapshot(month), nil
}

func (m *Memory) UpsertSnapshot(_ context.Context, snap payroll.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.upsertSnapshot(snap)
	return nil
}

func (m *Memory) ListSnapshots(_ context.Context) ([]payroll.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listSnapshots(), nil
}

func (s *memoryState) loadTierTable() (payroll.TierTable, bool, error) {
	if !s.hasTiers {
		return nil, false, nil
	}
	return s.tiers.Clone(), true, nil
}

func (s *memoryState) saveTierTable(table payroll.TierTable) {
	s.tiers = table.Clone()
	s.hasTiers = true
}

func (s *memoryState) getSnapshot(month payroll.Month) *payroll.Snapshot {
	snap, ok := s.snapshots[month]
	if !ok {
		return nil
	}
	snap.Tiers = snap.Tiers.Clone()
	return &snap
}

// upsertSnapshot keeps the ID and CreatedAt of an existing entry.
func (s *memoryState) upsertSnapshot(snap payroll.Snapshot) {
	if existing, ok := s.snapshots[snap.Month]; ok {
		snap.ID = existing.ID
		snap.CreatedAt = existing.CreatedAt
	}
	snap.Tiers = snap.Tiers.Clone()
	s.snapshots[snap.Month] = snap
}

func (s *memoryState) listSnapshots() []payroll.Snapshot {
	out := make([]payroll.Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		snap.Tiers = snap.Tiers.Clone()
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Month.Before(out[i].Month) })
	return out
}

func (s *memoryState) clone() memoryState {
	c := newState()
	c.tiers = s.tiers.Clone()
	c.hasTiers = s.hasTiers
	for k, v := range s.snapshots {
		c.snapshots[k] = v
	}
	for k, v := range s.attendances {
		c.attendances[k] = v
	}
	for k, v := range s.sales {
		c.sales[k] = v
	}
	for k, v := range s.teachers {
		c.teachers[k] = v
	}
	return c
}

// --- records ---

func (m *Memory) SaveAttendance(_ context.Context, a payroll.Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.attendances[a.ID] = a
	return nil
}

func (m *Memory) DeleteAttendance(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.attendances[id]; !ok {
		return payroll.ErrNotFound
	}
	delete(m.state.attendances, id)
	return nil
}

func (m *Memory) AttendancesInRange(_ context.Context, from, to time.Time) ([]payroll.Attendance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payroll.Attendance
	for _, a := range m.state.attendances {
		if inRange(a.Date, from, to) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SaveSale(_ context.Context, s payroll.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.sales[s.ID] = s
	return nil
}

func (m *Memory) DeleteSale(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.sales[id]; !ok {
		return payroll.ErrNotFound
	}
	delete(m.state.sales, id)
	return nil
}

func (m *Memory) SalesInRange(_ context.Context, from, to time.Time) ([]payroll.Sale, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payroll.Sale
	for _, s := range m.state.sales {
		if inRange(s.Date, from, to) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) SaveTeacher(_ context.Context, t payroll.Teacher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.state.teachers {
		if id != t.ID && existing.Name == t.Name {
			return &payroll.InvalidInputError{Field: "name", Value: t.Name, Reason: "already exists"}
		}
	}
	m.state.teachers[t.ID] = t
	return nil
}

func (m *Memory) ListTeachers(_ context.Context) ([]payroll.Teacher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]payroll.Teacher, 0, len(m.state.teachers))
	for _, t := range m.state.teachers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// inRange compares calendar dates, inclusive on both ends.
func inRange(t, from, to time.Time) bool {
	d := dateOnly(t)
	return !d.Before(dateOnly(from)) && !d.After(dateOnly(to))
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

var _ payroll.TxRulesStore = (*TxMemory)(nil)

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(payroll.RulesStore) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	saved := tm.state.clone()
	if err := fn(&txMemoryView{state: &tm.state}); err != nil {
		tm.state = saved
		return err
	}
	return nil
}

// txMemoryView writes straight into the locked state.
type txMemoryView struct {
	state *memoryState
}

func (tv *txMemoryView) LoadTierTable(_ context.Context) (payroll.TierTable, bool, error) {
	return tv.state.loadTierTable()
}

func (tv *txMemoryView) SaveTierTable(_ context.Context, table payroll.TierTable) error {
	tv.state.saveTierTable(table)
	return nil
}

func (tv *txMemoryView) GetSnapshot(_ context.Context, month payroll.Month) (*payroll.Snapshot, error) {
	return tv.state.getSnapshot(month), nil
}

func (tv *txMemoryView) UpsertSnapshot(_ context.Context, snap payroll.Snapshot) error {
	tv.state.upsertSnapshot(snap)
	return nil
}

func (tv *txMemoryView) ListSnapshots(_ context.Context) ([]payroll.Snapshot, error) {
	return tv.state.listSnapshots(), nil
}
