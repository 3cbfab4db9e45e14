/*
Package sqlite provides a SQLite-backed implementation of the payroll stores.

PURPOSE:
  Implements payroll.TxRulesStore (live tier table + monthly snapshot
  archive) and payroll.RecordStore (teachers, attendances, sales) on one
  SQLite database.

KEY TABLES:
  salary_rules:          single-row live tier table (id = 1)
  monthly_salary_rules:  one tier table per (year, month), UNIQUE
  teachers:              report labels
  attendances:           sessions with pay stamped at record time
  sales:                 course sales with commission stamped at record time

TIER TABLE ENCODING:
  Both salary_rules.rules_json and monthly_salary_rules.rules_json hold the
  JSON text from payroll.EncodeTierTable.

MONEY:
  Decimal columns are TEXT holding decimal.Decimal.String(), never REAL.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction; the tx view never locks again.

USAGE:
  store, err := sqlite.New("./data/coachpay.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := payroll.NewEngine(store)

SEE ALSO:
  - payroll/store.go: Interface definitions
  - payroll/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/dexsystem/coachpay/payroll"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ payroll.TxRulesStore = (*Store)(nil)
	_ payroll.RecordStore  = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Live tier table (single row)
	CREATE TABLE IF NOT EXISTS salary_rules (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		rules_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Monthly snapshots: at most one per calendar month
	CREATE TABLE IF NOT EXISTS monthly_salary_rules (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
		rules_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(year, month)
	);

	CREATE TABLE IF NOT EXISTS teachers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS attendances (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		teacher_id TEXT NOT NULL,
		course_id TEXT NOT NULL,
		headcount INTEGER NOT NULL,
		pay TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attendances_date
		ON attendances(date);
	CREATE INDEX IF NOT EXISTS idx_attendances_teacher
		ON attendances(teacher_id, date);

	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		teacher_id TEXT NOT NULL,
		plan TEXT NOT NULL,
		amount TEXT NOT NULL,
		quantity TEXT NOT NULL,
		commission TEXT NOT NULL,
		note TEXT,
		custom_amount TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sales_date
		ON sales(date);
	CREATE INDEX IF NOT EXISTS idx_sales_teacher
		ON sales(teacher_id, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// RULES STORE (payroll.RulesStore interface)
// =============================================================================

func (s *Store) LoadTierTable(ctx context.Context) (payroll.TierTable, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadTierTable(ctx, s.db)
}

func (s *Store) SaveTierTable(ctx context.Context, table payroll.TierTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveTierTable(ctx, s.db, table)
}

func (s *Store) GetSnapshot(ctx context.Context, month payroll.Month) (*payroll.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getSnapshot(ctx, s.db, month)
}

func (s *Store) UpsertSnapshot(ctx context.Context, snap payroll.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertSnapshot(ctx, s.db, snap)
}

func (s *Store) ListSnapshots(ctx context.Context) ([]payroll.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listSnapshots(ctx, s.db)
}

func loadTierTable(ctx context.Context, db execer) (payroll.TierTable, bool, error) {
	var rulesJSON string
	err := db.QueryRowContext(ctx, "SELECT rules_json FROM salary_rules WHERE id = 1").Scan(&rulesJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load tier table: %w", err)
	}

	table, err := payroll.DecodeTierTable(rulesJSON)
	if err != nil {
		return nil, false, err
	}
	return table, true, nil
}

func saveTierTable(ctx context.Context, db execer, table payroll.TierTable) error {
	rulesJSON, err := payroll.EncodeTierTable(table)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO salary_rules (id, rules_json, updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rules_json = excluded.rules_json,
			updated_at = excluded.updated_at
	`
	if _, err := db.ExecContext(ctx, query, rulesJSON, nowString()); err != nil {
		return fmt.Errorf("failed to save tier table: %w", err)
	}
	return nil
}

func getSnapshot(ctx context.Context, db execer, month payroll.Month) (*payroll.Snapshot, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, year, month, rules_json, created_at, updated_at
		 FROM monthly_salary_rules WHERE year = ? AND month = ?`,
		month.Year, int(month.Month),
	)

	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// upsertSnapshot keeps the original id and created_at on conflict.
func upsertSnapshot(ctx context.Context, db execer, snap payroll.Snapshot) error {
	rulesJSON, err := payroll.EncodeTierTable(snap.Tiers)
	if err != nil {
		return err
	}

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	createdAt, updatedAt := snap.CreatedAt, snap.UpdatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := `
		INSERT INTO monthly_salary_rules (id, year, month, rules_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(year, month) DO UPDATE SET
			rules_json = excluded.rules_json,
			updated_at = excluded.updated_at
	`
	_, err = db.ExecContext(ctx, query,
		snap.ID, snap.Month.Year, int(snap.Month.Month), rulesJSON,
		createdAt.UTC().Format(time.RFC3339), updatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot %s: %w", snap.Month, err)
	}
	return nil
}

func listSnapshots(ctx context.Context, db execer) ([]payroll.Snapshot, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, year, month, rules_json, created_at, updated_at
		 FROM monthly_salary_rules ORDER BY year DESC, month DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []payroll.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (payroll.Snapshot, error) {
	var (
		snap                 payroll.Snapshot
		month                int
		rulesJSON            string
		createdAt, updatedAt string
	)
	if err := row.Scan(&snap.ID, &snap.Month.Year, &month, &rulesJSON, &createdAt, &updatedAt); err != nil {
		return snap, err
	}
	snap.Month.Month = time.Month(month)

	tiers, err := payroll.DecodeTierTable(rulesJSON)
	if err != nil {
		return snap, fmt.Errorf("snapshot %s: %w", snap.Month, err)
	}
	snap.Tiers = tiers
	snap.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	snap.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return snap, nil
}

// =============================================================================
// TRANSACTIONAL STORE (payroll.TxRulesStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(payroll.RulesStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) LoadTierTable(ctx context.Context) (payroll.TierTable, bool, error) {
	return loadTierTable(ctx, ts.tx)
}

func (ts *txStore) SaveTierTable(ctx context.Context, table payroll.TierTable) error {
	return saveTierTable(ctx, ts.tx, table)
}

func (ts *txStore) GetSnapshot(ctx context.Context, month payroll.Month) (*payroll.Snapshot, error) {
	return getSnapshot(ctx, ts.tx, month)
}

func (ts *txStore) UpsertSnapshot(ctx context.Context, snap payroll.Snapshot) error {
	return upsertSnapshot(ctx, ts.tx, snap)
}

func (ts *txStore) ListSnapshots(ctx context.Context) ([]payroll.Snapshot, error) {
	return listSnapshots(ctx, ts.tx)
}

// =============================================================================
// TEACHER STORE
// =============================================================================

// SaveTeacher saves a teacher.
func (s *Store) SaveTeacher(ctx context.Context, t payroll.Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO teachers (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name
	`
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query, t.ID, t.Name, createdAt.UTC().Format(time.RFC3339))
	if err != nil {
		if isUniqueConstraintError(err) {
			return &payroll.InvalidInputError{Field: "name", Value: t.Name, Reason: "already exists"}
		}
		return fmt.Errorf("failed to save teacher: %w", err)
	}
	return nil
}

// ListTeachers returns all teachers ordered by name.
func (s *Store) ListTeachers(ctx context.Context) ([]payroll.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at FROM teachers ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var teachers []payroll.Teacher
	for rows.Next() {
		var t payroll.Teacher
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Name, &createdAt); err != nil {
			return nil, err
		}
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		teachers = append(teachers, t)
	}
	return teachers, rows.Err()
}

// =============================================================================
// ATTENDANCE STORE
// =============================================================================

// SaveAttendance inserts an attendance record. Records are never updated.
func (s *Store) SaveAttendance(ctx context.Context, a payroll.Attendance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO attendances (id, date, teacher_id, course_id, headcount, pay, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Date.Format(dateLayout), a.TeacherID, a.CourseID, a.Headcount,
		a.PayAtRecordTime.String(), createdAtString(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save attendance: %w", err)
	}
	return nil
}

// DeleteAttendance removes an attendance record.
func (s *Store) DeleteAttendance(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteByID(ctx, s.db, "attendances", id)
}

// AttendancesInRange returns attendances dated in [from, to].
func (s *Store) AttendancesInRange(ctx context.Context, from, to time.Time) ([]payroll.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, teacher_id, course_id, headcount, pay, created_at
		FROM attendances
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, id ASC
	`, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query attendances: %w", err)
	}
	defer rows.Close()

	var out []payroll.Attendance
	for rows.Next() {
		var (
			a                    payroll.Attendance
			date, pay, createdAt string
		)
		if err := rows.Scan(&a.ID, &date, &a.TeacherID, &a.CourseID, &a.Headcount, &pay, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		a.Date, _ = time.Parse(dateLayout, date)
		a.PayAtRecordTime = parseDecimal(pay)
		a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// =============================================================================
// SALES STORE
// =============================================================================

// SaveSale inserts a sale record. Records are never updated.
func (s *Store) SaveSale(ctx context.Context, sale payroll.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO sales (id, date, teacher_id, plan, amount, quantity, commission, note, custom_amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		sale.ID, sale.Date.Format(dateLayout), sale.TeacherID, sale.Plan,
		sale.Amount.String(), sale.Quantity.String(), sale.CommissionAtRecordTime.String(),
		nullString(sale.Note), sale.CustomAmount.String(), createdAtString(sale.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save sale: %w", err)
	}
	return nil
}

// DeleteSale removes a sale record.
func (s *Store) DeleteSale(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteByID(ctx, s.db, "sales", id)
}

// SalesInRange returns sales dated in [from, to].
func (s *Store) SalesInRange(ctx context.Context, from, to time.Time) ([]payroll.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, teacher_id, plan, amount, quantity, commission, note, custom_amount, created_at
		FROM sales
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, id ASC
	`, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var out []payroll.Sale
	for rows.Next() {
		var (
			sale                               payroll.Sale
			date, amount, quantity, commission string
			customAmount, createdAt            string
			note                               sql.NullString
		)
		if err := rows.Scan(&sale.ID, &date, &sale.TeacherID, &sale.Plan, &amount, &quantity,
			&commission, &note, &customAmount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sale.Date, _ = time.Parse(dateLayout, date)
		sale.Amount = parseDecimal(amount)
		sale.Quantity = parseDecimal(quantity)
		sale.CommissionAtRecordTime = parseDecimal(commission)
		sale.Note = note.String
		sale.CustomAmount = parseDecimal(customAmount)
		sale.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, sale)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// deleteByID returns payroll.ErrNotFound when no row matched.
func deleteByID(ctx context.Context, db execer, table, id string) error {
	res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", strings.TrimSuffix(table, "s"), id, payroll.ErrNotFound)
	}
	return nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func createdAtString(t time.Time) string {
	if t.IsZero() {
		return nowString()
	}
	return t.UTC().Format(time.RFC3339)
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
