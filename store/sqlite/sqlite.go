/*
Package sqlite provides the SQLite-backed implementation of leave.TxStore.

PURPOSE:
  Persists meal plans, memberships, leave requests, mess off days and the
  extension tracking ledger. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

APPEND-ONLY ENFORCEMENT:
  The extension_tracking table has INSERT and SELECT only. The unique index
  on (leave_id, plan_id, revision) is the idempotency guard: a duplicate
  application of the same revision fails at the database.

OPTIMISTIC VERSIONING:
  UpdateMembership carries "WHERE version = ?" and reports
  engine.ErrConcurrentModification when no row matched.

JSON COLUMNS:
  Meal sets, plan breakdowns and rule configs are stored as JSON text.
  They are display/audit payloads, never queried by field.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block
  behind the single writer.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/messkit/leave-engine/engine"
	"github.com/messkit/leave-engine/leave"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every statement can
// run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements leave.TxStore on SQLite.
type Store struct {
	db *sql.DB
	q  querier
	mu sync.Mutex
}

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, q: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meal_plans (
		id TEXT PRIMARY KEY,
		mess_id TEXT NOT NULL,
		name TEXT NOT NULL,
		meals_per_day INTEGER NOT NULL,
		meal_options_json TEXT NOT NULL,
		pricing_json TEXT NOT NULL,
		leave_rules_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_meal_plans_mess ON meal_plans(mess_id);

	CREATE TABLE IF NOT EXISTS memberships (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		mess_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		status TEXT NOT NULL,
		subscription_start TEXT,
		subscription_end TEXT,
		payment_amount TEXT NOT NULL,
		leave_extension_meals INTEGER NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memberships_user_plan ON memberships(user_id, plan_id);

	CREATE TABLE IF NOT EXISTS leaves (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		mess_id TEXT NOT NULL,
		plan_ids_json TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		start_meals_json TEXT NOT NULL,
		end_meals_json TEXT NOT NULL,
		middle_meals_json TEXT NOT NULL,
		reason TEXT,
		status TEXT NOT NULL,
		total_missed_meals INTEGER NOT NULL DEFAULT 0,
		meal_breakdown_json TEXT NOT NULL,
		plan_breakdowns_json TEXT NOT NULL,
		estimated_savings TEXT NOT NULL,
		extension_meals INTEGER NOT NULL DEFAULT 0,
		extension_days INTEGER NOT NULL DEFAULT 0,
		ignored_days INTEGER NOT NULL DEFAULT 0,
		original_end TEXT NOT NULL,
		revision INTEGER NOT NULL DEFAULT 1,
		extension_applied INTEGER NOT NULL DEFAULT 0,
		approved_by TEXT,
		rejection_reason TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_leaves_user_status ON leaves(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_leaves_user_dates ON leaves(user_id, start_date, end_date);

	CREATE TABLE IF NOT EXISTS mess_off_days (
		id TEXT PRIMARY KEY,
		mess_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		start_meals_json TEXT NOT NULL,
		end_meals_json TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_off_days_mess_dates ON mess_off_days(mess_id, start_date, end_date);

	CREATE TABLE IF NOT EXISTS extension_tracking (
		id TEXT PRIMARY KEY,
		leave_id TEXT NOT NULL,
		plan_id TEXT NOT NULL,
		membership_id TEXT NOT NULL,
		original_end TEXT NOT NULL,
		new_end TEXT NOT NULL,
		meals INTEGER NOT NULL,
		revision INTEGER NOT NULL,
		applied_at TEXT NOT NULL,
		UNIQUE(leave_id, plan_id, revision)
	);
	CREATE INDEX IF NOT EXISTS idx_tracking_leave ON extension_tracking(leave_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn against a transactional view of the store.
func (s *Store) WithTx(ctx context.Context, fn func(store leave.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Store{db: s.db, q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// LEAVES
// =============================================================================

const leaveColumns = `id, user_id, mess_id, plan_ids_json, start_date, end_date,
	start_meals_json, end_meals_json, middle_meals_json, reason, status,
	total_missed_meals, meal_breakdown_json, plan_breakdowns_json,
	estimated_savings, extension_meals, extension_days, ignored_days,
	original_end, revision, extension_applied, approved_by, rejection_reason,
	created_at, updated_at`

func (s *Store) SaveLeave(ctx context.Context, l *leave.LeaveRequest) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO leaves (`+leaveColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		string(l.ID), string(l.UserID), string(l.MessID), mustJSON(l.PlanIDs),
		l.Start.String(), l.End.String(),
		mustJSON(l.StartMeals), mustJSON(l.EndMeals), mustJSON(l.MiddleMeals),
		l.Reason, string(l.Status), l.TotalMissedMeals,
		mustJSON(l.MealBreakdown), mustJSON(l.PlanBreakdowns),
		l.EstimatedSavings.String(), l.ExtensionMeals, l.ExtensionDays,
		l.IgnoredDays, l.OriginalEnd.String(), l.Revision,
		boolInt(l.ExtensionApplied), l.ApprovedBy, l.RejectionReason,
		l.CreatedAt.Format(time.RFC3339), l.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save leave: %w", err)
	}
	return nil
}

func (s *Store) UpdateLeave(ctx context.Context, l *leave.LeaveRequest) error {
	res, err := s.q.ExecContext(ctx, `UPDATE leaves SET
		end_date=?, reason=?, status=?, total_missed_meals=?,
		meal_breakdown_json=?, plan_breakdowns_json=?, estimated_savings=?,
		extension_meals=?, extension_days=?, ignored_days=?, revision=?,
		extension_applied=?, approved_by=?, rejection_reason=?, updated_at=?
		WHERE id=?`,
		l.End.String(), l.Reason, string(l.Status), l.TotalMissedMeals,
		mustJSON(l.MealBreakdown), mustJSON(l.PlanBreakdowns), l.EstimatedSavings.String(),
		l.ExtensionMeals, l.ExtensionDays, l.IgnoredDays, l.Revision,
		boolInt(l.ExtensionApplied), l.ApprovedBy, l.RejectionReason,
		l.UpdatedAt.Format(time.RFC3339), string(l.ID))
	if err != nil {
		return fmt.Errorf("failed to update leave: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return engine.ErrLeaveNotFound
	}
	return nil
}

func (s *Store) GetLeave(ctx context.Context, id leave.LeaveID) (*leave.LeaveRequest, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+leaveColumns+` FROM leaves WHERE id = ?`, string(id))
	l, err := scanLeave(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrLeaveNotFound
	}
	return l, err
}

func (s *Store) ListLeavesByUser(ctx context.Context, userID leave.UserID) ([]*leave.LeaveRequest, error) {
	return s.queryLeaves(ctx,
		`SELECT `+leaveColumns+` FROM leaves WHERE user_id = ? ORDER BY created_at`,
		string(userID))
}

func (s *Store) FindActiveLeaves(ctx context.Context, userID leave.UserID, w engine.Window) ([]*leave.LeaveRequest, error) {
	// Inclusive intersection: existing.start <= w.end AND existing.end >= w.start.
	// ISO dates compare correctly as text.
	return s.queryLeaves(ctx,
		`SELECT `+leaveColumns+` FROM leaves
		 WHERE user_id = ? AND status IN ('pending','approved')
		   AND start_date <= ? AND end_date >= ?
		 ORDER BY created_at`,
		string(userID), w.End.String(), w.Start.String())
}

func (s *Store) queryLeaves(ctx context.Context, query string, args ...any) ([]*leave.LeaveRequest, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaves: %w", err)
	}
	defer rows.Close()

	var out []*leave.LeaveRequest
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLeave(r rowScanner) (*leave.LeaveRequest, error) {
	var (
		l                             leave.LeaveRequest
		planIDs, start, end, origEnd  string
		startM, endM, middleM         string
		mealBD, planBD, savings       string
		reason, approvedBy, rejReason sql.NullString
		applied                       int
		createdAt, updatedAt          string
	)
	err := r.Scan(&l.ID, &l.UserID, &l.MessID, &planIDs, &start, &end,
		&startM, &endM, &middleM, &reason, &l.Status,
		&l.TotalMissedMeals, &mealBD, &planBD,
		&savings, &l.ExtensionMeals, &l.ExtensionDays, &l.IgnoredDays,
		&origEnd, &l.Revision, &applied, &approvedBy, &rejReason,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(planIDs), &l.PlanIDs); err != nil {
		return nil, fmt.Errorf("failed to decode plan ids: %w", err)
	}
	if l.Start, err = engine.ParseDate(start); err != nil {
		return nil, err
	}
	if l.End, err = engine.ParseDate(end); err != nil {
		return nil, err
	}
	if l.OriginalEnd, err = engine.ParseDate(origEnd); err != nil {
		return nil, err
	}
	if err := decodeJSON(startM, &l.StartMeals); err != nil {
		return nil, err
	}
	if err := decodeJSON(endM, &l.EndMeals); err != nil {
		return nil, err
	}
	if err := decodeJSON(middleM, &l.MiddleMeals); err != nil {
		return nil, err
	}
	if err := decodeJSON(mealBD, &l.MealBreakdown); err != nil {
		return nil, err
	}
	if err := decodeJSON(planBD, &l.PlanBreakdowns); err != nil {
		return nil, err
	}
	if l.EstimatedSavings, err = decimal.NewFromString(savings); err != nil {
		return nil, fmt.Errorf("failed to decode savings: %w", err)
	}
	l.Reason = reason.String
	l.ApprovedBy = approvedBy.String
	l.RejectionReason = rejReason.String
	l.ExtensionApplied = applied != 0
	if l.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, err
	}
	if l.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// =============================================================================
// MEAL PLANS
// =============================================================================

func (s *Store) SavePlan(ctx context.Context, p *leave.MealPlan) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO meal_plans
		(id, mess_id, name, meals_per_day, meal_options_json, pricing_json, leave_rules_json)
		VALUES (?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, meals_per_day=excluded.meals_per_day,
			meal_options_json=excluded.meal_options_json,
			pricing_json=excluded.pricing_json,
			leave_rules_json=excluded.leave_rules_json`,
		string(p.ID), string(p.MessID), p.Name, p.MealsPerDay,
		mustJSON(p.MealOptions), mustJSON(p.Pricing), mustJSON(p.LeaveRules))
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

const planColumns = `id, mess_id, name, meals_per_day, meal_options_json, pricing_json, leave_rules_json`

func (s *Store) GetPlan(ctx context.Context, id leave.PlanID) (*leave.MealPlan, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+planColumns+` FROM meal_plans WHERE id = ?`, string(id))
	p, err := scanPlan(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrPlanNotFound
	}
	return p, err
}

func (s *Store) ListPlans(ctx context.Context, messID leave.MessID) ([]*leave.MealPlan, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+planColumns+` FROM meal_plans WHERE mess_id = ? ORDER BY id`, string(messID))
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var out []*leave.MealPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(r rowScanner) (*leave.MealPlan, error) {
	var (
		p                       leave.MealPlan
		options, pricing, rules string
	)
	if err := r.Scan(&p.ID, &p.MessID, &p.Name, &p.MealsPerDay, &options, &pricing, &rules); err != nil {
		return nil, err
	}
	if err := decodeJSON(options, &p.MealOptions); err != nil {
		return nil, err
	}
	if err := decodeJSON(pricing, &p.Pricing); err != nil {
		return nil, err
	}
	if err := decodeJSON(rules, &p.LeaveRules); err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// MEMBERSHIPS
// =============================================================================

const membershipColumns = `id, user_id, mess_id, plan_id, status,
	subscription_start, subscription_end, payment_amount,
	leave_extension_meals, version, created_at`

func (s *Store) SaveMembership(ctx context.Context, m *leave.Membership) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO memberships (`+membershipColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		string(m.ID), string(m.UserID), string(m.MessID), string(m.PlanID),
		string(m.Status), dateOrEmpty(m.SubscriptionStart), dateOrEmpty(m.SubscriptionEnd),
		m.PaymentAmount.String(), m.LeaveExtensionMeals, m.Version,
		m.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save membership: %w", err)
	}
	return nil
}

func (s *Store) GetMembership(ctx context.Context, userID leave.UserID, planID leave.PlanID) (*leave.Membership, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+membershipColumns+` FROM memberships
		WHERE user_id = ? AND plan_id = ? AND status IN ('active','pending')
		ORDER BY created_at DESC LIMIT 1`,
		string(userID), string(planID))
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrMembershipNotFound
	}
	return m, err
}

func (s *Store) GetMembershipByID(ctx context.Context, id leave.MembershipID) (*leave.Membership, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+membershipColumns+` FROM memberships WHERE id = ?`, string(id))
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrMembershipNotFound
	}
	return m, err
}

func (s *Store) ListMemberships(ctx context.Context, userID leave.UserID) ([]*leave.Membership, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+membershipColumns+` FROM memberships
		WHERE user_id = ? ORDER BY id`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	var out []*leave.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) ListExpiredMemberships(ctx context.Context, asOf engine.Date) ([]*leave.Membership, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+membershipColumns+` FROM memberships
		WHERE status = 'active' AND subscription_end != '' AND subscription_end < ?
		ORDER BY id`, asOf.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query expired memberships: %w", err)
	}
	defer rows.Close()

	var out []*leave.Membership
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpdateMembership writes only if the caller still holds the current
// version, then increments it.
func (s *Store) UpdateMembership(ctx context.Context, m *leave.Membership) error {
	res, err := s.q.ExecContext(ctx, `UPDATE memberships SET
		status=?, subscription_start=?, subscription_end=?,
		leave_extension_meals=?, version=version+1
		WHERE id=? AND version=?`,
		string(m.Status), dateOrEmpty(m.SubscriptionStart), dateOrEmpty(m.SubscriptionEnd),
		m.LeaveExtensionMeals, string(m.ID), m.Version)
	if err != nil {
		return fmt.Errorf("failed to update membership: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Either the row is gone or another writer won the version race.
		if _, err := s.GetMembershipByID(ctx, m.ID); err != nil {
			return err
		}
		return engine.ErrConcurrentModification
	}
	m.Version++
	return nil
}

func scanMembership(r rowScanner) (*leave.Membership, error) {
	var (
		m               leave.Membership
		subStart        sql.NullString
		subEnd          sql.NullString
		amount          string
		createdAt       string
	)
	err := r.Scan(&m.ID, &m.UserID, &m.MessID, &m.PlanID, &m.Status,
		&subStart, &subEnd, &amount, &m.LeaveExtensionMeals, &m.Version, &createdAt)
	if err != nil {
		return nil, err
	}
	if m.SubscriptionStart, err = dateFromNull(subStart); err != nil {
		return nil, err
	}
	if m.SubscriptionEnd, err = dateFromNull(subEnd); err != nil {
		return nil, err
	}
	if m.PaymentAmount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to decode payment amount: %w", err)
	}
	if m.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, err
	}
	return &m, nil
}

// =============================================================================
// MESS OFF DAYS
// =============================================================================

const offDayColumns = `id, mess_id, start_date, end_date, start_meals_json, end_meals_json, status, created_at`

func (s *Store) SaveOffDay(ctx context.Context, o *leave.MessOffDay) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO mess_off_days (`+offDayColumns+`)
		VALUES (?,?,?,?,?,?,?,?)`,
		o.ID, string(o.MessID), o.Start.String(), o.End.String(),
		mustJSON(o.StartMeals), mustJSON(o.EndMeals), string(o.Status),
		o.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save off day: %w", err)
	}
	return nil
}

func (s *Store) GetOffDay(ctx context.Context, id string) (*leave.MessOffDay, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+offDayColumns+` FROM mess_off_days WHERE id = ?`, id)
	o, err := scanOffDay(row)
	if err == sql.ErrNoRows {
		return nil, engine.ErrOffDayNotFound
	}
	return o, err
}

func (s *Store) UpdateOffDay(ctx context.Context, o *leave.MessOffDay) error {
	res, err := s.q.ExecContext(ctx, `UPDATE mess_off_days SET
		start_date=?, end_date=?, start_meals_json=?, end_meals_json=?, status=?
		WHERE id=?`,
		o.Start.String(), o.End.String(), mustJSON(o.StartMeals), mustJSON(o.EndMeals),
		string(o.Status), o.ID)
	if err != nil {
		return fmt.Errorf("failed to update off day: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return engine.ErrOffDayNotFound
	}
	return nil
}

func (s *Store) ListOffDays(ctx context.Context, messID leave.MessID, w engine.Window) ([]*leave.MessOffDay, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+offDayColumns+` FROM mess_off_days
		WHERE mess_id = ? AND start_date <= ? AND end_date >= ?
		ORDER BY start_date`,
		string(messID), w.End.String(), w.Start.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query off days: %w", err)
	}
	defer rows.Close()

	var out []*leave.MessOffDay
	for rows.Next() {
		o, err := scanOffDay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOffDay(r rowScanner) (*leave.MessOffDay, error) {
	var (
		o            leave.MessOffDay
		start, end   string
		startM, endM string
		createdAt    string
	)
	err := r.Scan(&o.ID, &o.MessID, &start, &end, &startM, &endM, &o.Status, &createdAt)
	if err != nil {
		return nil, err
	}
	if o.Start, err = engine.ParseDate(start); err != nil {
		return nil, err
	}
	if o.End, err = engine.ParseDate(end); err != nil {
		return nil, err
	}
	if err := decodeJSON(startM, &o.StartMeals); err != nil {
		return nil, err
	}
	if err := decodeJSON(endM, &o.EndMeals); err != nil {
		return nil, err
	}
	if o.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// =============================================================================
// EXTENSION TRACKING
// =============================================================================

func (s *Store) AppendTracking(ctx context.Context, e leave.ExtensionTrackingEntry) error {
	_, err := s.q.ExecContext(ctx, `INSERT INTO extension_tracking
		(id, leave_id, plan_id, membership_id, original_end, new_end, meals, revision, applied_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		e.ID, string(e.LeaveID), string(e.PlanID), string(e.MembershipID),
		e.OriginalEnd.String(), e.NewEnd.String(), e.Meals, e.Revision,
		e.AppliedAt.Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return engine.ErrDuplicateTracking
		}
		return fmt.Errorf("failed to append tracking entry: %w", err)
	}
	return nil
}

func (s *Store) ListTracking(ctx context.Context, leaveID leave.LeaveID) ([]leave.ExtensionTrackingEntry, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT id, leave_id, plan_id, membership_id,
		original_end, new_end, meals, revision, applied_at
		FROM extension_tracking WHERE leave_id = ?
		ORDER BY revision, applied_at`, string(leaveID))
	if err != nil {
		return nil, fmt.Errorf("failed to query tracking entries: %w", err)
	}
	defer rows.Close()

	var out []leave.ExtensionTrackingEntry
	for rows.Next() {
		var (
			e               leave.ExtensionTrackingEntry
			origEnd, newEnd string
			appliedAt       string
		)
		err := rows.Scan(&e.ID, &e.LeaveID, &e.PlanID, &e.MembershipID,
			&origEnd, &newEnd, &e.Meals, &e.Revision, &appliedAt)
		if err != nil {
			return nil, err
		}
		if e.OriginalEnd, err = engine.ParseDate(origEnd); err != nil {
			return nil, err
		}
		if e.NewEnd, err = engine.ParseDate(newEnd); err != nil {
			return nil, err
		}
		if e.AppliedAt, err = time.Parse(time.RFC3339, appliedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) TrackingExists(ctx context.Context, leaveID leave.LeaveID, planID leave.PlanID, revision int) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(1) FROM extension_tracking
		WHERE leave_id = ? AND plan_id = ? AND revision = ?`,
		string(leaveID), string(planID), revision).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check tracking entry: %w", err)
	}
	return n > 0, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// mustJSON encodes values whose types cannot fail to marshal.
func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("marshal: %v", err))
	}
	return string(b)
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("failed to decode json column: %w", err)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func dateOrEmpty(d engine.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}

func dateFromNull(ns sql.NullString) (engine.Date, error) {
	if !ns.Valid || ns.String == "" {
		return engine.Date{}, nil
	}
	return engine.ParseDate(ns.String)
}
