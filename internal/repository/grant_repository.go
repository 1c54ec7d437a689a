package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/reformery/studio-booking/internal/model"
)

// GrantRepo owns each member's prepaid class balance.  Debit and Credit
// are the only operations that move classes_consumed; both run in their
// own transaction and serialize concurrent callers with a row lock on
// the grant, so 0 <= classes_consumed <= total_classes holds at all
// times.  All timestamps are stored in UTC.
type GrantRepo struct {
	db *sql.DB
}

// NewGrantRepo returns a new GrantRepo bound to the given database.
func NewGrantRepo(db *sql.DB) *GrantRepo { return &GrantRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *GrantRepo) DB() *sql.DB { return r.db }

// Debit selects the eligible grant with the earliest expiry date and
// atomically increments its consumed count by one, returning the grant
// ID so the caller can link it to the new reservation.  A grant is
// eligible when it is ACTIVE, inside its validity window and has
// remaining balance.  Earliest-expiry-first minimizes wasted credits
// when a member holds several grants.  Returns ErrNoActiveBalance when
// no eligible grant exists.
func (r *GrantRepo) Debit(ctx context.Context, memberID uint64, asOf time.Time) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	// Lock the candidate row so two concurrent debits cannot both see
	// the last remaining class.
	const sel = `SELECT id FROM package_grants
	             WHERE member_id = ? AND status = 'ACTIVE'
	               AND starts_at <= ? AND expires_at > ?
	               AND classes_consumed < total_classes
	             ORDER BY expires_at ASC, id ASC
	             LIMIT 1
	             FOR UPDATE`
	ts := asOf.UTC()
	var grantID uint64
	if err := tx.QueryRowContext(ctx, sel, memberID, ts, ts).Scan(&grantID); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNoActiveBalance
		}
		return 0, err
	}
	const upd = `UPDATE package_grants
	             SET classes_consumed = classes_consumed + 1
	             WHERE id = ? AND classes_consumed < total_classes`
	res, err := tx.ExecContext(ctx, upd, grantID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		// The FOR UPDATE above makes this unreachable; keep the guard so
		// a schema change can never push consumed past total.
		return 0, ErrNoActiveBalance
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return grantID, nil
}

// Credit returns one class to the grant, but only while the grant is
// still inside its validity window.  An expired grant does not regain
// usable balance: the credit is recorded as a no-op success (false,
// nil) so callers can report refunded=false without treating it as a
// failure.  Returns ErrGrantNotFound when the grant does not exist.
// Credit is idempotent in the sense that a retry after a successful
// decrement will not drive classes_consumed below zero.
func (r *GrantRepo) Credit(ctx context.Context, grantID uint64, asOf time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const sel = `SELECT expires_at, classes_consumed FROM package_grants WHERE id = ? FOR UPDATE`
	var expiresAt time.Time
	var consumed uint32
	if err := tx.QueryRowContext(ctx, sel, grantID).Scan(&expiresAt, &consumed); err != nil {
		if err == sql.ErrNoRows {
			return false, ErrGrantNotFound
		}
		return false, err
	}
	if !asOf.UTC().Before(expiresAt) || consumed == 0 {
		// Expired grants keep their consumed count; nothing to restore.
		if err := tx.Commit(); err != nil {
			return false, err
		}
		committed = true
		return false, nil
	}
	const upd = `UPDATE package_grants
	             SET classes_consumed = classes_consumed - 1
	             WHERE id = ? AND classes_consumed > 0`
	if _, err := tx.ExecContext(ctx, upd, grantID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

// Create inserts a grant on behalf of the purchase flow (exposed to
// administrators here).  The generated ID and DB-default fields are
// populated on the provided model.
func (r *GrantRepo) Create(ctx context.Context, g *model.PackageGrant) error {
	const q = `INSERT INTO package_grants
	           (member_id, package_name, total_classes, classes_consumed, price_paid_cents, starts_at, expires_at, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, 'ACTIVE')`
	res, err := r.db.ExecContext(ctx, q,
		g.MemberID, g.PackageName, g.TotalClasses, g.ClassesConsumed, g.PricePaid,
		g.StartsAt.UTC(), g.ExpiresAt.UTC(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	g.ID = uint64(id)
	g.Status = model.GrantActive
	return nil
}

// ListByMember returns all grants for a member ordered by expiry date
// ascending.  The alert evaluator and the balance endpoint consume
// this snapshot.
func (r *GrantRepo) ListByMember(ctx context.Context, memberID uint64) ([]model.PackageGrant, error) {
	const q = `SELECT id, member_id, package_name, total_classes, classes_consumed,
	                  price_paid_cents, starts_at, expires_at, status, created_at, updated_at
	           FROM package_grants
	           WHERE member_id = ?
	           ORDER BY expires_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	grants := make([]model.PackageGrant, 0)
	for rows.Next() {
		var g model.PackageGrant
		if err := rows.Scan(
			&g.ID, &g.MemberID, &g.PackageName, &g.TotalClasses, &g.ClassesConsumed,
			&g.PricePaid, &g.StartsAt, &g.ExpiresAt, &g.Status, &g.CreatedAt, &g.UpdatedAt,
		); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grants, nil
}

// GetByID retrieves a single grant.  Returns ErrGrantNotFound when no
// row matches.
func (r *GrantRepo) GetByID(ctx context.Context, id uint64) (*model.PackageGrant, error) {
	const q = `SELECT id, member_id, package_name, total_classes, classes_consumed,
	                  price_paid_cents, starts_at, expires_at, status, created_at, updated_at
	           FROM package_grants WHERE id = ?`
	var g model.PackageGrant
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&g.ID, &g.MemberID, &g.PackageName, &g.TotalClasses, &g.ClassesConsumed,
		&g.PricePaid, &g.StartsAt, &g.ExpiresAt, &g.Status, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrGrantNotFound
		}
		return nil, err
	}
	return &g, nil
}
