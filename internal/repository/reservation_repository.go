package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/reformery/studio-booking/internal/model"
)

// ReservationRepo owns slot capacity and the set of confirmed
// reservations per slot.  Reserve and Cancel each run in their own
// transaction and take a row lock on the class slot, so the capacity
// check and the insert are indivisible with respect to concurrent
// callers: confirmed_count(slot) <= max_capacity holds after any
// interleaving.  All timestamps are stored in UTC.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// DB exposes the underlying sql.DB for callers that need transactions
// spanning multiple repositories.
func (r *ReservationRepo) DB() *sql.DB { return r.db }

// CancelOutcome reports the result of a ledger cancellation.  GrantID
// and SlotID let the caller issue a compensating credit and notify the
// waitlist; Refundable reports whether the cancellation happened more
// than the cutoff before the slot's start.
type CancelOutcome struct {
	Refundable bool
	GrantID    uint64
	SlotID     uint64
	MemberID   uint64
}

// Reserve books one spot in the slot for the member, funded by the
// given grant.  Inside a single transaction it locks the slot row,
// verifies the slot is SCHEDULED, starts in the future and within the
// advance window, counts confirmed reservations against max_capacity,
// rejects duplicates and the per-member cap, then inserts the
// CONFIRMED reservation.  window and maxActive of zero disable those
// two checks.
//
// Possible errors: ErrSlotNotFound, ErrSlotNotBookable, ErrSlotFull,
// ErrAlreadyReserved, ErrReservationLimit.
func (r *ReservationRepo) Reserve(ctx context.Context, slotID, memberID, grantID uint64, asOf time.Time, window time.Duration, maxActive int) (*model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	// Lock the slot row.  Every reserve/cancel for this slot serializes
	// here, which is what makes the capacity check safe.
	const slotQ = `SELECT status, starts_at, max_capacity FROM class_slots WHERE id = ? FOR UPDATE`
	var status string
	var startsAt time.Time
	var maxCapacity uint32
	if err := tx.QueryRowContext(ctx, slotQ, slotID).Scan(&status, &startsAt, &maxCapacity); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	now := asOf.UTC()
	if status != model.SlotScheduled || !startsAt.After(now) {
		return nil, ErrSlotNotBookable
	}
	if window > 0 && startsAt.After(now.Add(window)) {
		return nil, ErrSlotNotBookable
	}
	// Duplicate before capacity: a member who already holds the spot
	// should hear "already reserved", not "full".
	const dupQ = `SELECT COUNT(*) FROM reservations
	              WHERE slot_id = ? AND member_id = ? AND status = 'CONFIRMED'`
	var dup int
	if err := tx.QueryRowContext(ctx, dupQ, slotID, memberID).Scan(&dup); err != nil {
		return nil, err
	}
	if dup > 0 {
		return nil, ErrAlreadyReserved
	}
	const countQ = `SELECT COUNT(*) FROM reservations
	                WHERE slot_id = ? AND status = 'CONFIRMED'`
	var confirmed uint32
	if err := tx.QueryRowContext(ctx, countQ, slotID).Scan(&confirmed); err != nil {
		return nil, err
	}
	if confirmed >= maxCapacity {
		return nil, ErrSlotFull
	}
	if maxActive > 0 {
		// Upcoming confirmed reservations across all slots.
		const activeQ = `SELECT COUNT(*) FROM reservations res
		                 JOIN class_slots cs ON cs.id = res.slot_id
		                 WHERE res.member_id = ? AND res.status = 'CONFIRMED'
		                   AND cs.starts_at > ?`
		var active int
		if err := tx.QueryRowContext(ctx, activeQ, memberID, now).Scan(&active); err != nil {
			return nil, err
		}
		if active >= maxActive {
			return nil, ErrReservationLimit
		}
	}
	const ins = `INSERT INTO reservations (member_id, slot_id, grant_id, status) VALUES (?, ?, ?, 'CONFIRMED')`
	res, err := tx.ExecContext(ctx, ins, memberID, slotID, grantID)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	rec := &model.Reservation{ID: uint64(id)}
	// Query back the full row to populate timestamps and defaults.
	const sel = `SELECT id, member_id, slot_id, grant_id, status, cancelled_at, created_at, updated_at
	             FROM reservations WHERE id = ?`
	var cancelledAt sql.NullTime
	if err := tx.QueryRowContext(ctx, sel, rec.ID).Scan(
		&rec.ID, &rec.MemberID, &rec.SlotID, &rec.GrantID, &rec.Status,
		&cancelledAt, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		rec.CancelledAt = &t
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return rec, nil
}

// Cancel marks a CONFIRMED reservation CANCELLED and reports whether
// the cancellation occurred more than cutoff before the slot's start.
// Capacity is freed either way; only the refund decision depends on
// the cutoff.  The slot row is locked first so a concurrent Reserve
// cannot interleave with the count it derives.
//
// Possible errors: ErrReservationNotFound, ErrAlreadyCancelled.
func (r *ReservationRepo) Cancel(ctx context.Context, reservationID uint64, cutoff time.Duration, asOf time.Time) (CancelOutcome, error) {
	var out CancelOutcome
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return out, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	const q = `SELECT res.member_id, res.slot_id, res.grant_id, res.status, cs.starts_at
	           FROM reservations res
	           JOIN class_slots cs ON cs.id = res.slot_id
	           WHERE res.id = ?
	           FOR UPDATE`
	var status string
	var startsAt time.Time
	if err := tx.QueryRowContext(ctx, q, reservationID).Scan(
		&out.MemberID, &out.SlotID, &out.GrantID, &status, &startsAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return out, ErrReservationNotFound
		}
		return out, err
	}
	if status != model.ReservationConfirmed {
		return out, ErrAlreadyCancelled
	}
	now := asOf.UTC()
	const upd = `UPDATE reservations SET status = 'CANCELLED', cancelled_at = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, upd, now, reservationID); err != nil {
		return out, err
	}
	if err := tx.Commit(); err != nil {
		return out, err
	}
	committed = true
	out.Refundable = model.Refundable(startsAt, now, cutoff)
	return out, nil
}

// Find retrieves a reservation by ID.  Returns ErrReservationNotFound
// when no row matches.  Used by the orchestrator for its ownership
// check before cancelling.
func (r *ReservationRepo) Find(ctx context.Context, reservationID uint64) (*model.Reservation, error) {
	const q = `SELECT id, member_id, slot_id, grant_id, status, cancelled_at, created_at, updated_at
	           FROM reservations WHERE id = ?`
	var rec model.Reservation
	var cancelledAt sql.NullTime
	err := r.db.QueryRowContext(ctx, q, reservationID).Scan(
		&rec.ID, &rec.MemberID, &rec.SlotID, &rec.GrantID, &rec.Status,
		&cancelledAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	if cancelledAt.Valid {
		t := cancelledAt.Time
		rec.CancelledAt = &t
	}
	return &rec, nil
}

// CountConfirmed returns the number of CONFIRMED reservations for a
// slot.  Read model only; writers derive the count under the slot lock
// inside Reserve.
func (r *ReservationRepo) CountConfirmed(ctx context.Context, slotID uint64) (uint32, error) {
	const q = `SELECT COUNT(*) FROM reservations WHERE slot_id = ? AND status = 'CONFIRMED'`
	var n uint32
	if err := r.db.QueryRowContext(ctx, q, slotID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CountConfirmedBySlots returns confirmed counts for many slots in one
// query, keyed by slot ID.  The calendar projection uses this to
// annotate occupancy without one query per cell.
func (r *ReservationRepo) CountConfirmedBySlots(ctx context.Context, slotIDs []uint64) (map[uint64]uint32, error) {
	counts := make(map[uint64]uint32, len(slotIDs))
	if len(slotIDs) == 0 {
		return counts, nil
	}
	query := `SELECT slot_id, COUNT(*) FROM reservations WHERE status = 'CONFIRMED' AND slot_id IN (`
	args := make([]interface{}, 0, len(slotIDs))
	for i, id := range slotIDs {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, id)
	}
	query += `) GROUP BY slot_id`
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		var n uint32
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}

// ReservationDetail encapsulates a reservation along with the slot,
// class and instructor information needed to display it.  It is
// returned by ListByMember and ListBySlot.
type ReservationDetail struct {
	ID             uint64     `json:"id"`
	MemberID       uint64     `json:"member_id,omitempty"`
	MemberName     string     `json:"member_name,omitempty"`
	SlotID         uint64     `json:"slot_id"`
	Status         string     `json:"status"`
	ClassName      string     `json:"class_name"`
	InstructorName string     `json:"instructor_name"`
	StartsAt       time.Time  `json:"starts_at"`
	EndsAt         time.Time  `json:"ends_at"`
	CancelledAt    *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ListByMember returns all reservations for the given member with slot,
// class and instructor details, newest first.  When no reservations
// exist, an empty slice is returned.
func (r *ReservationRepo) ListByMember(ctx context.Context, memberID uint64) ([]ReservationDetail, error) {
	const q = `SELECT res.id, res.slot_id, res.status, res.cancelled_at, res.created_at,
	                  cs.starts_at, cs.ends_at, ct.name, m.full_name
	           FROM reservations res
	           JOIN class_slots cs ON cs.id = res.slot_id
	           JOIN class_types ct ON ct.id = cs.class_type_id
	           JOIN members m ON m.id = cs.instructor_id
	           WHERE res.member_id = ?
	           ORDER BY res.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]ReservationDetail, 0)
	for rows.Next() {
		var d ReservationDetail
		var cancelledAt sql.NullTime
		if err := rows.Scan(
			&d.ID, &d.SlotID, &d.Status, &cancelledAt, &d.CreatedAt,
			&d.StartsAt, &d.EndsAt, &d.ClassName, &d.InstructorName,
		); err != nil {
			return nil, err
		}
		if cancelledAt.Valid {
			t := cancelledAt.Time
			d.CancelledAt = &t
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// ListBySlot returns every reservation for a slot with member names,
// for the admin roster view.  Ordered by creation time ascending so
// the roster reflects booking order.
func (r *ReservationRepo) ListBySlot(ctx context.Context, slotID uint64) ([]ReservationDetail, error) {
	const q = `SELECT res.id, res.member_id, res.slot_id, res.status, res.cancelled_at, res.created_at,
	                  cs.starts_at, cs.ends_at, ct.name, ins.full_name, mem.full_name
	           FROM reservations res
	           JOIN class_slots cs ON cs.id = res.slot_id
	           JOIN class_types ct ON ct.id = cs.class_type_id
	           JOIN members ins ON ins.id = cs.instructor_id
	           JOIN members mem ON mem.id = res.member_id
	           WHERE res.slot_id = ?
	           ORDER BY res.created_at ASC`
	rows, err := r.db.QueryContext(ctx, q, slotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]ReservationDetail, 0)
	for rows.Next() {
		var d ReservationDetail
		var cancelledAt sql.NullTime
		if err := rows.Scan(
			&d.ID, &d.MemberID, &d.SlotID, &d.Status, &cancelledAt, &d.CreatedAt,
			&d.StartsAt, &d.EndsAt, &d.ClassName, &d.InstructorName, &d.MemberName,
		); err != nil {
			return nil, err
		}
		if cancelledAt.Valid {
			t := cancelledAt.Time
			d.CancelledAt = &t
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// MarkAttendance moves a CONFIRMED reservation to ATTENDED or NO_SHOW
// after the class.  Attendance never touches the package ledger: a
// no-show has still spent their class.  Returns ErrConflict when the
// reservation is not CONFIRMED.
func (r *ReservationRepo) MarkAttendance(ctx context.Context, reservationID uint64, attended bool) error {
	status := model.ReservationAttended
	if !attended {
		status = model.ReservationNoShow
	}
	const q = `UPDATE reservations SET status = ? WHERE id = ? AND status = 'CONFIRMED'`
	res, err := r.db.ExecContext(ctx, q, status, reservationID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing row from a state conflict.
		const check = `SELECT COUNT(*) FROM reservations WHERE id = ?`
		var exists int
		if err := r.db.QueryRowContext(ctx, check, reservationID).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return ErrReservationNotFound
		}
		return ErrConflict
	}
	return nil
}
