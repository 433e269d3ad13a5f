package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"cinema-reservation/internal/model"
)

// MySQL server error numbers surfaced by the driver that the
// repository maps onto the sentinel taxonomy.
const (
	mysqlErrDuplicateEntry  = 1062 // unique constraint violated
	mysqlErrRowIsReferenced = 1451 // delete blocked by dependent rows
	mysqlErrNoReferencedRow = 1452 // foreign key points at a missing row
)

// ReservationRepo provides CRUD operations for reservations and owns
// the capacity and uniqueness invariants of the booking flow.  Every
// mutation runs inside a single transaction: the target schedule row
// is locked first, the write is applied, and the capacity of the
// schedule's room is re-checked before commit.  Locking the schedule
// row serializes concurrent bookings for the same screening, so the
// post-insert count each transaction observes already includes every
// earlier committed insert.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

// ReservationDetail is the joined display row returned by
// ListDetailsByUser: one reservation together with the user, movie,
// room and schedule it refers to.  It carries no invariant logic.
type ReservationDetail struct {
	ID           uint64 `json:"id"`
	UserEmail    string `json:"user_email"`
	MovieTitle   string `json:"movie_title"`
	RoomLabel    string `json:"room_label"`
	ScheduleDate string `json:"schedule_date"`
}

// lockScheduleTx takes a row lock on the schedule and returns the
// capacity of its room.  The lock is held until the surrounding
// transaction ends, so concurrent create/update calls targeting the
// same schedule execute one at a time.  Returns ErrNotFound when the
// schedule does not exist.
func (r *ReservationRepo) lockScheduleTx(ctx context.Context, tx *sql.Tx, scheduleID uint64) (uint32, error) {
	const q = `SELECT rm.capacity
			   FROM schedule s
			   JOIN rooms rm ON rm.id = s.room_id
			   WHERE s.id = ?
			   FOR UPDATE`
	var capacity uint32
	err := tx.QueryRowContext(ctx, q, scheduleID).Scan(&capacity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return capacity, nil
}

// capacityExceededTx reports whether the schedule currently holds
// strictly more reservations than its room has seats.  A count that
// lands exactly on capacity is allowed.  A schedule that does not
// exist has zero reservations and is therefore never exceeded; the
// query returning no row is not an error.
func (r *ReservationRepo) capacityExceededTx(ctx context.Context, tx *sql.Tx, scheduleID uint64) (bool, error) {
	const q = `SELECT rm.capacity, COUNT(res.id)
			   FROM schedule s
			   JOIN rooms rm ON rm.id = s.room_id
			   LEFT JOIN reservation res ON res.schedule_id = s.id
			   WHERE s.id = ?
			   GROUP BY rm.capacity`
	var capacity uint32
	var count uint32
	err := tx.QueryRowContext(ctx, q, scheduleID).Scan(&capacity, &count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return count > capacity, nil
}

// IsCapacityExceeded is the read-only variant of the capacity check
// used by display code and tests.  It issues one aggregated query
// outside any transaction and never locks.
func (r *ReservationRepo) IsCapacityExceeded(ctx context.Context, scheduleID uint64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()
	return r.capacityExceededTx(ctx, tx, scheduleID)
}

// Create books one seat for the user on the given schedule.  The
// whole operation is a single transaction: lock the schedule row,
// insert the reservation, re-count against the room capacity and
// roll everything back when the count overflows.  It returns
// ErrNotFound for a missing schedule, ErrDuplicateReservation when
// the user already booked this schedule and ErrCapacityExceeded when
// the screening is full.
func (r *ReservationRepo) Create(ctx context.Context, userID, scheduleID uint64) (*model.Reservation, error) {
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

	if _, err := r.lockScheduleTx(ctx, tx, scheduleID); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO reservation (user_id, schedule_id) VALUES (?, ?)`,
		userID, scheduleID)
	if err != nil {
		return nil, mapMySQLError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	exceeded, err := r.capacityExceededTx(ctx, tx, scheduleID)
	if err != nil {
		return nil, err
	}
	if exceeded {
		return nil, ErrCapacityExceeded
	}

	reservation, err := getReservationTx(ctx, tx, uint64(id))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return reservation, nil
}

// Update applies a partial change to an existing reservation.  Nil
// fields of the changeset are left untouched.  When the schedule
// changes, the new schedule is locked and its capacity re-checked
// after the update; overflow rolls back the entire update including
// any other field change.  Returns ErrNotFound when no reservation
// matches the id.
func (r *ReservationRepo) Update(ctx context.Context, id uint64, cs model.ReservationChangeset) (*model.Reservation, error) {
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

	var current model.Reservation
	err = tx.QueryRowContext(ctx,
		`SELECT id, user_id, schedule_id, created_at FROM reservation WHERE id = ? FOR UPDATE`,
		id).Scan(&current.ID, &current.UserID, &current.ScheduleID, &current.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	newUserID := current.UserID
	if cs.UserID != nil {
		newUserID = *cs.UserID
	}
	newScheduleID := current.ScheduleID
	if cs.ScheduleID != nil {
		newScheduleID = *cs.ScheduleID
	}
	scheduleChanged := newScheduleID != current.ScheduleID

	if scheduleChanged {
		if _, err := r.lockScheduleTx(ctx, tx, newScheduleID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE reservation SET user_id = ?, schedule_id = ? WHERE id = ?`,
		newUserID, newScheduleID, id); err != nil {
		return nil, mapMySQLError(err)
	}

	if scheduleChanged {
		exceeded, err := r.capacityExceededTx(ctx, tx, newScheduleID)
		if err != nil {
			return nil, err
		}
		if exceeded {
			return nil, ErrCapacityExceeded
		}
	}

	updated, err := getReservationTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return updated, nil
}

// GetByID returns a single reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	var res model.Reservation
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, schedule_id, created_at FROM reservation WHERE id = ?`,
		id).Scan(&res.ID, &res.UserID, &res.ScheduleID, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// ListByUser returns the user's reservations ordered newest first.
// An empty slice is returned when the user has none.
func (r *ReservationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, schedule_id, created_at FROM reservation WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		var res model.Reservation
		if err := rows.Scan(&res.ID, &res.UserID, &res.ScheduleID, &res.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDetailsByUser returns the display join for one user's
// reservations: who made it, which movie, which room and when.
func (r *ReservationRepo) ListDetailsByUser(ctx context.Context, userID uint64) ([]ReservationDetail, error) {
	const q = `SELECT res.id, u.email, m.title, rm.label, s.date
			   FROM reservation res
			   JOIN users u ON u.id = res.user_id
			   JOIN schedule s ON s.id = res.schedule_id
			   JOIN movies m ON m.id = s.movie_id
			   JOIN rooms rm ON rm.id = s.room_id
			   WHERE u.id = ?
			   ORDER BY s.date, res.id`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ReservationDetail, 0)
	for rows.Next() {
		var d ReservationDetail
		var date sql.NullTime
		if err := rows.Scan(&d.ID, &d.UserEmail, &d.MovieTitle, &d.RoomLabel, &date); err != nil {
			return nil, err
		}
		if date.Valid {
			d.ScheduleDate = date.Time.UTC().Format("2006-01-02 15:04:05")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDetail returns the display join for a single reservation or
// ErrNotFound.
func (r *ReservationRepo) GetDetail(ctx context.Context, id uint64) (*ReservationDetail, error) {
	const q = `SELECT res.id, u.email, m.title, rm.label, s.date
			   FROM reservation res
			   JOIN users u ON u.id = res.user_id
			   JOIN schedule s ON s.id = res.schedule_id
			   JOIN movies m ON m.id = s.movie_id
			   JOIN rooms rm ON rm.id = s.room_id
			   WHERE res.id = ?`
	var d ReservationDetail
	var date sql.NullTime
	err := r.db.QueryRowContext(ctx, q, id).Scan(&d.ID, &d.UserEmail, &d.MovieTitle, &d.RoomLabel, &date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if date.Valid {
		d.ScheduleDate = date.Time.UTC().Format("2006-01-02 15:04:05")
	}
	return &d, nil
}

// ListBySchedule returns all reservations for one schedule together
// with the booking user's email.  Used by admin views.
func (r *ReservationRepo) ListBySchedule(ctx context.Context, scheduleID uint64) ([]ReservationDetail, error) {
	const q = `SELECT res.id, u.email, m.title, rm.label, s.date
			   FROM reservation res
			   JOIN users u ON u.id = res.user_id
			   JOIN schedule s ON s.id = res.schedule_id
			   JOIN movies m ON m.id = s.movie_id
			   JOIN rooms rm ON rm.id = s.room_id
			   WHERE s.id = ?
			   ORDER BY res.id`
	rows, err := r.db.QueryContext(ctx, q, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ReservationDetail, 0)
	for rows.Next() {
		var d ReservationDetail
		var date sql.NullTime
		if err := rows.Scan(&d.ID, &d.UserEmail, &d.MovieTitle, &d.RoomLabel, &date); err != nil {
			return nil, err
		}
		if date.Valid {
			d.ScheduleDate = date.Time.UTC().Format("2006-01-02 15:04:05")
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Availability returns the room capacity and current reservation
// count of a schedule.  Returns ErrNotFound when the schedule does
// not exist; this is a display query, so unlike the in-transaction
// capacity check an absent schedule is reported rather than treated
// as empty.
func (r *ReservationRepo) Availability(ctx context.Context, scheduleID uint64) (capacity, reserved uint32, err error) {
	const q = `SELECT rm.capacity, COUNT(res.id)
			   FROM schedule s
			   JOIN rooms rm ON rm.id = s.room_id
			   LEFT JOIN reservation res ON res.schedule_id = s.id
			   WHERE s.id = ?
			   GROUP BY rm.capacity`
	err = r.db.QueryRowContext(ctx, q, scheduleID).Scan(&capacity, &reserved)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, err
	}
	return capacity, reserved, nil
}

// AllOwnedBy reports whether every id in the set belongs to a
// reservation owned by the given user.  The count of matching rows
// must equal the number of distinct requested ids, so an id that
// does not exist at all yields false rather than true by vacuous
// match.  An empty set yields false.
func (r *ReservationRepo) AllOwnedBy(ctx context.Context, ids []uint64, userID uint64) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}
	distinct := dedupeIDs(ids)
	query := `SELECT COUNT(*) FROM reservation WHERE user_id = ? AND id IN (` +
		placeholders(len(distinct)) + `)`
	args := make([]interface{}, 0, len(distinct)+1)
	args = append(args, userID)
	for _, id := range distinct {
		args = append(args, id)
	}
	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count == len(distinct), nil
}

// Delete removes one reservation by id and returns the number of
// rows removed.  Deleting a non-existent id removes zero rows and is
// not an error.  Ownership must already have been checked by the
// caller via AllOwnedBy.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservation WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteMany removes every reservation in the id set and returns the
// number of rows removed.  Like Delete, missing ids simply remove
// nothing.
func (r *ReservationRepo) DeleteMany(ctx context.Context, ids []uint64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	distinct := dedupeIDs(ids)
	query := `DELETE FROM reservation WHERE id IN (` + placeholders(len(distinct)) + `)`
	args := make([]interface{}, 0, len(distinct))
	for _, id := range distinct {
		args = append(args, id)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// getReservationTx reads a reservation row inside a transaction.
func getReservationTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	var res model.Reservation
	err := tx.QueryRowContext(ctx,
		`SELECT id, user_id, schedule_id, created_at FROM reservation WHERE id = ?`,
		id).Scan(&res.ID, &res.UserID, &res.ScheduleID, &res.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &res, nil
}

// mapMySQLError folds driver-level constraint violations into the
// sentinel taxonomy.  A duplicate (user_id, schedule_id) pair maps
// to ErrDuplicateReservation and a dangling foreign key to
// ErrNotFound; everything else passes through unchanged.
func mapMySQLError(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrDuplicateEntry:
			return ErrDuplicateReservation
		case mysqlErrRowIsReferenced:
			return ErrConflict
		case mysqlErrNoReferencedRow:
			return ErrNotFound
		}
	}
	return err
}

// placeholders returns a comma separated list of n "?" marks.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// dedupeIDs returns the distinct ids preserving first-seen order.
func dedupeIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
