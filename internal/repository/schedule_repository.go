package repository

import (
	"context"
	"database/sql"
	"errors"

	"cinema-reservation/internal/model"
)

// ScheduleRepo provides access to the 'schedule' table.  Schedules
// tie a movie to a room at a point in time; reservations reference
// them and the room's capacity bounds how many may accumulate.
type ScheduleRepo struct {
	db *sql.DB
}

// NewScheduleRepo constructs a ScheduleRepo with the given DB handle.
func NewScheduleRepo(db *sql.DB) *ScheduleRepo { return &ScheduleRepo{db: db} }

// ScheduleDetail is the joined browse row for one schedule: the
// screening together with its movie and room.  Remaining is the
// number of seats still available (capacity minus reservations).
type ScheduleDetail struct {
	ID         uint64 `json:"id"`
	Date       string `json:"date"`
	MovieID    uint64 `json:"movie_id"`
	MovieTitle string `json:"movie_title"`
	RoomID     uint64 `json:"room_id"`
	RoomLabel  string `json:"room_label"`
	Capacity   uint32 `json:"capacity"`
	Reserved   uint32 `json:"reserved"`
	Remaining  int64  `json:"remaining"`
}

// Create inserts a schedule and populates its generated ID.  Both
// foreign keys must reference existing rows; a dangling reference
// maps to ErrNotFound via the FK constraint.
func (r *ScheduleRepo) Create(ctx context.Context, s *model.Schedule) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO schedule (movie_id, room_id, date) VALUES (?, ?, ?)`,
		s.MovieID, s.RoomID, s.Date.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return mapMySQLError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetByID retrieves a schedule by its ID.  Returns ErrNotFound when
// no row matches.
func (r *ScheduleRepo) GetByID(ctx context.Context, id uint64) (*model.Schedule, error) {
	var s model.Schedule
	err := r.db.QueryRowContext(ctx,
		`SELECT id, movie_id, room_id, date FROM schedule WHERE id = ?`,
		id).Scan(&s.ID, &s.MovieID, &s.RoomID, &s.Date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListWithDetails returns every schedule joined with its movie and
// room plus the current seat availability, ordered by date.  The
// availability columns are display data only; the authoritative
// capacity check happens inside the reservation transaction.
func (r *ScheduleRepo) ListWithDetails(ctx context.Context) ([]ScheduleDetail, error) {
	const q = `SELECT s.id, s.date, m.id, m.title, rm.id, rm.label, rm.capacity, COUNT(res.id)
			   FROM schedule s
			   JOIN movies m ON m.id = s.movie_id
			   JOIN rooms rm ON rm.id = s.room_id
			   LEFT JOIN reservation res ON res.schedule_id = s.id
			   GROUP BY s.id, s.date, m.id, m.title, rm.id, rm.label, rm.capacity
			   ORDER BY s.date, s.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ScheduleDetail, 0)
	for rows.Next() {
		var d ScheduleDetail
		var date sql.NullTime
		if err := rows.Scan(&d.ID, &date, &d.MovieID, &d.MovieTitle, &d.RoomID, &d.RoomLabel, &d.Capacity, &d.Reserved); err != nil {
			return nil, err
		}
		if date.Valid {
			d.Date = date.Time.UTC().Format("2006-01-02 15:04:05")
		}
		d.Remaining = int64(d.Capacity) - int64(d.Reserved)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a schedule by id.  Returns ErrNotFound when the
// schedule does not exist and ErrConflict when reservations still
// reference it.
func (r *ScheduleRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM schedule WHERE id = ?`, id)
	if err != nil {
		return mapMySQLError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
