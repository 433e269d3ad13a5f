package repository

import (
	"context"
	"database/sql"
	"errors"

	"cinema-reservation/internal/model"
)

// RoomRepo provides access to the 'rooms' table.  A room's capacity
// is read by the reservation repository when enforcing the booking
// bound; this repository itself only does plain CRUD.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo constructs a RoomRepo with the given DB handle.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

// Create inserts a room and populates its generated ID.  Capacity
// must be positive; the schema carries a CHECK to the same effect.
func (r *RoomRepo) Create(ctx context.Context, room *model.Room) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (capacity, label) VALUES (?, ?)`,
		room.Capacity, room.Label)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	room.ID = uint64(id)
	return nil
}

// GetByID retrieves a room by its ID.  Returns ErrNotFound when no
// row matches.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	var room model.Room
	err := r.db.QueryRowContext(ctx,
		`SELECT id, capacity, label FROM rooms WHERE id = ?`,
		id).Scan(&room.ID, &room.Capacity, &room.Label)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

// List returns all rooms ordered by label.
func (r *RoomRepo) List(ctx context.Context) ([]model.Room, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, capacity, label FROM rooms ORDER BY label, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Room, 0)
	for rows.Next() {
		var room model.Room
		if err := rows.Scan(&room.ID, &room.Capacity, &room.Label); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
