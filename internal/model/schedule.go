package model

import "time"

// Schedule represents a single screening of a movie in a room at a
// specific date and time.  Many reservations may reference one
// schedule, bounded by the room's capacity.
//
// Fields:
//  ID      – primary key identifier.
//  MovieID – movie being shown.
//  RoomID  – room hosting the screening.
//  Date    – when the screening starts (UTC).
type Schedule struct {
	ID      uint64    // schedule.id
	MovieID uint64    // schedule.movie_id
	RoomID  uint64    // schedule.room_id
	Date    time.Time // schedule.date
}
