package model

import "time"

// Reservation records one user's booking of one seat for one
// schedule.  The pair (UserID, ScheduleID) is unique; a second
// booking attempt for the same pair is rejected rather than merged.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – user who made the reservation.
//  ScheduleID – schedule being reserved.
//  CreatedAt  – creation timestamp.
type Reservation struct {
	ID         uint64    // reservation.id
	UserID     uint64    // reservation.user_id
	ScheduleID uint64    // reservation.schedule_id
	CreatedAt  time.Time // reservation.created_at
}

// ReservationChangeset describes a partial update applied to an
// existing reservation.  Nil fields are left untouched.
type ReservationChangeset struct {
	UserID     *uint64 // new owner, when reassigning
	ScheduleID *uint64 // new schedule, when moving the booking
}
