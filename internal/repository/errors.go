// Package repository defines the error taxonomy shared across all
// repositories. These sentinel values form a closed set that higher
// layers match with errors.Is to distinguish failure scenarios;
// anything outside the set is a generic backend error that handlers
// surface as HTTP 500 without further interpretation.
package repository

import "errors"

// ErrNotFound is returned when a referenced entity (reservation,
// schedule, movie, room) does not exist. Handlers should translate
// this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrDuplicateReservation is returned when a user already holds a
// reservation for the requested schedule. The unique constraint on
// (user_id, schedule_id) rejects the insert; handlers should
// translate this into an HTTP 409 response with a message telling
// the user they already booked this screening.
var ErrDuplicateReservation = errors.New("reservation already exists for this user and schedule")

// ErrCapacityExceeded is returned when committing a reservation
// would push a schedule past its room's seat capacity. The entire
// transaction is rolled back before this error is surfaced, so a
// failed attempt never leaves partial rows behind. Handlers should
// translate this into an HTTP 409 response.
var ErrCapacityExceeded = errors.New("room capacity exceeded for schedule")

// ErrForbidden is returned when the caller attempts an operation on
// a reservation they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete cannot proceed because of
// dependent records, such as removing a schedule that still has
// reservations. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering with an email that is
// already taken.
var ErrEmailExists = errors.New("email already exists")
