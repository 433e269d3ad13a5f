// Package queue defines the message payloads exchanged over RabbitMQ
// and the publisher/consumer pair that moves them.
package queue

// ReservationConfirmedEvent is published after a reservation commits.
// It carries enough context for downstream consumers to log or notify
// without querying the primary database.
type ReservationConfirmedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	UserID        uint64 `json:"user_id"`
	UserEmail     string `json:"user_email"`
	ScheduleID    uint64 `json:"schedule_id"`
	MovieTitle    string `json:"movie_title"`
	RoomLabel     string `json:"room_label"`
	ScheduleDate  string `json:"schedule_date"`
	ConfirmedAt   string `json:"confirmed_at"`
}
