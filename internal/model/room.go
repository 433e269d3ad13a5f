package model

// Room is a row of the `rooms` table.  A room's capacity is the upper
// bound for the number of reservations any schedule held in it may
// accumulate.
//
// Fields:
//  ID       – primary key identifier.
//  Capacity – number of seats; always positive.
//  Label    – human readable name such as "Screen 1".
type Room struct {
	ID       uint64 // rooms.id
	Capacity uint32 // rooms.capacity
	Label    string // rooms.label
}
