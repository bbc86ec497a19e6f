package types

// RoomChangedEvent is queued after every effective mutation of a room.
type RoomChangedEvent struct {
	RoomID string
}
