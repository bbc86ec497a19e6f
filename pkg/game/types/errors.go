package types

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a room or entity is missing or was collected.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// ErrUnauthorized is returned when the caller is not a member of the room.
type ErrUnauthorized struct {
	UserID string
	RoomID string
}

func (e *ErrUnauthorized) Error() string {
	return fmt.Sprintf("user %s is not a member of room %s", e.UserID, e.RoomID)
}

// ErrInvalidArgument is returned for malformed mutation input.
type ErrInvalidArgument struct {
	Reason string
}

func (e *ErrInvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument: %s", e.Reason)
}

// ErrConflict is returned by store primitives when a mutation would break a
// monotonic invariant. The gateway answers it with the current state.
type ErrConflict struct {
	Reason string
}

func (e *ErrConflict) Error() string {
	return fmt.Sprintf("conflict: %s", e.Reason)
}

func NotFound(kind, id string) error {
	return &ErrNotFound{Kind: kind, ID: id}
}

func Unauthorized(userID, roomID string) error {
	return &ErrUnauthorized{UserID: userID, RoomID: roomID}
}

func InvalidArgument(format string, args ...interface{}) error {
	return &ErrInvalidArgument{Reason: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...interface{}) error {
	return &ErrConflict{Reason: fmt.Sprintf(format, args...)}
}

func IsNotFound(err error) bool {
	var e *ErrNotFound
	return errors.As(err, &e)
}

func IsUnauthorized(err error) bool {
	var e *ErrUnauthorized
	return errors.As(err, &e)
}

func IsInvalidArgument(err error) bool {
	var e *ErrInvalidArgument
	return errors.As(err, &e)
}

func IsConflict(err error) bool {
	var e *ErrConflict
	return errors.As(err, &e)
}
