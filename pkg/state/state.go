package state

import (
	"context"
	"time"

	"github.com/cbodonnell/pyramid/pkg/game/types"
)

// SessionStore holds the canonical state of every live room.
// Implementations must be thread-safe and serialize mutations per room.
type SessionStore interface {
	// CreateRoom creates a room and seats its creator as P1.
	CreateRoom(ctx context.Context, opts CreateRoomOptions) (*types.Snapshot, error)
	// JoinRoom seats userID in the room with the given code.
	JoinRoom(ctx context.Context, code string, userID string) (*types.Snapshot, *types.Player, error)
	// Get returns a copy of the room's entities.
	Get(ctx context.Context, roomID string) (*types.Snapshot, error)
	// View calls fn with the room's state held under the room lock.
	// fn must not modify or retain the state.
	View(ctx context.Context, roomID string, fn func(s *types.RoomState) error) error
	// Update applies fn to a copy of the room's state and commits the copy
	// only when fn returns nil.
	Update(ctx context.Context, roomID string, fn func(s *types.RoomState) error) error
	// CollectInactive removes rooms with no mutation for longer than timeout
	// and returns their IDs.
	CollectInactive(now time.Time, timeout time.Duration) []string
}

type CreateRoomOptions struct {
	Code          string
	Seed          int64
	AirInitial    int
	CreatorUserID string
	// Doors are created locked together with the room.
	Doors []string
}
