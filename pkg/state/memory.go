package state

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/google/uuid"
)

type InMemorySessionStore struct {
	lock  sync.RWMutex
	rooms map[string]*roomEntry
	codes map[string]string
	now   func() time.Time
}

// roomEntry serializes the mutations of a single room.
type roomEntry struct {
	lock         sync.Mutex
	state        *types.RoomState
	lastActivity time.Time
	removed      bool
}

var _ SessionStore = &InMemorySessionStore{}

type NewInMemorySessionStoreOptions struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewInMemorySessionStore(opts NewInMemorySessionStoreOptions) *InMemorySessionStore {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &InMemorySessionStore{
		rooms: make(map[string]*roomEntry),
		codes: make(map[string]string),
		now:   now,
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (m *InMemorySessionStore) CreateRoom(ctx context.Context, opts CreateRoomOptions) (*types.Snapshot, error) {
	code := normalizeCode(opts.Code)
	if code == "" {
		return nil, types.InvalidArgument("room code is empty")
	}
	if opts.CreatorUserID == "" {
		return nil, types.InvalidArgument("creator is empty")
	}
	if opts.AirInitial <= 0 {
		return nil, types.InvalidArgument("initial air must be positive")
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if _, exists := m.codes[code]; exists {
		return nil, types.InvalidArgument("code %s in use", code)
	}

	now := m.now()
	roomID := uuid.NewString()
	s := types.NewRoomState(types.Room{
		ID:         roomID,
		Code:       code,
		Seed:       opts.Seed,
		Status:     types.RoomStatusWaiting,
		Phase:      types.RoomPhaseIntro,
		AirInitial: opts.AirInitial,
		CreatedAt:  now,
	})
	s.Players = append(s.Players, &types.Player{
		ID:       uuid.NewString(),
		RoomID:   roomID,
		UserID:   opts.CreatorUserID,
		Role:     types.RoleP1,
		Status:   types.PlayerStatusActive,
		JoinedAt: now,
	})
	for _, key := range opts.Doors {
		s.Doors[key] = &types.Door{RoomID: roomID, Key: key, State: types.DoorStateLocked}
	}

	m.rooms[roomID] = &roomEntry{state: s, lastActivity: now}
	m.codes[code] = roomID

	return s.Snapshot(), nil
}

func (m *InMemorySessionStore) JoinRoom(ctx context.Context, code string, userID string) (*types.Snapshot, *types.Player, error) {
	if userID == "" {
		return nil, nil, types.InvalidArgument("user is empty")
	}
	code = normalizeCode(code)

	m.lock.RLock()
	roomID, ok := m.codes[code]
	m.lock.RUnlock()
	if !ok {
		return nil, nil, types.NotFound("room", code)
	}

	var snap *types.Snapshot
	var me *types.Player
	err := m.Update(ctx, roomID, func(s *types.RoomState) error {
		if p := s.PlayerByUserID(userID); p != nil {
			me = p.Copy()
			snap = s.Snapshot()
			return nil
		}
		if s.Room.Status == types.RoomStatusEnded {
			return types.InvalidArgument("room %s is closed", code)
		}
		if len(s.Players) >= types.MaxPlayers {
			return types.InvalidArgument("room %s is full", code)
		}
		taken := make(map[types.Role]bool, len(s.Players))
		for _, p := range s.Players {
			taken[p.Role] = true
		}
		for _, role := range types.Roles {
			if taken[role] {
				continue
			}
			p := &types.Player{
				ID:       uuid.NewString(),
				RoomID:   s.Room.ID,
				UserID:   userID,
				Role:     role,
				Status:   types.PlayerStatusActive,
				JoinedAt: m.now(),
			}
			s.Players = append(s.Players, p)
			me = p.Copy()
			break
		}
		snap = s.Snapshot()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return snap, me, nil
}

func (m *InMemorySessionStore) entry(roomID string) (*roomEntry, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	e, ok := m.rooms[roomID]
	if !ok {
		return nil, types.NotFound("room", roomID)
	}
	return e, nil
}

func (m *InMemorySessionStore) Get(ctx context.Context, roomID string) (*types.Snapshot, error) {
	var snap *types.Snapshot
	err := m.View(ctx, roomID, func(s *types.RoomState) error {
		snap = s.Snapshot()
		return nil
	})
	return snap, err
}

func (m *InMemorySessionStore) View(ctx context.Context, roomID string, fn func(s *types.RoomState) error) error {
	e, err := m.entry(roomID)
	if err != nil {
		return err
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.removed {
		return types.NotFound("room", roomID)
	}
	return fn(e.state)
}

func (m *InMemorySessionStore) Update(ctx context.Context, roomID string, fn func(s *types.RoomState) error) error {
	e, err := m.entry(roomID)
	if err != nil {
		return err
	}
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.removed {
		return types.NotFound("room", roomID)
	}

	next := e.state.Clone()
	if err := fn(next); err != nil {
		return err
	}
	e.state = next
	e.lastActivity = m.now()
	return nil
}

func (m *InMemorySessionStore) CollectInactive(now time.Time, timeout time.Duration) []string {
	m.lock.Lock()
	defer m.lock.Unlock()

	var removed []string
	for roomID, e := range m.rooms {
		e.lock.Lock()
		if now.Sub(e.lastActivity) > timeout {
			e.removed = true
			delete(m.rooms, roomID)
			delete(m.codes, e.state.Room.Code)
			removed = append(removed, roomID)
		}
		e.lock.Unlock()
	}
	return removed
}

// Len returns the number of live rooms.
func (m *InMemorySessionStore) Len() int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.rooms)
}
