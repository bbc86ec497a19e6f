package types

import (
	"time"
)

type Room struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	Seed        int64      `json:"seed"`
	Status      RoomStatus `json:"status"`
	Phase       RoomPhase  `json:"phase"`
	AirInitial  int        `json:"air_initial"`
	AirBonus    int        `json:"air_bonus"`
	StartedAt   *time.Time `json:"started_at"`
	CurrentStep int        `json:"current_step"`
	CreatedAt   time.Time  `json:"created_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// SetStatus advances the status. Moving backwards is refused.
func (r *Room) SetStatus(status RoomStatus) bool {
	if status.rank() <= r.Status.rank() {
		return false
	}
	r.Status = status
	return true
}

// SetPhase advances the phase. Moving backwards is refused.
func (r *Room) SetPhase(phase RoomPhase) bool {
	if phase.rank() <= r.Phase.rank() {
		return false
	}
	r.Phase = phase
	return true
}

func (r *Room) Copy() Room {
	c := *r
	if r.StartedAt != nil {
		t := *r.StartedAt
		c.StartedAt = &t
	}
	if r.EndedAt != nil {
		t := *r.EndedAt
		c.EndedAt = &t
	}
	return c
}

// RoomState is the canonical entity table of one room.
type RoomState struct {
	Room        Room
	Players     []*Player
	Doors       map[string]*Door
	Artifacts   map[string]*Artifact
	Progress    map[string]*Progress
	Barriers    map[string]*BarrierRecord
	LessonReads map[string]map[Role]bool
}

func NewRoomState(room Room) *RoomState {
	return &RoomState{
		Room:        room,
		Doors:       make(map[string]*Door),
		Artifacts:   make(map[string]*Artifact),
		Progress:    make(map[string]*Progress),
		Barriers:    make(map[string]*BarrierRecord),
		LessonReads: make(map[string]map[Role]bool),
	}
}

// PlayerByUserID returns the member row of userID, or nil.
func (s *RoomState) PlayerByUserID(userID string) *Player {
	for _, p := range s.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// ActivePlayers returns the players whose status is active.
func (s *RoomState) ActivePlayers() []*Player {
	active := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if p.Status == PlayerStatusActive {
			active = append(active, p)
		}
	}
	return active
}

// ArtifactQty returns the quantity held by the room, 0 when never granted.
func (s *RoomState) ArtifactQty(key string) int {
	if a, ok := s.Artifacts[key]; ok {
		return a.Qty
	}
	return 0
}

// Clone returns a deep copy.
func (s *RoomState) Clone() *RoomState {
	c := NewRoomState(s.Room.Copy())
	c.Players = make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		c.Players = append(c.Players, p.Copy())
	}
	for k, d := range s.Doors {
		door := *d
		c.Doors[k] = &door
	}
	for k, a := range s.Artifacts {
		artifact := *a
		c.Artifacts[k] = &artifact
	}
	for k, p := range s.Progress {
		c.Progress[k] = p.Copy()
	}
	for k, b := range s.Barriers {
		c.Barriers[k] = b.Copy()
	}
	for k, roles := range s.LessonReads {
		m := make(map[Role]bool, len(roles))
		for r, v := range roles {
			m[r] = v
		}
		c.LessonReads[k] = m
	}
	return c
}
