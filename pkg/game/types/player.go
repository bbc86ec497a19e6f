package types

import "time"

type Player struct {
	ID       string       `json:"id"`
	RoomID   string       `json:"room_id"`
	UserID   string       `json:"user_id"`
	Role     Role         `json:"role"`
	Status   PlayerStatus `json:"status"`
	JoinedAt time.Time    `json:"joined_at"`
}

// SetStatus moves the player out of active. Escaped and down are terminal,
// so it reports false when the player already left the active state.
func (p *Player) SetStatus(status PlayerStatus) bool {
	if p.Status != PlayerStatusActive || status == PlayerStatusActive {
		return false
	}
	p.Status = status
	return true
}

func (p *Player) Copy() *Player {
	c := *p
	return &c
}
