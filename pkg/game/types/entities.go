package types

import (
	"encoding/json"
	"time"
)

type Door struct {
	RoomID string    `json:"room_id"`
	Key    string    `json:"key"`
	State  DoorState `json:"state"`
}

// Open unlocks the door and reports whether its state changed.
func (d *Door) Open() bool {
	if d.State == DoorStateOpen {
		return false
	}
	d.State = DoorStateOpen
	return true
}

type Artifact struct {
	RoomID string `json:"room_id"`
	Key    string `json:"key"`
	Qty    int    `json:"qty"`
}

type Progress struct {
	RoomID    string          `json:"room_id"`
	PuzzleKey string          `json:"puzzle_key"`
	Solved    bool            `json:"solved"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	SolvedAt  *time.Time      `json:"solved_at"`
	// Result is what the first successful solve returned.
	Result *SolveResult `json:"-"`
}

func (p *Progress) Copy() *Progress {
	c := *p
	if p.Payload != nil {
		c.Payload = append(json.RawMessage(nil), p.Payload...)
	}
	if p.SolvedAt != nil {
		t := *p.SolvedAt
		c.SolvedAt = &t
	}
	if p.Result != nil {
		c.Result = p.Result.Copy()
	}
	return &c
}

// SolveResult is returned by a solve attempt.
type SolveResult struct {
	Correct          bool     `json:"correct"`
	AlreadySolved    bool     `json:"alreadySolved,omitempty"`
	AirAward         int      `json:"airAward"`
	ArtifactsAwarded []string `json:"artifactsAwarded"`
	DoorsOpened      []string `json:"doorsOpened"`
}

func (r *SolveResult) Copy() *SolveResult {
	c := *r
	c.ArtifactsAwarded = append([]string(nil), r.ArtifactsAwarded...)
	c.DoorsOpened = append([]string(nil), r.DoorsOpened...)
	return &c
}

type BarrierRecord struct {
	RoomID        string        `json:"room_id"`
	StepKey       string        `json:"step_key"`
	ReadyRoles    map[Role]bool `json:"ready_roles"`
	RequiredCount int           `json:"required_count"`
	Crossed       bool          `json:"crossed"`
	CrossedAt     *time.Time    `json:"crossed_at,omitempty"`
}

// DefaultRequiredCount is used until a player adjusts the barrier.
const DefaultRequiredCount = MaxPlayers

func NewBarrierRecord(roomID, stepKey string) *BarrierRecord {
	return &BarrierRecord{
		RoomID:        roomID,
		StepKey:       stepKey,
		ReadyRoles:    make(map[Role]bool),
		RequiredCount: DefaultRequiredCount,
	}
}

func (b *BarrierRecord) ReadyCount() int {
	return len(b.ReadyRoles)
}

func (b *BarrierRecord) Status() BarrierStatus {
	return BarrierStatus{
		Ready:    b.ReadyCount(),
		Total:    b.RequiredCount,
		AllReady: b.Crossed || b.ReadyCount() >= b.RequiredCount,
	}
}

func (b *BarrierRecord) Copy() *BarrierRecord {
	c := *b
	c.ReadyRoles = make(map[Role]bool, len(b.ReadyRoles))
	for k, v := range b.ReadyRoles {
		c.ReadyRoles[k] = v
	}
	if b.CrossedAt != nil {
		t := *b.CrossedAt
		c.CrossedAt = &t
	}
	return &c
}

// BarrierStatus is the polled view of a barrier.
type BarrierStatus struct {
	Ready    int  `json:"ready"`
	Total    int  `json:"total"`
	AllReady bool `json:"allReady"`
}

// FinalPayload is stored in the final progress entry when an ending commits.
type FinalPayload struct {
	Ending Ending `json:"ending"`
	Used   string `json:"used,omitempty"`
}

// FinalResult is returned to a caller of the final ritual.
type FinalResult struct {
	Ending    Ending `json:"ending"`
	Used      string `json:"used,omitempty"`
	Committed bool   `json:"committed"`
	Message   string `json:"message,omitempty"`
}
