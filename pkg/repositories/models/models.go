package models

import "time"

// RunRecord is the debrief of a finished room.
type RunRecord struct {
	RoomID        string      `json:"room_id"`
	Code          string      `json:"code"`
	Ending        string      `json:"ending"`
	Used          string      `json:"used,omitempty"`
	StartedAt     *time.Time  `json:"started_at"`
	EndedAt       time.Time   `json:"ended_at"`
	AirRemaining  int         `json:"air_remaining"`
	PuzzlesSolved []string    `json:"puzzles_solved"`
	Players       []RunPlayer `json:"players"`
}

type RunPlayer struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Status string `json:"status"`
}
