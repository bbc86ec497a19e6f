package handlers

import (
	"encoding/json"

	"github.com/cbodonnell/pyramid/pkg/game/types"
)

// RoomResponse answers create and join: the room and the caller's seat.
type RoomResponse struct {
	Snapshot *types.Snapshot `json:"snapshot"`
	Me       *types.Player   `json:"me"`
}

type JoinRoomRequest struct {
	Code string `json:"code"`
}

type AirResponse struct {
	AirSeconds int `json:"airSeconds"`
}

type SolveRequest struct {
	Answer json.RawMessage `json:"answer"`
}

type GrantArtifactRequest struct {
	Qty int `json:"qty"`
}

type IncrementAirRequest struct {
	Delta int `json:"delta"`
}

type SetRequiredRequest struct {
	Count int `json:"count"`
}

type FinalRequest struct {
	Mode types.EndingMode `json:"mode"`
	Item string           `json:"item,omitempty"`
}

type PresenceResponse struct {
	Roles []types.Role `json:"roles"`
}
