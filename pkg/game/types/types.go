package types

type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting"
	RoomStatusActive  RoomStatus = "active"
	RoomStatusEnded   RoomStatus = "ended"
)

// rank orders statuses so transitions can be checked as forward-only.
func (s RoomStatus) rank() int {
	switch s {
	case RoomStatusWaiting:
		return 0
	case RoomStatusActive:
		return 1
	case RoomStatusEnded:
		return 2
	default:
		return -1
	}
}

type RoomPhase string

const (
	RoomPhaseIntro RoomPhase = "intro"
	RoomPhasePlay  RoomPhase = "play"
	RoomPhaseEnded RoomPhase = "ended"
)

func (p RoomPhase) rank() int {
	switch p {
	case RoomPhaseIntro:
		return 0
	case RoomPhasePlay:
		return 1
	case RoomPhaseEnded:
		return 2
	default:
		return -1
	}
}

type Role string

const (
	RoleP1 Role = "P1"
	RoleP2 Role = "P2"
)

// Roles lists the roles in join order.
var Roles = []Role{RoleP1, RoleP2}

func (r Role) Valid() bool {
	return r == RoleP1 || r == RoleP2
}

type PlayerStatus string

const (
	PlayerStatusActive  PlayerStatus = "active"
	PlayerStatusDown    PlayerStatus = "down"
	PlayerStatusEscaped PlayerStatus = "escaped"
)

type DoorState string

const (
	DoorStateLocked DoorState = "locked"
	DoorStateOpen   DoorState = "open"
)

type EndingMode string

const (
	EndingModeCooperate EndingMode = "cooperate"
	EndingModeSolo      EndingMode = "solo"
)

func (m EndingMode) Valid() bool {
	return m == EndingModeCooperate || m == EndingModeSolo
}

// Ending is the value recorded in the final progress payload.
type Ending string

const (
	EndingCoop Ending = "coop"
	EndingSolo Ending = "solo"
)

// MaxPlayers is the number of roles a room can hold.
const MaxPlayers = 2
