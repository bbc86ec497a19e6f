package game

import (
	"math"
	"time"

	"github.com/cbodonnell/pyramid/pkg/game/types"
)

// MaxAirSeconds caps air_initial + air_bonus so the sum cannot overflow.
const MaxAirSeconds = math.MaxInt32

// AirSeconds returns the air left in room at now.
// Air is derived from the start time, so every reader computes the same value.
func AirSeconds(room types.Room, now time.Time) int {
	total := room.AirInitial + room.AirBonus
	if room.StartedAt == nil {
		return room.AirInitial
	}
	elapsed := int(now.Sub(*room.StartedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	if remaining := total - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}
