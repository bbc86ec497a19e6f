package game

import (
	"testing"
	"time"

	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/stretchr/testify/assert"
)

func TestAirSeconds(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	started := func(initial, bonus int) types.Room {
		s := start
		return types.Room{AirInitial: initial, AirBonus: bonus, StartedAt: &s}
	}

	tests := []struct {
		name string
		room types.Room
		now  time.Time
		want int
	}{
		{name: "not started", room: types.Room{AirInitial: 1800, AirBonus: 90}, now: start, want: 1800},
		{name: "just started", room: started(1800, 0), now: start, want: 1800},
		{name: "partial seconds floor", room: started(1800, 0), now: start.Add(1500 * time.Millisecond), want: 1799},
		{name: "bonus", room: started(1200, 60), now: start.Add(60 * time.Second), want: 1200},
		{name: "exhausted", room: started(10, 5), now: start.Add(time.Hour), want: 0},
		{name: "clock before start", room: started(100, 0), now: start.Add(-time.Minute), want: 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AirSeconds(tt.room, tt.now))
		})
	}
}

func TestAirSeconds_NonIncreasing(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	room := types.Room{AirInitial: 300, AirBonus: 30, StartedAt: &start}

	prev := AirSeconds(room, start)
	for i := 1; i < 2000; i++ {
		got := AirSeconds(room, start.Add(time.Duration(i)*250*time.Millisecond))
		assert.GreaterOrEqual(t, got, 0)
		assert.LessOrEqual(t, got, prev)
		prev = got
	}
	assert.Equal(t, 0, prev)
}
