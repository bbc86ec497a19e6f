package game

import (
	"time"

	"github.com/cbodonnell/pyramid/pkg/game/types"
)

// barrierStatus reads a barrier without creating it.
func barrierStatus(s *types.RoomState, step string) types.BarrierStatus {
	if b, ok := s.Barriers[step]; ok {
		return b.Status()
	}
	return types.BarrierStatus{Total: types.DefaultRequiredCount}
}

func ensureBarrier(s *types.RoomState, step string) *types.BarrierRecord {
	b, ok := s.Barriers[step]
	if !ok {
		b = types.NewBarrierRecord(s.Room.ID, step)
		s.Barriers[step] = b
	}
	return b
}

// markReady records role as ready on step. It reports whether the state
// changed and whether this call crossed the barrier.
func markReady(s *types.RoomState, step string, role types.Role, now time.Time) (changed bool, crossed bool) {
	b := ensureBarrier(s, step)
	if b.Crossed {
		return false, false
	}
	if !b.ReadyRoles[role] {
		b.ReadyRoles[role] = true
		changed = true
	}
	if tryCross(s, b, now) {
		return true, true
	}
	return changed, false
}

// setRequired adjusts the party size of an uncrossed barrier.
func setRequired(s *types.RoomState, step string, count int, now time.Time) (changed bool, crossed bool) {
	b := ensureBarrier(s, step)
	if b.Crossed {
		return false, false
	}
	if b.RequiredCount != count {
		b.RequiredCount = count
		changed = true
	}
	if tryCross(s, b, now) {
		return true, true
	}
	return changed, false
}

func tryCross(s *types.RoomState, b *types.BarrierRecord, now time.Time) bool {
	if b.Crossed || b.ReadyCount() < b.RequiredCount {
		return false
	}
	b.Crossed = true
	t := now
	b.CrossedAt = &t
	s.Room.CurrentStep++
	s.Room.SetPhase(types.RoomPhasePlay)
	return true
}
