package game

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/big"
	"time"

	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/cbodonnell/pyramid/pkg/puzzles"
	"github.com/cbodonnell/pyramid/pkg/queue"
	"github.com/cbodonnell/pyramid/pkg/repositories/models"
	"github.com/cbodonnell/pyramid/pkg/state"
	"github.com/cbodonnell/pyramid/pkg/workers"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
	codeAttempts = 5
)

// Gateway is the single entry point for room mutations and reads.
// Every operation checks that the requester is a member of the room.
type Gateway struct {
	store       state.SessionStore
	graph       *ProgressionGraph
	checker     puzzles.Checker
	eventQueue  queue.Queue
	archiveChan chan<- workers.ArchiveRunRequest
	resolver    *EndingResolver
	airInitial  int
	now         func() time.Time
}

// NewGatewayOptions contains options for creating a new Gateway.
type NewGatewayOptions struct {
	Store   state.SessionStore
	Graph   *ProgressionGraph
	Checker puzzles.Checker
	// EventQueue receives a RoomChangedEvent after every effective mutation.
	EventQueue queue.Queue
	// ArchiveChan receives the run record of every committed ending. Optional.
	ArchiveChan        chan<- workers.ArchiveRunRequest
	AirInitialSeconds  int
	RitualPollAttempts uint
	RitualPollInterval time.Duration
	Now                func() time.Time
}

func NewGateway(opts NewGatewayOptions) *Gateway {
	g := &Gateway{
		store:       opts.Store,
		graph:       opts.Graph,
		checker:     opts.Checker,
		eventQueue:  opts.EventQueue,
		archiveChan: opts.ArchiveChan,
		airInitial:  opts.AirInitialSeconds,
		now:         opts.Now,
	}
	if g.now == nil {
		g.now = time.Now
	}
	g.resolver = NewEndingResolver(NewEndingResolverOptions{
		Store:        opts.Store,
		Graph:        opts.Graph,
		Now:          g.now,
		PollAttempts: opts.RitualPollAttempts,
		PollInterval: opts.RitualPollInterval,
		Notify:       g.notify,
	})
	return g
}

func (g *Gateway) notify(roomID string) {
	if g.eventQueue == nil {
		return
	}
	if err := g.eventQueue.Enqueue(&types.RoomChangedEvent{RoomID: roomID}); err != nil {
		log.Error("Failed to enqueue change for room %s: %v", roomID, err)
	}
}

// mutate applies fn to the room as userID. fn reports a no-op by returning
// a Conflict, which is not surfaced to the caller.
func (g *Gateway) mutate(ctx context.Context, roomID, userID string, fn func(s *types.RoomState, me *types.Player) error) error {
	err := g.store.Update(ctx, roomID, func(s *types.RoomState) error {
		me, err := member(s, roomID, userID)
		if err != nil {
			return err
		}
		return fn(s, me)
	})
	if types.IsConflict(err) {
		log.Trace("Room %s no-op: %v", roomID, err)
		return nil
	}
	if err != nil {
		return err
	}
	g.notify(roomID)
	return nil
}

func (g *Gateway) view(ctx context.Context, roomID, userID string, fn func(s *types.RoomState) error) error {
	return g.store.View(ctx, roomID, func(s *types.RoomState) error {
		if _, err := member(s, roomID, userID); err != nil {
			return err
		}
		return fn(s)
	})
}

// CreateRoom opens a new room with a generated code and seats userID as P1.
func (g *Gateway) CreateRoom(ctx context.Context, userID string) (*types.Snapshot, error) {
	if userID == "" {
		return nil, types.InvalidArgument("user is empty")
	}
	var lastErr error
	for i := 0; i < codeAttempts; i++ {
		code, err := generateCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate room code: %v", err)
		}
		snap, err := g.store.CreateRoom(ctx, state.CreateRoomOptions{
			Code:          code,
			Seed:          SeedFromCode(code),
			AirInitial:    g.airInitial,
			CreatorUserID: userID,
			Doors:         g.graph.Doors,
		})
		if err == nil {
			log.Info("Room %s created with code %s", snap.Room.ID, code)
			return snap, nil
		}
		if !types.IsInvalidArgument(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to allocate a room code: %v", lastErr)
}

// JoinRoom seats userID in the room with code.
func (g *Gateway) JoinRoom(ctx context.Context, code, userID string) (*types.Snapshot, *types.Player, error) {
	snap, me, err := g.store.JoinRoom(ctx, code, userID)
	if err != nil {
		return nil, nil, err
	}
	g.notify(snap.Room.ID)
	return snap, me, nil
}

func generateCode() (string, error) {
	b := make([]byte, codeLength)
	alphabetLen := big.NewInt(int64(len(codeAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		b[i] = codeAlphabet[n.Int64()]
	}
	return string(b), nil
}

// SeedFromCode derives the puzzle seed of a room from its join code.
func SeedFromCode(code string) int64 {
	h := fnv.New64a()
	h.Write([]byte(code))
	return int64(h.Sum64())
}

func startRoom(s *types.RoomState, now time.Time) bool {
	if s.Room.StartedAt != nil || s.Room.Status == types.RoomStatusEnded {
		return false
	}
	t := now
	s.Room.StartedAt = &t
	s.Room.SetStatus(types.RoomStatusActive)
	return true
}

// StartRoom starts the air clock. Only the first call has an effect.
func (g *Gateway) StartRoom(ctx context.Context, roomID, userID string) (types.Room, error) {
	var room types.Room
	err := g.mutate(ctx, roomID, userID, func(s *types.RoomState, me *types.Player) error {
		changed := startRoom(s, g.now())
		room = s.Room.Copy()
		if !changed {
			return types.Conflict("room already started")
		}
		log.Info("Room %s started by %s", roomID, me.Role)
		return nil
	})
	return room, err
}

// MarkLessonRead records that the caller's role read a puzzle's lesson.
func (g *Gateway) MarkLessonRead(ctx context.Context, roomID, userID, puzzleKey string) error {
	if _, ok := g.graph.Puzzle(puzzleKey); !ok {
		return types.InvalidArgument("unknown puzzle %s", puzzleKey)
	}
	return g.mutate(ctx, roomID, userID, func(s *types.RoomState, me *types.Player) error {
		roles, ok := s.LessonReads[puzzleKey]
		if !ok {
			roles = make(map[types.Role]bool)
			s.LessonReads[puzzleKey] = roles
		}
		if roles[me.Role] {
			return types.Conflict("lesson already read")
		}
		roles[me.Role] = true
		return nil
	})
}

// SolvePuzzle checks answer against the room's variant and applies the
// puzzle's effects on the first correct solve. Later calls return the
// recorded result without granting anything.
func (g *Gateway) SolvePuzzle(ctx context.Context, roomID, userID, puzzleKey string, answer json.RawMessage) (*types.SolveResult, error) {
	effects, ok := g.graph.Puzzle(puzzleKey)
	if !ok {
		return nil, types.InvalidArgument("unknown puzzle %s", puzzleKey)
	}

	var result *types.SolveResult
	err := g.mutate(ctx, roomID, userID, func(s *types.RoomState, me *types.Player) error {
		if p, ok := s.Progress[puzzleKey]; ok && p.Solved {
			result = &types.SolveResult{Correct: true}
			if p.Result != nil {
				result = p.Result.Copy()
			}
			result.AlreadySolved = true
			return types.Conflict("puzzle %s already solved", puzzleKey)
		}

		correct, err := g.checker.Check(s.Room.Seed, puzzleKey, answer)
		if err != nil {
			return err
		}
		if !correct {
			result = &types.SolveResult{Correct: false}
			return types.Conflict("wrong answer for %s", puzzleKey)
		}

		result = applyEffects(s, effects)
		now := g.now()
		s.Progress[puzzleKey] = &types.Progress{
			RoomID:    s.Room.ID,
			PuzzleKey: puzzleKey,
			Solved:    true,
			Payload:   append(json.RawMessage(nil), answer...),
			SolvedAt:  &now,
			Result:    result.Copy(),
		}
		log.Info("Room %s: %s solved %s", roomID, me.Role, puzzleKey)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func applyEffects(s *types.RoomState, effects PuzzleEffects) *types.SolveResult {
	result := &types.SolveResult{
		Correct:          true,
		AirAward:         effects.AirBonus,
		ArtifactsAwarded: []string{},
		DoorsOpened:      []string{},
	}
	for _, a := range effects.Artifacts {
		grantArtifact(s, a.Key, a.Qty)
		result.ArtifactsAwarded = append(result.ArtifactsAwarded, a.Key)
	}
	for _, d := range effects.Doors {
		if openDoor(s, d) {
			result.DoorsOpened = append(result.DoorsOpened, d)
		}
	}
	s.Room.AirBonus += effects.AirBonus
	return result
}

func grantArtifact(s *types.RoomState, key string, qty int) *types.Artifact {
	a, ok := s.Artifacts[key]
	if !ok {
		a = &types.Artifact{RoomID: s.Room.ID, Key: key}
		s.Artifacts[key] = a
	}
	a.Qty += qty
	return a
}

func ensureDoor(s *types.RoomState, key string) *types.Door {
	d, ok := s.Doors[key]
	if !ok {
		d = &types.Door{RoomID: s.Room.ID, Key: key, State: types.DoorStateLocked}
		s.Doors[key] = d
	}
	return d
}

func openDoor(s *types.RoomState, key string) bool {
	return ensureDoor(s, key).Open()
}

// GrantArtifact adds qty of key to the room's artifacts.
func (g *Gateway) GrantArtifact(ctx context.Context, roomID, userID, key string, qty int) (types.Artifact, error) {
	if key == "" {
		return types.Artifact{}, types.InvalidArgument("artifact key is empty")
	}
	if qty <= 0 {
		return types.Artifact{}, types.InvalidArgument("artifact qty must be positive")
	}
	var artifact types.Artifact
	err := g.mutate(ctx, roomID, userID, func(s *types.RoomState, me *types.Player) error {
		artifact = *grantArtifact(s, key, qty)
		return nil
	})
	return artifact, err
}

// OpenDoor opens key, creating it first if needed.
func (g *Gateway) OpenDoor(ctx context.Context, roomID, userID, key string) (types.Door, error) {
	if key == "" {
		return types.Door{}, types.InvalidArgument("door key is empty")
	}
	var door types.Door
	err := g.mutate(ctx, roomID, userID, func(s *types.RoomState, me *types.Player) error {
		changed := openDoor(s, key)
		door = *s.Doors[key]
		if !changed {
			return types.Conflict("door %s already open", key)
		}
		return nil
	})
	return door, err
}

// IncrementAir adds delta seconds to the room's air bonus and returns the
// air left afterwards.
func (g *Gateway) IncrementAir(ctx context.Context, roomID, userID string, delta int) (int, error) {
	if delta < 0 {
		return 0, types.InvalidArgument("air delta must not be negative")
	}
	if delta > MaxAirSeconds {
		return 0, types.InvalidArgument("air delta exceeds %d seconds", MaxAirSeconds)
	}
	var air int
	err := g.mutate(ctx, roomID, userID, func(s *types.RoomState, me *types.Player) error {
		if s.Room.AirInitial+s.Room.AirBonus > MaxAirSeconds-delta {
			return types.InvalidArgument("air would exceed %d seconds", MaxAirSeconds)
		}
		s.Room.AirBonus += delta
		air = AirSeconds(s.Room, g.now())
		if delta == 0 {
			return types.Conflict("zero air delta")
		}
		return nil
	})
	return air, err
}

// InitRoomEntities makes sure every door of the progression exists.
func (g *Gateway) InitRoomEntities(ctx context.Context, roomID, userID string) error {
	return g.mutate(ctx, roomID, userID, func(s *types.RoomState, me *types.Player) error {
		created := 0
		for _, key := range g.graph.Doors {
			if _, ok := s.Doors[key]; !ok {
				ensureDoor(s, key)
				created++
			}
		}
		if created == 0 {
			return types.Conflict("doors already initialized")
		}
		return nil
	})
}

func (g *Gateway) stepOrDefault(step string) string {
	if step == "" {
		return g.graph.StartStep
	}
	return step
}

// afterCrossing fires the transition tied to a crossed step.
func (g *Gateway) afterCrossing(s *types.RoomState, step string) {
	log.Info("Room %s crossed barrier %s", s.Room.ID, step)
	if step == g.graph.StartStep {
		startRoom(s, g.now())
	}
}

// SetRequiredReady sets how many roles must be ready before step is crossed.
// It has no effect once the barrier is crossed.
func (g *Gateway) SetRequiredReady(ctx context.Context, roomID, userID, step string, count int) (types.BarrierStatus, error) {
	if count < 1 || count > types.MaxPlayers {
		return types.BarrierStatus{}, types.InvalidArgument("required count must be 1 or %d", types.MaxPlayers)
	}
	step = g.stepOrDefault(step)
	var status types.BarrierStatus
	err := g.mutate(ctx, roomID, userID, func(s *types.RoomState, me *types.Player) error {
		changed, crossed := setRequired(s, step, count, g.now())
		if crossed {
			g.afterCrossing(s, step)
		}
		status = barrierStatus(s, step)
		if !changed {
			return types.Conflict("barrier %s unchanged", step)
		}
		return nil
	})
	return status, err
}

// MarkReady marks the caller's role ready on step. Repeated calls by the
// same role have no further effect.
func (g *Gateway) MarkReady(ctx context.Context, roomID, userID, step string) (types.BarrierStatus, error) {
	if step == "" {
		return types.BarrierStatus{}, types.InvalidArgument("step is empty")
	}
	var status types.BarrierStatus
	err := g.mutate(ctx, roomID, userID, func(s *types.RoomState, me *types.Player) error {
		changed, crossed := markReady(s, step, me.Role, g.now())
		if crossed {
			g.afterCrossing(s, step)
		}
		status = barrierStatus(s, step)
		if !changed {
			return types.Conflict("%s already ready on %s", me.Role, step)
		}
		return nil
	})
	return status, err
}

// PerformFinal runs the final ritual in mode. item optionally picks the
// artifact used for the solo ending.
func (g *Gateway) PerformFinal(ctx context.Context, roomID, userID string, mode types.EndingMode, item string) (*types.FinalResult, error) {
	if !mode.Valid() {
		return nil, types.InvalidArgument("unknown ending mode %q", mode)
	}
	result, snap, err := g.resolver.Resolve(ctx, roomID, userID, mode, item)
	if err != nil {
		return nil, err
	}
	if snap != nil {
		log.Info("Room %s ended: %s", roomID, result.Ending)
		g.archive(snap, result)
	}
	return result, nil
}

func (g *Gateway) archive(snap *types.Snapshot, result *types.FinalResult) {
	if g.archiveChan == nil {
		return
	}
	run := &models.RunRecord{
		RoomID:        snap.Room.ID,
		Code:          snap.Room.Code,
		Ending:        string(result.Ending),
		Used:          result.Used,
		StartedAt:     snap.Room.StartedAt,
		AirRemaining:  AirSeconds(snap.Room, g.now()),
		PuzzlesSolved: []string{},
		Players:       []models.RunPlayer{},
	}
	if snap.Room.EndedAt != nil {
		run.EndedAt = *snap.Room.EndedAt
	}
	for _, p := range snap.Progress {
		if p.Solved && p.PuzzleKey != g.graph.FinalKey {
			run.PuzzlesSolved = append(run.PuzzlesSolved, p.PuzzleKey)
		}
	}
	for _, p := range snap.Players {
		run.Players = append(run.Players, models.RunPlayer{
			UserID: p.UserID,
			Role:   string(p.Role),
			Status: string(p.Status),
		})
	}
	select {
	case g.archiveChan <- workers.ArchiveRunRequest{Run: run}:
	default:
		log.Error("Archive channel full, dropping run of room %s", run.RoomID)
	}
}

// Snapshot returns the room's entities.
func (g *Gateway) Snapshot(ctx context.Context, roomID, userID string) (*types.Snapshot, error) {
	var snap *types.Snapshot
	err := g.view(ctx, roomID, userID, func(s *types.RoomState) error {
		snap = s.Snapshot()
		return nil
	})
	return snap, err
}

// AirSeconds returns the air left in the room now.
func (g *Gateway) AirSeconds(ctx context.Context, roomID, userID string) (int, error) {
	var air int
	err := g.view(ctx, roomID, userID, func(s *types.RoomState) error {
		air = AirSeconds(s.Room, g.now())
		return nil
	})
	return air, err
}

// BarrierStatus reads step without creating it.
func (g *Gateway) BarrierStatus(ctx context.Context, roomID, userID, step string) (types.BarrierStatus, error) {
	step = g.stepOrDefault(step)
	var status types.BarrierStatus
	err := g.view(ctx, roomID, userID, func(s *types.RoomState) error {
		status = barrierStatus(s, step)
		return nil
	})
	return status, err
}

// Variant returns the room's instance of puzzleKey.
func (g *Gateway) Variant(ctx context.Context, roomID, userID, puzzleKey string) (puzzles.Variant, error) {
	var seed int64
	err := g.view(ctx, roomID, userID, func(s *types.RoomState) error {
		seed = s.Room.Seed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return g.checker.Variant(seed, puzzleKey)
}

// Member returns the caller's player row.
func (g *Gateway) Member(ctx context.Context, roomID, userID string) (*types.Player, error) {
	var me *types.Player
	err := g.store.View(ctx, roomID, func(s *types.RoomState) error {
		p, err := member(s, roomID, userID)
		if err != nil {
			return err
		}
		me = p.Copy()
		return nil
	})
	return me, err
}
