package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/cbodonnell/pyramid/pkg/state"
	"github.com/cenkalti/backoff/v5"
)

const (
	coopMessage    = "Ma'at is balanced. You leave the pyramid together."
	soloMessage    = "The counterweight drops. You escape alone."
	decidedMessage = "The pyramid has already chosen its ending."
)

var errRitualPending = errors.New("ritual partner not ready")

// EndingResolver commits the terminal outcome of a room exactly once.
type EndingResolver struct {
	store        state.SessionStore
	graph        *ProgressionGraph
	now          func() time.Time
	pollAttempts uint
	pollInterval time.Duration
	notify       func(roomID string)
}

type NewEndingResolverOptions struct {
	Store        state.SessionStore
	Graph        *ProgressionGraph
	Now          func() time.Time
	PollAttempts uint
	PollInterval time.Duration
	// Notify is called after every effective mutation.
	Notify func(roomID string)
}

func NewEndingResolver(opts NewEndingResolverOptions) *EndingResolver {
	r := &EndingResolver{
		store:        opts.Store,
		graph:        opts.Graph,
		now:          opts.Now,
		pollAttempts: opts.PollAttempts,
		pollInterval: opts.PollInterval,
		notify:       opts.Notify,
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.pollAttempts == 0 {
		r.pollAttempts = 1
	}
	if r.notify == nil {
		r.notify = func(string) {}
	}
	return r
}

// Resolve runs the final ritual for userID. The returned snapshot is non-nil
// only when this call committed the ending.
func (r *EndingResolver) Resolve(ctx context.Context, roomID, userID string, mode types.EndingMode, item string) (*types.FinalResult, *types.Snapshot, error) {
	switch mode {
	case types.EndingModeCooperate:
		return r.cooperate(ctx, roomID, userID)
	case types.EndingModeSolo:
		return r.solo(ctx, roomID, userID, item)
	default:
		return nil, nil, types.InvalidArgument("unknown ending mode %q", mode)
	}
}

// recordedResult is what a caller sees once the ending is decided.
func (r *EndingResolver) recordedResult(s *types.RoomState) (*types.FinalResult, bool) {
	p, ok := s.Progress[r.graph.FinalKey]
	if !ok || !p.Solved {
		return nil, false
	}
	var payload types.FinalPayload
	if err := json.Unmarshal(p.Payload, &payload); err != nil {
		log.Warn("Room %s has an unreadable ending payload: %v", s.Room.ID, err)
	}
	return &types.FinalResult{
		Ending:    payload.Ending,
		Used:      payload.Used,
		Committed: false,
		Message:   decidedMessage,
	}, true
}

func member(s *types.RoomState, roomID, userID string) (*types.Player, error) {
	me := s.PlayerByUserID(userID)
	if me == nil {
		return nil, types.Unauthorized(userID, roomID)
	}
	return me, nil
}

func (r *EndingResolver) cooperate(ctx context.Context, roomID, userID string) (*types.FinalResult, *types.Snapshot, error) {
	var decided *types.FinalResult
	err := r.store.Update(ctx, roomID, func(s *types.RoomState) error {
		me, err := member(s, roomID, userID)
		if err != nil {
			return err
		}
		if res, ok := r.recordedResult(s); ok {
			decided = res
			return types.Conflict("ending already recorded")
		}
		if s.ArtifactQty(r.graph.CooperativePrerequisite) <= 0 {
			return types.InvalidArgument("the %s is required for the cooperative ritual", r.graph.CooperativePrerequisite)
		}
		if me.Status != types.PlayerStatusActive {
			return types.InvalidArgument("player %s is no longer active", me.Role)
		}

		required := len(s.ActivePlayers())
		b := ensureBarrier(s, r.graph.RitualStep)
		changed := false
		if !b.Crossed && b.RequiredCount != required {
			b.RequiredCount = required
			changed = true
		}
		ready, _ := markReady(s, r.graph.RitualStep, me.Role, r.now())
		if !changed && !ready {
			return types.Conflict("already waiting on the ritual")
		}
		return nil
	})
	switch {
	case decided != nil:
		return decided, nil, nil
	case err == nil:
		r.notify(roomID)
	case !types.IsConflict(err):
		return nil, nil, err
	}

	if err := r.waitForRitual(ctx, roomID); err != nil {
		return nil, nil, err
	}

	return r.commit(ctx, roomID, userID, func(s *types.RoomState, me *types.Player) (types.FinalPayload, error) {
		for _, p := range s.Players {
			p.SetStatus(types.PlayerStatusEscaped)
		}
		return types.FinalPayload{Ending: types.EndingCoop}, nil
	}, coopMessage)
}

// waitForRitual polls the ritual barrier until every active player is ready,
// the ending is decided elsewhere, or the attempt budget runs out.
// Only a cancelled context is reported as an error.
func (r *EndingResolver) waitForRitual(ctx context.Context, roomID string) error {
	_, err := backoff.Retry(ctx, func() (bool, error) {
		done := false
		err := r.store.View(ctx, roomID, func(s *types.RoomState) error {
			if _, ok := r.recordedResult(s); ok {
				done = true
				return nil
			}
			done = barrierStatus(s, r.graph.RitualStep).AllReady
			return nil
		})
		if err != nil {
			return false, backoff.Permanent(err)
		}
		if !done {
			return false, errRitualPending
		}
		return true, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(r.pollInterval)),
		backoff.WithMaxTries(r.pollAttempts),
	)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil && !errors.Is(err, errRitualPending) {
		return err
	}
	if err != nil {
		log.Debug("Room %s ritual budget spent, proceeding with active players", roomID)
	}
	return nil
}

func (r *EndingResolver) solo(ctx context.Context, roomID, userID, item string) (*types.FinalResult, *types.Snapshot, error) {
	return r.commit(ctx, roomID, userID, func(s *types.RoomState, me *types.Player) (types.FinalPayload, error) {
		used, err := r.soloItem(s, item)
		if err != nil {
			return types.FinalPayload{}, err
		}
		if me.Status != types.PlayerStatusActive {
			return types.FinalPayload{}, types.InvalidArgument("player %s is no longer active", me.Role)
		}
		me.SetStatus(types.PlayerStatusEscaped)
		for _, p := range s.Players {
			if p.ID != me.ID {
				p.SetStatus(types.PlayerStatusDown)
			}
		}
		return types.FinalPayload{Ending: types.EndingSolo, Used: used}, nil
	}, soloMessage)
}

func (r *EndingResolver) soloItem(s *types.RoomState, item string) (string, error) {
	if item != "" {
		if !r.graph.IsSoloPrerequisite(item) {
			return "", types.InvalidArgument("%s cannot be used for the solo ending", item)
		}
		if s.ArtifactQty(item) <= 0 {
			return "", types.InvalidArgument("the room does not hold %s", item)
		}
		return item, nil
	}
	for _, candidate := range r.graph.SoloPrerequisites {
		if s.ArtifactQty(candidate) > 0 {
			return candidate, nil
		}
	}
	return "", types.InvalidArgument("the solo ending requires one of %v", r.graph.SoloPrerequisites)
}

// commit is the compare-and-set on the final progress entry. apply mutates
// the players and returns the payload to record.
func (r *EndingResolver) commit(ctx context.Context, roomID, userID string, apply func(s *types.RoomState, me *types.Player) (types.FinalPayload, error), message string) (*types.FinalResult, *types.Snapshot, error) {
	var result *types.FinalResult
	var snap *types.Snapshot
	err := r.store.Update(ctx, roomID, func(s *types.RoomState) error {
		me, err := member(s, roomID, userID)
		if err != nil {
			return err
		}
		if res, ok := r.recordedResult(s); ok {
			result = res
			return types.Conflict("ending already recorded")
		}

		payload, err := apply(s, me)
		if err != nil {
			return err
		}
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal ending: %v", err)
		}

		now := r.now()
		s.Progress[r.graph.FinalKey] = &types.Progress{
			RoomID:    s.Room.ID,
			PuzzleKey: r.graph.FinalKey,
			Solved:    true,
			Payload:   b,
			SolvedAt:  &now,
		}
		s.Room.SetStatus(types.RoomStatusEnded)
		s.Room.SetPhase(types.RoomPhaseEnded)
		s.Room.EndedAt = &now

		result = &types.FinalResult{
			Ending:    payload.Ending,
			Used:      payload.Used,
			Committed: true,
			Message:   message,
		}
		snap = s.Snapshot()
		return nil
	})
	if types.IsConflict(err) {
		return result, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	r.notify(roomID)
	return result, snap, nil
}
