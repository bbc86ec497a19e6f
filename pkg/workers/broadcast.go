package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/cbodonnell/pyramid/pkg/messages"
	"github.com/cbodonnell/pyramid/pkg/queue"
)

// RoomBroadcaster delivers a message to the subscribers of a room.
type RoomBroadcaster interface {
	SendToRoom(ctx context.Context, roomID string, msg *messages.Message, exceptID string) int
}

// BroadcastWorker turns queued room-changed events into refresh signals.
type BroadcastWorker struct {
	eventQueue  queue.Queue
	broadcaster RoomBroadcaster
	interval    time.Duration
}

type NewBroadcastWorkerOptions struct {
	EventQueue  queue.Queue
	Broadcaster RoomBroadcaster
	Interval    time.Duration
}

// NewBroadcastWorker creates a new BroadcastWorker.
// Every tick it drains the event queue and sends at most one refresh
// per changed room.
func NewBroadcastWorker(opts NewBroadcastWorkerOptions) *BroadcastWorker {
	return &BroadcastWorker{
		eventQueue:  opts.EventQueue,
		broadcaster: opts.Broadcaster,
		interval:    opts.Interval,
	}
}

func (w *BroadcastWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

// flush drains the queue and returns the rooms that were signalled.
func (w *BroadcastWorker) flush(ctx context.Context) []string {
	pending, err := w.eventQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read room events: %v", err)
		return nil
	}

	seen := make(map[string]bool, len(pending))
	rooms := []string{}
	for _, item := range pending {
		event, ok := item.(*types.RoomChangedEvent)
		if !ok {
			log.Error("Unknown room event type: %T", item)
			continue
		}
		if seen[event.RoomID] {
			continue
		}
		seen[event.RoomID] = true
		rooms = append(rooms, event.RoomID)
	}

	for _, roomID := range rooms {
		n := w.broadcaster.SendToRoom(ctx, roomID, messages.NewRefresh(roomID), "")
		log.Trace("Sent refresh for room %s to %d clients", roomID, n)
	}
	return rooms
}
