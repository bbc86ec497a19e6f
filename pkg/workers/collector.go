package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/cbodonnell/pyramid/pkg/state"
)

// RoomCloser drops the live connections of a room.
type RoomCloser interface {
	CloseRoom(roomID string)
}

// CollectorWorker removes rooms that have been idle past the timeout.
type CollectorWorker struct {
	store    state.SessionStore
	closer   RoomCloser
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
}

type NewCollectorWorkerOptions struct {
	Store    state.SessionStore
	Closer   RoomCloser
	Interval time.Duration
	Timeout  time.Duration
	Now      func() time.Time
}

func NewCollectorWorker(opts NewCollectorWorkerOptions) *CollectorWorker {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &CollectorWorker{
		store:    opts.Store,
		closer:   opts.Closer,
		interval: opts.Interval,
		timeout:  opts.Timeout,
		now:      now,
	}
}

func (w *CollectorWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.collect()
		}
	}
}

func (w *CollectorWorker) collect() []string {
	removed := w.store.CollectInactive(w.now(), w.timeout)
	for _, roomID := range removed {
		log.Info("Room %s collected after %s of inactivity", roomID, w.timeout)
		if w.closer != nil {
			w.closer.CloseRoom(roomID)
		}
	}
	return removed
}
