package client

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/cbodonnell/pyramid/pkg/messages"
	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultSnapshotInterval = 4 * time.Second
	DefaultAirInterval      = 2 * time.Second
	// finalKey is the progress entry that records the ending.
	finalKey = "maat"
)

// Cache mirrors the authoritative room state for one player. It is never
// written by the player directly: mutations go through the API and the
// cache re-pulls on signals and on its polling ticks.
type Cache struct {
	api              *APIClient
	roomID           string
	userID           string
	snapshotInterval time.Duration
	airInterval      time.Duration

	mu       sync.RWMutex
	snapshot *types.Snapshot
	air      int
	hasAir   bool
	presence []types.Role
	onChange []func(*types.Snapshot)
}

type NewCacheOptions struct {
	API    *APIClient
	RoomID string
	// UserID identifies the caller's player row in snapshots.
	UserID           string
	SnapshotInterval time.Duration
	AirInterval      time.Duration
}

func NewCache(opts NewCacheOptions) *Cache {
	c := &Cache{
		api:              opts.API,
		roomID:           opts.RoomID,
		userID:           opts.UserID,
		snapshotInterval: opts.SnapshotInterval,
		airInterval:      opts.AirInterval,
	}
	if c.snapshotInterval <= 0 {
		c.snapshotInterval = DefaultSnapshotInterval
	}
	if c.airInterval <= 0 {
		c.airInterval = DefaultAirInterval
	}
	return c
}

// OnChange registers fn to run after every snapshot pull.
func (c *Cache) OnChange(fn func(*types.Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

// Start pulls once, then keeps the cache fresh until ctx is cancelled.
func (c *Cache) Start(ctx context.Context) {
	c.Refresh(ctx)
	c.RefreshAir(ctx)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		c.poll(ctx, c.snapshotInterval, c.Refresh)
	}()
	go func() {
		defer wg.Done()
		c.poll(ctx, c.airInterval, c.RefreshAir)
	}()
	go func() {
		defer wg.Done()
		c.subscribe(ctx)
	}()
	wg.Wait()
}

func (c *Cache) poll(ctx context.Context, interval time.Duration, pull func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pull(ctx)
		}
	}
}

// subscribe keeps a signal connection open, reconnecting with backoff.
func (c *Cache) subscribe(ctx context.Context) {
	for ctx.Err() == nil {
		sig, err := backoff.Retry(ctx, func() (*SignalClient, error) {
			return DialSignal(ctx, c.api, c.roomID)
		}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxElapsedTime(0))
		if err != nil {
			if ctx.Err() == nil {
				log.Debug("Signal channel for room %s unavailable: %v", c.roomID, err)
			}
			continue
		}
		if err := sig.Announce(ctx); err != nil {
			log.Debug("Failed to announce presence in room %s: %v", c.roomID, err)
		}
		// catch up on anything missed while disconnected
		c.Refresh(ctx)
		if err := sig.Listen(ctx, func(msg *messages.Message) { c.handleSignal(ctx, msg) }); err != nil {
			log.Debug("Signal channel for room %s dropped: %v", c.roomID, err)
		}
		sig.Close()
	}
}

func (c *Cache) handleSignal(ctx context.Context, msg *messages.Message) {
	switch msg.Type {
	case messages.MessageTypePresence:
		var p messages.PresencePayload
		if err := json.Unmarshal(msg.Payload, &p); err == nil {
			roles := make([]types.Role, 0, len(p.Roles))
			for _, r := range p.Roles {
				roles = append(roles, types.Role(r))
			}
			c.mu.Lock()
			c.presence = roles
			c.mu.Unlock()
		}
		c.Refresh(ctx)
	case messages.MessageTypeRefresh:
		c.Refresh(ctx)
	}
}

// Refresh pulls the snapshot. Errors keep the last known snapshot.
func (c *Cache) Refresh(ctx context.Context) {
	snap, err := c.api.Snapshot(ctx, c.roomID)
	if err != nil {
		if ctx.Err() == nil {
			log.Debug("Failed to refresh room %s: %v", c.roomID, err)
		}
		return
	}
	c.mu.Lock()
	c.snapshot = snap
	listeners := append([]func(*types.Snapshot){}, c.onChange...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}

// RefreshAir pulls the air value. Errors keep the last known value.
func (c *Cache) RefreshAir(ctx context.Context) {
	air, err := c.api.AirSeconds(ctx, c.roomID)
	if err != nil {
		if ctx.Err() == nil {
			log.Debug("Failed to refresh air of room %s: %v", c.roomID, err)
		}
		return
	}
	c.mu.Lock()
	c.air = air
	c.hasAir = true
	c.mu.Unlock()
}

// Snapshot returns the last pulled snapshot, or nil.
func (c *Cache) Snapshot() *types.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot
}

// Air returns the last pulled air value and whether one was ever pulled.
func (c *Cache) Air() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.air, c.hasAir
}

// Presence returns the roles last reported on the signal channel.
func (c *Cache) Presence() []types.Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.Role(nil), c.presence...)
}

func (c *Cache) DoorOpen(key string) bool {
	snap := c.Snapshot()
	if snap == nil {
		return false
	}
	d := snap.Door(key)
	return d != nil && d.State == types.DoorStateOpen
}

func (c *Cache) ArtifactQty(key string) int {
	snap := c.Snapshot()
	if snap == nil {
		return 0
	}
	return snap.ArtifactQty(key)
}

func (c *Cache) Solved(puzzleKey string) bool {
	snap := c.Snapshot()
	if snap == nil {
		return false
	}
	p := snap.ProgressFor(puzzleKey)
	return p != nil && p.Solved
}

// Me returns the caller's player row.
func (c *Cache) Me() *types.Player {
	snap := c.Snapshot()
	if snap == nil {
		return nil
	}
	return snap.PlayerByUserID(c.userID)
}

// Ending returns the recorded ending, if the room has one.
func (c *Cache) Ending() (types.Ending, bool) {
	snap := c.Snapshot()
	if snap == nil {
		return "", false
	}
	p := snap.ProgressFor(finalKey)
	if p == nil || !p.Solved {
		return "", false
	}
	var payload types.FinalPayload
	if err := json.Unmarshal(p.Payload, &payload); err != nil {
		return "", false
	}
	return payload.Ending, true
}
