package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cbodonnell/pyramid/pkg/api"
	authproviders "github.com/cbodonnell/pyramid/pkg/auth/providers"
	"github.com/cbodonnell/pyramid/pkg/game"
	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/cbodonnell/pyramid/pkg/network"
	"github.com/cbodonnell/pyramid/pkg/puzzles"
	"github.com/cbodonnell/pyramid/pkg/queue"
	"github.com/cbodonnell/pyramid/pkg/state"
	"github.com/cbodonnell/pyramid/pkg/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startServer runs the room API with a live broadcast worker.
func startServer(t *testing.T) string {
	t.Helper()
	graph, err := game.DefaultProgressionGraph()
	require.NoError(t, err)

	events := queue.NewInMemoryQueue(0)
	clientManager := network.NewClientManager()
	gateway := game.NewGateway(game.NewGatewayOptions{
		Store:              state.NewInMemorySessionStore(state.NewInMemorySessionStoreOptions{}),
		Graph:              graph,
		Checker:            puzzles.NewCatalog(),
		EventQueue:         events,
		AirInitialSeconds:  1800,
		RitualPollAttempts: 2,
		RitualPollInterval: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	worker := workers.NewBroadcastWorker(workers.NewBroadcastWorkerOptions{
		EventQueue:  events,
		Broadcaster: clientManager,
		Interval:    10 * time.Millisecond,
	})
	go worker.Start(ctx)

	srv := httptest.NewServer(api.NewRouter(api.NewAPIServerOptions{
		AuthProvider:   authproviders.NewInsecureAuthProvider(),
		Gateway:        gateway,
		ExposeVariants: true,
		ClientManager:  clientManager,
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func newPair(t *testing.T, baseURL string) (a, b *APIClient, roomID string) {
	t.Helper()
	ctx := context.Background()
	a = NewAPIClient(NewAPIClientOptions{BaseURL: baseURL, Token: "user-a"})
	b = NewAPIClient(NewAPIClientOptions{BaseURL: baseURL, Token: "user-b"})

	created, err := a.CreateRoom(ctx)
	require.NoError(t, err)
	joined, err := b.JoinRoom(ctx, created.Snapshot.Room.Code)
	require.NoError(t, err)
	assert.Equal(t, types.RoleP2, joined.Me.Role)
	return a, b, created.Snapshot.Room.ID
}

func TestAPIClient(t *testing.T) {
	baseURL := startServer(t)
	a, b, roomID := newPair(t, baseURL)
	ctx := context.Background()

	require.NoError(t, a.InitRoomEntities(ctx, roomID))

	variant, err := a.Variant(ctx, roomID, puzzles.Stars)
	require.NoError(t, err)
	result, err := b.SolvePuzzle(ctx, roomID, puzzles.Stars, map[string]interface{}{"direction": variant["direction"]})
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.Equal(t, []string{"light_shaft"}, result.DoorsOpened)

	door, err := a.OpenDoor(ctx, roomID, "light_shaft")
	require.NoError(t, err)
	assert.Equal(t, types.DoorStateOpen, door.State)

	artifact, err := a.GrantArtifact(ctx, roomID, "scarab", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, artifact.Qty)

	room, err := a.StartRoom(ctx, roomID)
	require.NoError(t, err)
	assert.NotNil(t, room.StartedAt)

	air, err := b.IncrementAir(ctx, roomID, 5)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, air, 1804)

	status, err := a.SetRequiredReady(ctx, roomID, "gallery", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Total)

	outsider := NewAPIClient(NewAPIClientOptions{BaseURL: baseURL, Token: "user-z"})
	_, err = outsider.Snapshot(ctx, roomID)
	assert.True(t, IsStatus(err, http.StatusForbidden))
	_, err = a.Snapshot(ctx, "missing")
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestWaitForBarrier(t *testing.T) {
	baseURL := startServer(t)
	a, b, roomID := newPair(t, baseURL)
	ctx := context.Background()

	_, err := a.MarkReady(ctx, roomID, "start_timer")
	require.NoError(t, err)

	status, err := WaitForBarrier(ctx, a, roomID, "start_timer", 3, time.Millisecond)
	require.NoError(t, err, "running out of tries is not an error")
	assert.Equal(t, types.BarrierStatus{Ready: 1, Total: 2, AllReady: false}, status)

	go func() {
		time.Sleep(20 * time.Millisecond)
		b.MarkReady(context.Background(), roomID, "start_timer")
	}()
	status, err = WaitForBarrier(ctx, a, roomID, "start_timer", 500, 5*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, status.AllReady)

	outsider := NewAPIClient(NewAPIClientOptions{BaseURL: baseURL, Token: "user-z"})
	_, err = WaitForBarrier(ctx, outsider, roomID, "start_timer", 100, time.Millisecond)
	assert.True(t, IsStatus(err, http.StatusForbidden))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = WaitForBarrier(cancelled, a, roomID, "other", 100, time.Millisecond)
	assert.Error(t, err)
}

func TestCache_FollowsSignals(t *testing.T) {
	baseURL := startServer(t)
	a, b, roomID := newPair(t, baseURL)

	cache := NewCache(NewCacheOptions{
		API:              a,
		RoomID:           roomID,
		UserID:           "user-a",
		SnapshotInterval: time.Hour,
		AirInterval:      time.Hour,
	})
	changes := make(chan *types.Snapshot, 64)
	cache.OnChange(func(s *types.Snapshot) {
		select {
		case changes <- s:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cache.Start(ctx)

	require.Eventually(t, func() bool { return cache.Snapshot() != nil }, 2*time.Second, 5*time.Millisecond)
	air, ok := cache.Air()
	assert.True(t, ok)
	assert.Equal(t, 1800, air)
	require.NotNil(t, cache.Me())
	assert.Equal(t, types.RoleP1, cache.Me().Role)
	require.Eventually(t, func() bool { return len(cache.Presence()) == 1 }, 2*time.Second, 5*time.Millisecond)

	// mutations by the partner arrive through the signal channel only
	_, err := b.OpenDoor(context.Background(), roomID, "vent_grate")
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return cache.DoorOpen("vent_grate") }, 2*time.Second, 5*time.Millisecond)

	_, err = b.GrantArtifact(context.Background(), roomID, "bronze_khopesh", 1)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return cache.ArtifactQty("bronze_khopesh") == 1 }, 2*time.Second, 5*time.Millisecond)

	_, ok = cache.Ending()
	assert.False(t, ok)
	final, err := b.PerformFinal(context.Background(), roomID, types.EndingModeSolo, "")
	require.NoError(t, err)
	assert.True(t, final.Committed)
	assert.Eventually(t, func() bool {
		ending, ok := cache.Ending()
		return ok && ending == types.EndingSolo
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, cache.Solved(puzzles.Cartouche))
	assert.NotEmpty(t, changes)
}

func TestCache_KeepsLastSnapshotOnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cache := NewCache(NewCacheOptions{
		API:    NewAPIClient(NewAPIClientOptions{BaseURL: srv.URL, Token: "user-a"}),
		RoomID: "room",
	})
	cache.Refresh(context.Background())
	cache.RefreshAir(context.Background())
	assert.Nil(t, cache.Snapshot())
	_, ok := cache.Air()
	assert.False(t, ok)
	assert.False(t, cache.DoorOpen("ankh_door"))
	assert.Nil(t, cache.Me())
}

func TestSignalURL(t *testing.T) {
	c := NewAPIClient(NewAPIClientOptions{BaseURL: "https://pyramid.example.com/", Token: "tok en"})
	assert.Equal(t, "wss://pyramid.example.com/rooms/r1/signal?access_token=tok+en", c.SignalURL("r1"))
	c = NewAPIClient(NewAPIClientOptions{BaseURL: "http://localhost:9090", Token: "user-a"})
	assert.Equal(t, "ws://localhost:9090/rooms/r1/signal?access_token=user-a", c.SignalURL("r1"))
}
