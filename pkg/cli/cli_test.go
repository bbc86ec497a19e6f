package cli

import (
	"bytes"
	"fmt"
	"net/http/httptest"
	"strings"
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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) string {
	t.Helper()
	graph, err := game.DefaultProgressionGraph()
	require.NoError(t, err)

	gateway := game.NewGateway(game.NewGatewayOptions{
		Store:              state.NewInMemorySessionStore(state.NewInMemorySessionStoreOptions{}),
		Graph:              graph,
		Checker:            puzzles.NewCatalog(),
		EventQueue:         queue.NewInMemoryQueue(0),
		AirInitialSeconds:  1800,
		RitualPollAttempts: 1,
		RitualPollInterval: time.Millisecond,
	})
	srv := httptest.NewServer(api.NewRouter(api.NewAPIServerOptions{
		AuthProvider:   authproviders.NewInsecureAuthProvider(),
		Gateway:        gateway,
		ExposeVariants: true,
		ClientManager:  network.NewClientManager(),
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	server := startServer(t)
	as := func(user string, args ...string) string {
		t.Helper()
		out, err := run(t, append([]string{"--server", server, "--token", user}, args...)...)
		require.NoError(t, err, "pyramid %s", strings.Join(args, " "))
		return out
	}

	var roomID, code string
	var role types.Role
	_, err := fmt.Sscanf(as("user-a", "create"), "room %s code %s role %s", &roomID, &code, &role)
	require.NoError(t, err)
	assert.Equal(t, types.RoleP1, role)

	assert.Contains(t, as("user-b", "join", code), "role P2")
	assert.Equal(t, "1800\n", as("user-a", "air", roomID))
	assert.Equal(t, "1830\n", as("user-b", "air", roomID, "--add", "30"))
	assert.Contains(t, as("user-a", "start", roomID), "active")
	assert.Contains(t, as("user-a", "show", roomID), `"status": "active"`)

	assert.Contains(t, as("user-a", "solve", roomID, puzzles.Stars, `{"direction":"up"}`), `"correct": false`)
	assert.Equal(t, "scarab x2\n", as("user-a", "grant", roomID, "scarab", "--qty", "2"))

	assert.Equal(t, "entrance 1/1 ready\n", as("user-a", "ready", roomID, "entrance", "--required", "1"))
	assert.Equal(t, "chamber 1/2 ready\n", as("user-a", "ready", roomID, "chamber", "--wait", "--tries", "2", "--interval", "1ms"))
	assert.Equal(t, "chamber 2/2 ready\n", as("user-b", "ready", roomID, "chamber"))
}

func TestCommandErrors(t *testing.T) {
	server := startServer(t)
	t.Setenv("PYRAMID_TOKEN", "")

	_, err := run(t, "--server", server, "air", "room")
	assert.ErrorContains(t, err, "token is required")

	_, err = run(t, "--server", server, "--token", "user-a", "solve", "room", puzzles.Stars, "{nope")
	assert.ErrorContains(t, err, "answer must be JSON")

	_, err = run(t, "--server", server, "--token", "user-a", "show", "missing")
	assert.Error(t, err)

	_, err = run(t, "--server", server, "--token", "user-a", "--log-level", "loud", "show", "missing")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestSummarize(t *testing.T) {
	snap := &types.Snapshot{
		Room: types.Room{Status: types.RoomStatusActive, Phase: types.RoomPhasePlay},
		Doors: []*types.Door{
			{Key: "b", State: types.DoorStateOpen},
			{Key: "a", State: types.DoorStateLocked},
		},
		Artifacts: []*types.Artifact{{Key: "scarab", Qty: 1}, {Key: "ankh", Qty: 0}},
		Progress:  []*types.Progress{{PuzzleKey: "stars", Solved: true}},
	}
	assert.Equal(t, "status=active phase=play open=[b] items=[scarab:1] solved=[stars]", summarize(snap))
}
