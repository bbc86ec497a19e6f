package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	mocks "github.com/cbodonnell/pyramid/mocks/github.com/cbodonnell/pyramid/pkg/repositories"
	"github.com/cbodonnell/pyramid/pkg/api/handlers"
	authproviders "github.com/cbodonnell/pyramid/pkg/auth/providers"
	"github.com/cbodonnell/pyramid/pkg/game"
	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/cbodonnell/pyramid/pkg/messages"
	"github.com/cbodonnell/pyramid/pkg/network"
	"github.com/cbodonnell/pyramid/pkg/puzzles"
	"github.com/cbodonnell/pyramid/pkg/queue"
	"github.com/cbodonnell/pyramid/pkg/repositories"
	"github.com/cbodonnell/pyramid/pkg/repositories/models"
	"github.com/cbodonnell/pyramid/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
)

type testServer struct {
	url           string
	repository    *mocks.Repository
	clientManager *network.ClientManager
}

func newTestServer(t *testing.T) *testServer {
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
	repository := mocks.NewRepository(t)
	clientManager := network.NewClientManager()

	srv := httptest.NewServer(NewRouter(NewAPIServerOptions{
		AuthProvider:   authproviders.NewInsecureAuthProvider(),
		Gateway:        gateway,
		ClientManager:  clientManager,
		Repository:     repository,
		ExposeVariants: true,
	}))
	t.Cleanup(srv.Close)
	return &testServer{url: srv.URL, repository: repository, clientManager: clientManager}
}

func (s *testServer) do(t *testing.T, method, path, user string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.url+path, &buf)
	require.NoError(t, err)
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+user)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

// newRoom creates a room as user-a and seats user-b.
func (s *testServer) newRoom(t *testing.T) *types.Snapshot {
	t.Helper()
	resp := s.do(t, http.MethodPost, "/rooms", "user-a", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created handlers.RoomResponse
	decode(t, resp, &created)
	assert.Equal(t, types.RoleP1, created.Me.Role)

	resp = s.do(t, http.MethodPost, "/rooms/join", "user-b", handlers.JoinRoomRequest{Code: strings.ToLower(created.Snapshot.Room.Code)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var joined handlers.RoomResponse
	decode(t, resp, &joined)
	assert.Equal(t, types.RoleP2, joined.Me.Role)
	assert.Len(t, joined.Snapshot.Players, 2)
	return joined.Snapshot
}

func TestAPI_ErrorMapping(t *testing.T) {
	s := newTestServer(t)
	snap := s.newRoom(t)
	roomPath := "/rooms/" + snap.Room.ID

	tests := []struct {
		name     string
		method   string
		path     string
		user     string
		body     interface{}
		wantCode int
	}{
		{name: "missing token", method: http.MethodGet, path: roomPath, wantCode: http.StatusUnauthorized},
		{name: "non member", method: http.MethodGet, path: roomPath, user: "user-z", wantCode: http.StatusForbidden},
		{name: "unknown room", method: http.MethodGet, path: "/rooms/nope", user: "user-a", wantCode: http.StatusNotFound},
		{name: "room full", method: http.MethodPost, path: "/rooms/join", user: "user-c", body: handlers.JoinRoomRequest{Code: snap.Room.Code}, wantCode: http.StatusBadRequest},
		{name: "unknown code", method: http.MethodPost, path: "/rooms/join", user: "user-c", body: handlers.JoinRoomRequest{Code: "ZZZZZZ"}, wantCode: http.StatusNotFound},
		{name: "missing code", method: http.MethodPost, path: "/rooms/join", user: "user-c", wantCode: http.StatusBadRequest},
		{name: "negative air", method: http.MethodPost, path: roomPath + "/air", user: "user-a", body: handlers.IncrementAirRequest{Delta: -5}, wantCode: http.StatusBadRequest},
		{name: "bad mode", method: http.MethodPost, path: roomPath + "/final", user: "user-a", body: handlers.FinalRequest{Mode: "flee"}, wantCode: http.StatusBadRequest},
		{name: "bad count", method: http.MethodPost, path: roomPath + "/barriers/start_timer/required", user: "user-a", body: handlers.SetRequiredRequest{Count: 5}, wantCode: http.StatusBadRequest},
		{name: "unknown puzzle", method: http.MethodGet, path: roomPath + "/variants/sphinx", user: "user-a", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
		})
	}
}

func TestAPI_PlayThrough(t *testing.T) {
	s := newTestServer(t)
	snap := s.newRoom(t)
	roomPath := "/rooms/" + snap.Room.ID

	resp := s.do(t, http.MethodPost, roomPath+"/init", "user-a", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	var status types.BarrierStatus
	for _, user := range []string{"user-a", "user-b"} {
		resp = s.do(t, http.MethodPost, roomPath+"/barriers/start_timer/ready", user, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decode(t, resp, &status)
	}
	assert.Equal(t, types.BarrierStatus{Ready: 2, Total: 2, AllReady: true}, status)

	resp = s.do(t, http.MethodGet, roomPath, "user-b", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &snap)
	assert.Equal(t, types.RoomPhasePlay, snap.Room.Phase)
	assert.NotNil(t, snap.Room.StartedAt)

	resp = s.do(t, http.MethodGet, roomPath+"/variants/sword_trial", "user-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var variant map[string]interface{}
	decode(t, resp, &variant)

	answer, err := json.Marshal(map[string]interface{}{"word": variant["word"]})
	require.NoError(t, err)
	resp = s.do(t, http.MethodPost, roomPath+"/puzzles/sword_trial/solve", "user-a", handlers.SolveRequest{Answer: answer})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var solved types.SolveResult
	decode(t, resp, &solved)
	assert.True(t, solved.Correct)
	assert.Equal(t, []string{"bronze_khopesh"}, solved.ArtifactsAwarded)

	resp = s.do(t, http.MethodPost, roomPath+"/air", "user-b", handlers.IncrementAirRequest{Delta: 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var air handlers.AirResponse
	decode(t, resp, &air)
	assert.Greater(t, air.AirSeconds, 1800)

	resp = s.do(t, http.MethodPost, roomPath+"/final", "user-b", handlers.FinalRequest{Mode: types.EndingModeSolo})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var final types.FinalResult
	decode(t, resp, &final)
	assert.True(t, final.Committed)
	assert.Equal(t, types.EndingSolo, final.Ending)
	assert.Equal(t, "bronze_khopesh", final.Used)

	resp = s.do(t, http.MethodPost, roomPath+"/final", "user-a", handlers.FinalRequest{Mode: types.EndingModeSolo})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &final)
	assert.False(t, final.Committed)
	assert.Equal(t, types.EndingSolo, final.Ending)
}

func TestAPI_Runs(t *testing.T) {
	s := newTestServer(t)
	runs := []*models.RunRecord{{RoomID: "room-1", Code: "ABCDEF", Ending: "coop"}}
	s.repository.On("ListRuns", mock.Anything, 10).Return(runs, nil).Once()
	s.repository.On("GetRun", mock.Anything, "room-2").Return(nil, &repositories.ErrNotFound{}).Once()

	resp := s.do(t, http.MethodGet, "/runs?limit=10", "user-a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got []*models.RunRecord
	decode(t, resp, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "room-1", got[0].RoomID)

	resp = s.do(t, http.MethodGet, "/runs/room-2", "user-a", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/runs?limit=x", "user-a", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_VariantsHiddenByDefault(t *testing.T) {
	graph, err := game.DefaultProgressionGraph()
	require.NoError(t, err)
	gateway := game.NewGateway(game.NewGatewayOptions{
		Store:      state.NewInMemorySessionStore(state.NewInMemorySessionStoreOptions{}),
		Graph:      graph,
		Checker:    puzzles.NewCatalog(),
		EventQueue: queue.NewInMemoryQueue(0),
	})
	srv := httptest.NewServer(NewRouter(NewAPIServerOptions{
		AuthProvider:  authproviders.NewInsecureAuthProvider(),
		Gateway:       gateway,
		ClientManager: network.NewClientManager(),
	}))
	defer srv.Close()
	s := &testServer{url: srv.URL}

	resp := s.do(t, http.MethodPost, "/rooms", "user-a", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created handlers.RoomResponse
	decode(t, resp, &created)

	resp = s.do(t, http.MethodGet, "/rooms/"+created.Snapshot.Room.ID+"/variants/stars", "user-a", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/rooms/"+created.Snapshot.Room.ID, "user-a", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	s := newTestServer(t)
	resp := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	decode(t, resp, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_SignalAndPresence(t *testing.T) {
	s := newTestServer(t)
	snap := s.newRoom(t)
	roomPath := "/rooms/" + snap.Room.ID

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(s.url, "http") + roomPath + "/signal?access_token=user-a"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	msg, err := network.ReadMessageFromWS(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, messages.MessageTypePresence, msg.Type)
	var presence messages.PresencePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &presence))
	assert.Equal(t, []string{"P1"}, presence.Roles)

	resp := s.do(t, http.MethodGet, roomPath+"/presence", "user-b", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var roles handlers.PresenceResponse
	decode(t, resp, &roles)
	assert.Equal(t, []types.Role{types.RoleP1}, roles.Roles)

	_, _, err = websocket.Dial(ctx, "ws"+strings.TrimPrefix(s.url, "http")+roomPath+"/signal?access_token=user-z", nil)
	assert.Error(t, err)
}
