package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cbodonnell/pyramid/pkg/api/handlers"
	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/cbodonnell/pyramid/pkg/puzzles"
	"github.com/cbodonnell/pyramid/pkg/repositories/models"
)

// APIError is a non-2xx answer from the room API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var e *APIError
	return errors.As(err, &e) && e.StatusCode == code
}

// APIClient calls the room API on behalf of one authenticated user.
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type NewAPIClientOptions struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewAPIClient(opts NewAPIClientOptions) *APIClient {
	c := &APIClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		httpClient: opts.HTTPClient,
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}
	return c
}

// SignalURL returns the WebSocket address of a room's signal channel.
func (c *APIClient) SignalURL(roomID string) string {
	u := c.baseURL + roomPath(roomID) + "/signal?access_token=" + url.QueryEscape(c.token)
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

func roomPath(roomID string) string {
	return "/rooms/" + url.PathEscape(roomID)
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}

func (c *APIClient) CreateRoom(ctx context.Context) (*handlers.RoomResponse, error) {
	out := &handlers.RoomResponse{}
	if err := c.do(ctx, http.MethodPost, "/rooms", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) JoinRoom(ctx context.Context, code string) (*handlers.RoomResponse, error) {
	out := &handlers.RoomResponse{}
	if err := c.do(ctx, http.MethodPost, "/rooms/join", handlers.JoinRoomRequest{Code: code}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) Snapshot(ctx context.Context, roomID string) (*types.Snapshot, error) {
	out := &types.Snapshot{}
	if err := c.do(ctx, http.MethodGet, roomPath(roomID), nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) AirSeconds(ctx context.Context, roomID string) (int, error) {
	out := &handlers.AirResponse{}
	if err := c.do(ctx, http.MethodGet, roomPath(roomID)+"/air", nil, out); err != nil {
		return 0, err
	}
	return out.AirSeconds, nil
}

func (c *APIClient) BarrierStatus(ctx context.Context, roomID, step string) (types.BarrierStatus, error) {
	var out types.BarrierStatus
	err := c.do(ctx, http.MethodGet, roomPath(roomID)+"/barriers/"+url.PathEscape(step), nil, &out)
	return out, err
}

func (c *APIClient) Variant(ctx context.Context, roomID, puzzleKey string) (puzzles.Variant, error) {
	out := puzzles.Variant{}
	if err := c.do(ctx, http.MethodGet, roomPath(roomID)+"/variants/"+url.PathEscape(puzzleKey), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) Presence(ctx context.Context, roomID string) ([]types.Role, error) {
	out := &handlers.PresenceResponse{}
	if err := c.do(ctx, http.MethodGet, roomPath(roomID)+"/presence", nil, out); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

func (c *APIClient) InitRoomEntities(ctx context.Context, roomID string) error {
	return c.do(ctx, http.MethodPost, roomPath(roomID)+"/init", nil, nil)
}

func (c *APIClient) StartRoom(ctx context.Context, roomID string) (*types.Room, error) {
	out := &types.Room{}
	if err := c.do(ctx, http.MethodPost, roomPath(roomID)+"/start", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) MarkLessonRead(ctx context.Context, roomID, puzzleKey string) error {
	return c.do(ctx, http.MethodPost, roomPath(roomID)+"/lessons/"+url.PathEscape(puzzleKey), nil, nil)
}

func (c *APIClient) SolvePuzzle(ctx context.Context, roomID, puzzleKey string, answer interface{}) (*types.SolveResult, error) {
	raw, err := json.Marshal(answer)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answer: %v", err)
	}
	out := &types.SolveResult{}
	path := roomPath(roomID) + "/puzzles/" + url.PathEscape(puzzleKey) + "/solve"
	if err := c.do(ctx, http.MethodPost, path, handlers.SolveRequest{Answer: raw}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) GrantArtifact(ctx context.Context, roomID, key string, qty int) (*types.Artifact, error) {
	out := &types.Artifact{}
	path := roomPath(roomID) + "/artifacts/" + url.PathEscape(key)
	if err := c.do(ctx, http.MethodPost, path, handlers.GrantArtifactRequest{Qty: qty}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) OpenDoor(ctx context.Context, roomID, key string) (*types.Door, error) {
	out := &types.Door{}
	if err := c.do(ctx, http.MethodPost, roomPath(roomID)+"/doors/"+url.PathEscape(key)+"/open", nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) IncrementAir(ctx context.Context, roomID string, delta int) (int, error) {
	out := &handlers.AirResponse{}
	if err := c.do(ctx, http.MethodPost, roomPath(roomID)+"/air", handlers.IncrementAirRequest{Delta: delta}, out); err != nil {
		return 0, err
	}
	return out.AirSeconds, nil
}

func (c *APIClient) SetRequiredReady(ctx context.Context, roomID, step string, count int) (types.BarrierStatus, error) {
	var out types.BarrierStatus
	path := roomPath(roomID) + "/barriers/" + url.PathEscape(step) + "/required"
	err := c.do(ctx, http.MethodPost, path, handlers.SetRequiredRequest{Count: count}, &out)
	return out, err
}

func (c *APIClient) MarkReady(ctx context.Context, roomID, step string) (types.BarrierStatus, error) {
	var out types.BarrierStatus
	err := c.do(ctx, http.MethodPost, roomPath(roomID)+"/barriers/"+url.PathEscape(step)+"/ready", nil, &out)
	return out, err
}

func (c *APIClient) PerformFinal(ctx context.Context, roomID string, mode types.EndingMode, item string) (*types.FinalResult, error) {
	out := &types.FinalResult{}
	if err := c.do(ctx, http.MethodPost, roomPath(roomID)+"/final", handlers.FinalRequest{Mode: mode, Item: item}, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *APIClient) ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	var out []*models.RunRecord
	path := "/runs"
	if limit > 0 {
		path = fmt.Sprintf("/runs?limit=%d", limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
