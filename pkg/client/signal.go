package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/cbodonnell/pyramid/pkg/messages"
	"github.com/cbodonnell/pyramid/pkg/network"
	"nhooyr.io/websocket"
)

// SignalClient is a subscription to a room's signal channel.
type SignalClient struct {
	roomID string
	conn   *websocket.Conn
}

// DialSignal connects to the signal channel of roomID.
func DialSignal(ctx context.Context, api *APIClient, roomID string) (*SignalClient, error) {
	conn, _, err := websocket.Dial(ctx, api.SignalURL(roomID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to signal channel: %w", err)
	}
	conn.SetReadLimit(messages.MessageBufferSize * 4)
	return &SignalClient{roomID: roomID, conn: conn}, nil
}

// Announce tells the peers that this client is present.
func (s *SignalClient) Announce(ctx context.Context) error {
	return network.WriteMessageToWS(ctx, s.conn, &messages.Message{RoomID: s.roomID, Type: messages.MessageTypeAnnounce})
}

// RequestRefresh asks the server to signal the peers.
func (s *SignalClient) RequestRefresh(ctx context.Context) error {
	return network.WriteMessageToWS(ctx, s.conn, messages.NewRefresh(s.roomID))
}

// Listen calls handle for every message until ctx ends or the connection
// drops. A clean close returns nil.
func (s *SignalClient) Listen(ctx context.Context, handle func(msg *messages.Message)) error {
	for {
		msg, err := network.ReadMessageFromWS(ctx, s.conn)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			var closeErr websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("signal channel closed: %s", closeErr.Reason)
			}
			return err
		}
		log.Trace("Received %s signal for room %s", msg.Type, s.roomID)
		handle(msg)
	}
}

func (s *SignalClient) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}
