package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/cbodonnell/pyramid/pkg/messages"
	"nhooyr.io/websocket"
)

type wsSender struct {
	conn *websocket.Conn
}

func (s *wsSender) Send(ctx context.Context, msg *messages.Message) error {
	return WriteMessageToWS(ctx, s.conn, msg)
}

func (s *wsSender) Close(reason string) error {
	return s.conn.Close(websocket.StatusNormalClosure, reason)
}

// ServeSignal upgrades the request to a WebSocket and serves the room's
// signal channel until the client goes away.
// The caller has already checked that userID holds role in roomID.
func (cm *ClientManager) ServeSignal(w http.ResponseWriter, r *http.Request, roomID, userID string, role types.Role) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Error("Failed to upgrade to WebSocket: %v", err)
		return
	}
	conn.SetReadLimit(messages.MessageBufferSize * 4)

	ctx, cancel := context.WithCancel(r.Context())
	client := cm.ConnectClient(roomID, userID, role, &wsSender{conn: conn})
	defer func() {
		cancel()
		cm.DisconnectClient(roomID, client.ID)
		cm.BroadcastPresence(context.Background(), roomID)
		conn.Close(websocket.StatusNormalClosure, "")
	}()
	cm.BroadcastPresence(ctx, roomID)
	clientLog := log.With("room", roomID).With("client", client.ID)

	for {
		_, b, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				clientLog.Debug("Error reading WebSocket message: %v", err)
			}
			clientLog.Trace("Connection closed")
			return
		}
		msg, err := messages.DeserializeMessage(b)
		if err != nil {
			clientLog.Debug("Dropping malformed message: %v", err)
			continue
		}
		cm.handleClientMessage(ctx, client, msg)
	}
}

func (cm *ClientManager) handleClientMessage(ctx context.Context, client *Client, msg *messages.Message) {
	switch msg.Type {
	case messages.MessageTypeAnnounce:
		cm.BroadcastPresence(ctx, client.RoomID)
	case messages.MessageTypeRefresh:
		cm.SendToRoom(ctx, client.RoomID, messages.NewRefresh(client.RoomID), client.ID)
	default:
		log.Debug("Ignoring message of type %s from client %s", msg.Type, client.ID)
	}
}

// WriteMessageToWS writes a Message to a WebSocket connection
func WriteMessageToWS(ctx context.Context, conn *websocket.Conn, msg *messages.Message) error {
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	if err := conn.Write(ctx, websocket.MessageBinary, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}

	return nil
}

// ReadMessageFromWS reads a Message from a WebSocket connection
func ReadMessageFromWS(ctx context.Context, conn *websocket.Conn) (*messages.Message, error) {
	_, message, err := conn.Read(ctx)
	if err != nil {
		return nil, err
	}

	msg, err := messages.DeserializeMessage(message)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize message: %v", err)
	}

	return msg, nil
}
