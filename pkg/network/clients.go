package network

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/cbodonnell/pyramid/pkg/game/types"
	"github.com/cbodonnell/pyramid/pkg/log"
	"github.com/cbodonnell/pyramid/pkg/messages"
	"github.com/google/uuid"
)

// DefaultWriteTimeout bounds a single signal delivery.
const DefaultWriteTimeout = 5 * time.Second

// Sender delivers messages to one connected client.
type Sender interface {
	Send(ctx context.Context, msg *messages.Message) error
	Close(reason string) error
}

// Client represents a connected client
type Client struct {
	ID     string
	RoomID string
	UserID string
	Role   types.Role
	sender Sender
}

// ClientManager tracks the signal subscribers of every room.
type ClientManager struct {
	rooms        map[string]map[string]*Client
	clientsLock  sync.RWMutex
	writeTimeout time.Duration
}

// NewClientManager creates a new ClientManager
func NewClientManager() *ClientManager {
	return &ClientManager{
		rooms:        make(map[string]map[string]*Client),
		writeTimeout: DefaultWriteTimeout,
	}
}

// ConnectClient registers sender as a subscriber of roomID.
func (cm *ClientManager) ConnectClient(roomID, userID string, role types.Role, sender Sender) *Client {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	client := &Client{
		ID:     uuid.NewString(),
		RoomID: roomID,
		UserID: userID,
		Role:   role,
		sender: sender,
	}
	room, ok := cm.rooms[roomID]
	if !ok {
		room = make(map[string]*Client)
		cm.rooms[roomID] = room
	}
	room[client.ID] = client
	log.Debug("Client %s connected to room %s as %s", client.ID, roomID, role)
	return client
}

// DisconnectClient removes a subscriber. Unknown IDs are ignored.
func (cm *ClientManager) DisconnectClient(roomID, clientID string) {
	cm.clientsLock.Lock()
	defer cm.clientsLock.Unlock()

	room, ok := cm.rooms[roomID]
	if !ok {
		return
	}
	delete(room, clientID)
	if len(room) == 0 {
		delete(cm.rooms, roomID)
	}
	log.Debug("Client %s disconnected from room %s", clientID, roomID)
}

// GetClients returns the subscribers of roomID.
func (cm *ClientManager) GetClients(roomID string) []*Client {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	clients := make([]*Client, 0, len(cm.rooms[roomID]))
	for _, client := range cm.rooms[roomID] {
		clients = append(clients, client)
	}
	return clients
}

// Presence returns the distinct roles connected to roomID, sorted.
func (cm *ClientManager) Presence(roomID string) []types.Role {
	seen := make(map[types.Role]bool)
	roles := []types.Role{}
	for _, client := range cm.GetClients(roomID) {
		if !seen[client.Role] {
			seen[client.Role] = true
			roles = append(roles, client.Role)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// RoomCount returns the number of rooms with at least one subscriber.
func (cm *ClientManager) RoomCount() int {
	cm.clientsLock.RLock()
	defer cm.clientsLock.RUnlock()
	return len(cm.rooms)
}

// SendToRoom delivers msg to every subscriber of roomID except exceptID.
// Failed deliveries are logged and dropped. It returns the number of
// successful deliveries.
func (cm *ClientManager) SendToRoom(ctx context.Context, roomID string, msg *messages.Message, exceptID string) int {
	delivered := 0
	for _, client := range cm.GetClients(roomID) {
		if client.ID == exceptID {
			continue
		}
		sendCtx, cancel := context.WithTimeout(ctx, cm.writeTimeout)
		err := client.sender.Send(sendCtx, msg)
		cancel()
		if err != nil {
			log.Warn("Failed to send %s to client %s in room %s: %v", msg.Type, client.ID, roomID, err)
			continue
		}
		delivered++
	}
	return delivered
}

// BroadcastPresence tells every subscriber of roomID who is connected.
func (cm *ClientManager) BroadcastPresence(ctx context.Context, roomID string) {
	roles := cm.Presence(roomID)
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, string(r))
	}
	payload, err := json.Marshal(messages.PresencePayload{Roles: names})
	if err != nil {
		log.Error("Failed to marshal presence for room %s: %v", roomID, err)
		return
	}
	cm.SendToRoom(ctx, roomID, &messages.Message{
		RoomID:  roomID,
		Type:    messages.MessageTypePresence,
		Payload: payload,
	}, "")
}

// CloseRoom disconnects every subscriber of roomID.
func (cm *ClientManager) CloseRoom(roomID string) {
	cm.clientsLock.Lock()
	room := cm.rooms[roomID]
	delete(cm.rooms, roomID)
	cm.clientsLock.Unlock()

	for _, client := range room {
		if err := client.sender.Close("room closed"); err != nil {
			log.Debug("Failed to close client %s: %v", client.ID, err)
		}
	}
}
