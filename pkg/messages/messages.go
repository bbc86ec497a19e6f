package messages

import "encoding/json"

const (
	// MessageBufferSize represents the maximum size of a message
	MessageBufferSize = 1024
	// MaxDecodedSize bounds a message after decompression.
	MaxDecodedSize = MessageBufferSize * 4
)

// Message types. None of them carry authoritative state: a receiver reacts
// by pulling a fresh snapshot.
const (
	// MessageTypeRefresh tells peers the room changed.
	MessageTypeRefresh = "refresh"
	// MessageTypePresence tells peers the set of connected roles changed.
	MessageTypePresence = "presence"
	// MessageTypeAnnounce is sent by a client to say it is present.
	MessageTypeAnnounce = "announce"
)

// Message represents a generic message for serialization/deserialization
type Message struct {
	RoomID  string          `json:"roomID"`
	Type    string          `json:"type"`
	Role    string          `json:"role,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PresencePayload lists the roles connected to a room.
type PresencePayload struct {
	Roles []string `json:"roles"`
}

func NewRefresh(roomID string) *Message {
	return &Message{RoomID: roomID, Type: MessageTypeRefresh}
}
