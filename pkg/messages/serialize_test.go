package messages

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeDeserializeMessage(t *testing.T) {
	presence, err := json.Marshal(PresencePayload{Roles: []string{"P1", "P2"}})
	require.NoError(t, err)

	tests := []struct {
		name string
		msg  *Message
	}{
		{name: "refresh", msg: NewRefresh("room-1")},
		{name: "announce", msg: &Message{RoomID: "room-1", Type: MessageTypeAnnounce, Role: "P2"}},
		{name: "presence", msg: &Message{RoomID: "room-1", Type: MessageTypePresence, Payload: presence}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := SerializeMessage(tt.msg)
			require.NoError(t, err)

			got, err := DeserializeMessage(b)
			require.NoError(t, err)
			assert.Equal(t, tt.msg.RoomID, got.RoomID)
			assert.Equal(t, tt.msg.Type, got.Type)
			assert.Equal(t, tt.msg.Role, got.Role)
			if tt.msg.Payload != nil {
				assert.JSONEq(t, string(tt.msg.Payload), string(got.Payload))
			}
		})
	}
}

func TestDeserializeMessage_Invalid(t *testing.T) {
	_, err := DeserializeMessage([]byte("not zstd"))
	assert.Error(t, err)

	b, err := SerializeMessage(&Message{RoomID: "room-1"})
	require.NoError(t, err)
	_, err = DeserializeMessage(b)
	assert.Error(t, err)
}

func TestDeserializeMessage_TooLarge(t *testing.T) {
	compress := func(t *testing.T, raw []byte) []byte {
		t.Helper()
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		require.NoError(t, err)
		defer enc.Close()
		return enc.EncodeAll(raw, nil)
	}

	// A long run of spaces compresses to a tiny frame.
	bomb := append([]byte(`{"roomID":"room-1","type":"refresh"`), bytes.Repeat([]byte(" "), 32<<20)...)
	bomb = append(bomb, '}')
	frame := compress(t, bomb)
	require.Less(t, len(frame), MessageBufferSize*4, "frame must fit the socket read limit")

	_, err := DeserializeMessage(frame)
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	padded := append([]byte(`{"roomID":"room-1","type":"refresh"`), bytes.Repeat([]byte(" "), MaxDecodedSize-64)...)
	padded = append(padded, '}')
	require.LessOrEqual(t, len(padded), MaxDecodedSize)
	msg, err := DeserializeMessage(compress(t, padded))
	require.NoError(t, err)
	assert.Equal(t, MessageTypeRefresh, msg.Type)
}
