package frame

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantdesk/internal/model"
)

func TestDecodeMessages(t *testing.T) {
	raw := `{"type":"messages","messages":[{"id":5,"content":"hi","images":[],"created_at":"2024-05-01T10:00:00Z","is_read":false,
		"sender":{"id":2,"display_name":"Anna","role":"TENANT"},"receiver":{"id":1,"display_name":"Admin","role":"ADMIN"}}]}`

	f, err := Decode([]byte(raw))
	require.NoError(t, err)
	m, ok := f.(Messages)
	require.True(t, ok)
	require.Len(t, m.Messages, 1)
	assert.Equal(t, int64(5), m.Messages[0].ID)
	assert.Equal(t, model.RoleTenant, m.Messages[0].Sender.Role)
}

func TestDecodeError(t *testing.T) {
	f, err := Decode([]byte(`{"type":"error","code":"SESSION_EXPIRED","message":"session revoked"}`))
	require.NoError(t, err)
	assert.Equal(t, Error{Code: CodeSessionExpired, Message: "session revoked"}, f)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"typing"}`))
	assert.ErrorIs(t, err, ErrUnknownType)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestWireRoundTripHeartbeat(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	data, err := json.Marshal(Wire(Heartbeat{At: at}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"heartbeat","at":"2024-05-01T10:00:00Z"}`, string(data))

	f, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, f.(Heartbeat).At.Equal(at))
}

func TestIsAuthCode(t *testing.T) {
	for _, c := range []string{CodeUnauthorized, CodeSessionExpired, CodeTokenInvalid} {
		assert.True(t, IsAuthCode(c), c)
	}
	assert.False(t, IsAuthCode(CodeOverloaded))
	assert.False(t, IsAuthCode(""))
}
