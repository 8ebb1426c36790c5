package queue

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() AuthEvent {
	return AuthEvent{
		Type:       EventUserRegistered,
		UserID:     uuid.MustParse("5f0c3c1e-8f7a-4d57-9a52-2f3d1b1c9a10"),
		Email:      "alice@test.com",
		Roles:      []string{"USER"},
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestEncode(t *testing.T) {
	msg, err := encode(sampleEvent())
	require.NoError(t, err)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "user.registered", msg.Type)

	var back AuthEvent
	require.NoError(t, json.Unmarshal(msg.Body, &back))
	assert.Equal(t, "alice@test.com", back.Email)
	assert.NotContains(t, string(msg.Body), "password")
}

func TestAuditLine(t *testing.T) {
	line := AuditLine(sampleEvent())
	assert.Equal(t,
		"[2026-03-01T12:00:00Z] user.registered | user_id=5f0c3c1e-8f7a-4d57-9a52-2f3d1b1c9a10 | email=\"alice@test.com\" | roles=[USER]\n",
		line)
}

func TestAuditConsumer_Handle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "auth.log")
	c := NewAuditConsumer("amqp://unused", path, slog.New(slog.DiscardHandler))

	body, err := json.Marshal(sampleEvent())
	require.NoError(t, err)
	require.NoError(t, c.handle(body))
	require.NoError(t, c.handle(body))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2*len(AuditLine(sampleEvent())), len(data))

	assert.Error(t, c.handle([]byte("{")))
	assert.Error(t, c.handle([]byte(`{"email":"x"}`)))
}
