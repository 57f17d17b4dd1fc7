package relay

import (
	"testing"
	"time"

	"comchat-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInboxDeduplicatesBothPaths(t *testing.T) {
	convID := uuid.New()
	senderID := uuid.New()

	inbox := NewInbox()

	env := &Envelope{
		ConversationID:   convID.String(),
		SenderID:         senderID.String(),
		EncryptedMessage: "ciphertext-abc",
	}

	// O mesmo conteúdo chega pelo caminho vivo e pelo poll do histórico
	assert.True(t, inbox.AddLive(env))

	durable := &models.Message{
		ID:               uuid.New(),
		ConversationID:   convID,
		SenderID:         senderID,
		EncryptedMessage: "ciphertext-abc",
		CreatedAt:        time.Now(),
	}
	added := inbox.MergeHistory([]*models.Message{durable})

	assert.Equal(t, 0, added)
	assert.Equal(t, 1, inbox.Len())
}

func TestInboxDeduplicatesByDurableID(t *testing.T) {
	convID := uuid.New()
	senderID := uuid.New()
	inbox := NewInbox()

	msg := &models.Message{
		ID:               uuid.New(),
		ConversationID:   convID,
		SenderID:         senderID,
		EncryptedMessage: "olá",
		CreatedAt:        time.Now(),
	}

	assert.Equal(t, 1, inbox.MergeHistory([]*models.Message{msg}))
	// O poll seguinte devolve o mesmo registro durável
	assert.Equal(t, 0, inbox.MergeHistory([]*models.Message{msg}))
	assert.Equal(t, 1, inbox.Len())
}

func TestInboxLiveDuplicateIgnored(t *testing.T) {
	inbox := NewInbox()

	env := &Envelope{
		ConversationID:   uuid.New().String(),
		SenderID:         uuid.New().String(),
		EncryptedMessage: "dup",
	}

	// Transporte at-least-once: a mesma entrega viva pode repetir
	assert.True(t, inbox.AddLive(env))
	assert.False(t, inbox.AddLive(env))
	assert.Equal(t, 1, inbox.Len())
}

func TestInboxMergesOutOfOrder(t *testing.T) {
	convID := uuid.New()
	senderID := uuid.New()
	inbox := NewInbox()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	newer := &models.Message{
		ID: uuid.New(), ConversationID: convID, SenderID: senderID,
		EncryptedMessage: "segunda", CreatedAt: base.Add(time.Minute),
	}
	older := &models.Message{
		ID: uuid.New(), ConversationID: convID, SenderID: senderID,
		EncryptedMessage: "primeira", CreatedAt: base,
	}

	// Chegada fora de ordem deve ser fundida e reordenada,
	// nunca anexada às cegas
	inbox.MergeHistory([]*models.Message{newer})
	inbox.MergeHistory([]*models.Message{older})

	msgs := inbox.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "primeira", msgs[0].EncryptedMessage)
	assert.Equal(t, "segunda", msgs[1].EncryptedMessage)
}

func TestInboxClosedDropsLateCallbacks(t *testing.T) {
	inbox := NewInbox()
	inbox.Close()

	env := &Envelope{
		ConversationID:   uuid.New().String(),
		SenderID:         uuid.New().String(),
		EncryptedMessage: "tardia",
	}
	assert.False(t, inbox.AddLive(env))
	assert.Equal(t, 0, inbox.MergeHistory([]*models.Message{{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		SenderID:       uuid.New(),
		CreatedAt:      time.Now(),
	}}))
	assert.Equal(t, 0, inbox.Len())
}
