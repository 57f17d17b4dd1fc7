package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"comchat-backend/internal/broker"
	"comchat-backend/internal/models"
	"comchat-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedConversation(t *testing.T, store repository.Store) (*models.Conversation, uuid.UUID, uuid.UUID) {
	t.Helper()

	a, b := uuid.New(), uuid.New()
	conv := &models.Conversation{
		ID:           uuid.New(),
		Participants: []uuid.UUID{a, b},
		PairKey:      models.PairKeyFor(a, b),
		Topic:        "chat/teste",
		Keys:         map[string]string{a.String(): "ka", b.String(): "kb"},
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.CreateConversation(context.Background(), conv))
	return conv, a, b
}

// failingMessageStore força erro no caminho durável
type failingMessageStore struct {
	repository.Store
}

func (s *failingMessageStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	return fmt.Errorf("disco cheio")
}

// failingBroker força erro no caminho vivo
type failingBroker struct{}

func (b *failingBroker) Publish(ctx context.Context, topic string, payload []byte) error {
	return fmt.Errorf("broker fora do ar")
}

func (b *failingBroker) Subscribe(ctx context.Context, topic string, h broker.Handler) (broker.Subscription, error) {
	return nil, fmt.Errorf("broker fora do ar")
}

func (b *failingBroker) Close() error { return nil }

func TestSendPersistsAndPublishes(t *testing.T) {
	store := repository.NewInMemoryStore()
	b := broker.NewInMemoryBroker()
	r := NewRelay(store, b)

	conv, sender, _ := seedConversation(t, store)

	var mu sync.Mutex
	var received []byte
	_, err := b.Subscribe(context.Background(), conv.Topic, func(topic string, payload []byte) {
		mu.Lock()
		received = append([]byte{}, payload...)
		mu.Unlock()
	})
	require.NoError(t, err)

	msg, err := r.Send(context.Background(), conv.ID, sender, "ciphertext-1")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, msg.ID)

	// Caminho durável gravado
	msgs, err := store.GetMessagesByConversationID(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ciphertext-1", msgs[0].EncryptedMessage)

	// Caminho vivo entregue com o formato de fio exato
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received != nil
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	var env map[string]string
	require.NoError(t, json.Unmarshal(received, &env))
	assert.Equal(t, conv.ID.String(), env["conversationId"])
	assert.Equal(t, sender.String(), env["senderId"])
	assert.Equal(t, "ciphertext-1", env["encryptedMessage"])
}

func TestSendFailsWhenDurablePathFails(t *testing.T) {
	store := repository.NewInMemoryStore()
	conv, sender, _ := seedConversation(t, store)

	r := NewRelay(&failingMessageStore{Store: store}, broker.NewInMemoryBroker())

	// Sem caminho durável não há fallback: o erro escala ao chamador
	_, err := r.Send(context.Background(), conv.ID, sender, "perdida")
	assert.Error(t, err)
}

func TestSendSucceedsWhenPublishFails(t *testing.T) {
	store := repository.NewInMemoryStore()
	r := NewRelay(store, &failingBroker{})

	conv, sender, _ := seedConversation(t, store)

	// Falha de publicação é silenciosa: o durável é a fonte de verdade
	_, err := r.Send(context.Background(), conv.ID, sender, "só-durável")
	require.NoError(t, err)

	msgs, err := store.GetMessagesByConversationID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestSendRejectsNonParticipant(t *testing.T) {
	store := repository.NewInMemoryStore()
	r := NewRelay(store, broker.NewInMemoryBroker())

	conv, _, _ := seedConversation(t, store)

	_, err := r.Send(context.Background(), conv.ID, uuid.New(), "intruso")
	assert.Error(t, err)
}

func TestHandleInboundPersistsValidEnvelope(t *testing.T) {
	store := repository.NewInMemoryStore()
	r := NewRelay(store, broker.NewInMemoryBroker())

	conv, sender, _ := seedConversation(t, store)

	env := &Envelope{
		ConversationID:   conv.ID.String(),
		SenderID:         sender.String(),
		EncryptedMessage: "vinda-do-broker",
	}
	payload, err := env.Encode()
	require.NoError(t, err)

	r.HandleInbound(conv.Topic, payload)

	msgs, err := store.GetMessagesByConversationID(context.Background(), conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "vinda-do-broker", msgs[0].EncryptedMessage)

	// Redelivery at-least-once do mesmo envelope não duplica o durável
	r.HandleInbound(conv.Topic, payload)
	msgs, err = store.GetMessagesByConversationID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestHandleInboundRejectsBadPayloads(t *testing.T) {
	store := repository.NewInMemoryStore()
	r := NewRelay(store, broker.NewInMemoryBroker())

	conv, _, _ := seedConversation(t, store)

	cases := map[string][]byte{
		"json inválido":    []byte("{nope"),
		"campos ausentes":  []byte(`{"conversationId":"` + conv.ID.String() + `"}`),
		"conversa inexistente": mustEncode(t, &Envelope{
			ConversationID:   uuid.New().String(),
			SenderID:         uuid.New().String(),
			EncryptedMessage: "x",
		}),
		"remetente não participante": mustEncode(t, &Envelope{
			ConversationID:   conv.ID.String(),
			SenderID:         uuid.New().String(),
			EncryptedMessage: "x",
		}),
	}

	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			r.HandleInbound(conv.Topic, payload)
			msgs, err := store.GetMessagesByConversationID(context.Background(), conv.ID)
			require.NoError(t, err)
			assert.Empty(t, msgs)
		})
	}
}

func mustEncode(t *testing.T, env *Envelope) []byte {
	t.Helper()
	payload, err := env.Encode()
	require.NoError(t, err)
	return payload
}

func TestSubscribeIsRefcounted(t *testing.T) {
	store := repository.NewInMemoryStore()
	b := broker.NewInMemoryBroker()
	r := NewRelay(store, b)

	conv, sender, _ := seedConversation(t, store)
	payload := mustEncode(t, &Envelope{
		ConversationID:   conv.ID.String(),
		SenderID:         sender.String(),
		EncryptedMessage: "uma-vez",
	})

	// Assinar duas vezes o mesmo tópico não duplica entregas
	require.NoError(t, r.Subscribe(context.Background(), conv.Topic))
	require.NoError(t, r.Subscribe(context.Background(), conv.Topic))
	assert.Len(t, r.SubscribedTopics(), 1)

	require.NoError(t, b.Publish(context.Background(), conv.Topic, payload))

	msgs, err := store.GetMessagesByConversationID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	// A primeira dessubscrição só decrementa; a assinatura continua
	r.Unsubscribe(conv.Topic)
	assert.Len(t, r.SubscribedTopics(), 1)

	r.Unsubscribe(conv.Topic)
	assert.Empty(t, r.SubscribedTopics())

	// Dessubscrever tópico desconhecido é inócuo
	r.Unsubscribe("chat/fantasma")
}

func TestCloseCancelsSubscriptions(t *testing.T) {
	store := repository.NewInMemoryStore()
	b := broker.NewInMemoryBroker()
	r := NewRelay(store, b)

	conv, sender, _ := seedConversation(t, store)
	require.NoError(t, r.Subscribe(context.Background(), conv.Topic))

	r.Close()
	assert.Empty(t, r.SubscribedTopics())

	// Publicações após o Close não chegam mais ao handler
	payload := mustEncode(t, &Envelope{
		ConversationID:   conv.ID.String(),
		SenderID:         sender.String(),
		EncryptedMessage: "tardia",
	})
	require.NoError(t, b.Publish(context.Background(), conv.Topic, payload))

	msgs, err := store.GetMessagesByConversationID(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestHistoryChecksMembership(t *testing.T) {
	store := repository.NewInMemoryStore()
	r := NewRelay(store, broker.NewInMemoryBroker())

	conv, sender, other := seedConversation(t, store)

	_, err := r.Send(context.Background(), conv.ID, sender, "oi")
	require.NoError(t, err)

	msgs, err := r.History(context.Background(), conv.ID, other)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = r.History(context.Background(), conv.ID, uuid.New())
	assert.Error(t, err)
}
