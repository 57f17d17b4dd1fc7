package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"comchat-backend/internal/apperrors"
	"comchat-backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUserRejectsDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	u := &models.User{ID: uuid.New(), Username: "ana", CreatedAt: time.Now()}
	require.NoError(t, store.CreateUser(ctx, u))

	dup := &models.User{ID: uuid.New(), Username: "ana", CreatedAt: time.Now()}
	assert.ErrorIs(t, store.CreateUser(ctx, dup), apperrors.ErrUserExists)
}

func TestSearchUsersMatchesSubstring(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	for _, name := range []string{"ana", "mariana", "bia"} {
		require.NoError(t, store.CreateUser(ctx, &models.User{
			ID: uuid.New(), Username: name, CreatedAt: time.Now(),
		}))
	}

	users, err := store.SearchUsers(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ana", users[0].Username)
	assert.Equal(t, "mariana", users[1].Username)
}

func TestCreateConversationEnforcesPairUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	a, b := uuid.New(), uuid.New()
	pairKey := models.PairKeyFor(a, b)

	first := &models.Conversation{
		ID: uuid.New(), Participants: []uuid.UUID{a, b},
		PairKey: pairKey, Topic: "chat/t", CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateConversation(ctx, first))

	second := &models.Conversation{
		ID: uuid.New(), Participants: []uuid.UUID{a, b},
		PairKey: pairKey, Topic: "chat/t", CreatedAt: time.Now(),
	}
	assert.ErrorIs(t, store.CreateConversation(ctx, second), apperrors.ErrConversationExists)
}

func TestCreateConversationConcurrentRaceHasOneWinner(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	a, b := uuid.New(), uuid.New()
	pairKey := models.PairKeyFor(a, b)

	// N inserções simultâneas do mesmo par: exatamente uma vence,
	// as demais recebem o erro de existência
	const attempts = 16
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.CreateConversation(ctx, &models.Conversation{
				ID: uuid.New(), Participants: []uuid.UUID{a, b},
				PairKey: pairKey, Topic: "chat/t", CreatedAt: time.Now(),
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrConversationExists)
		}
	}
	assert.Equal(t, 1, winners)

	conv, err := store.GetConversationByPairKey(ctx, pairKey)
	require.NoError(t, err)
	assert.Equal(t, pairKey, conv.PairKey)
}

func TestGetMessagesSortedAscending(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	convID := uuid.New()
	base := time.Now()

	// Inserção fora de ordem; leitura sempre ascendente por criação
	for _, offset := range []time.Duration{2 * time.Second, 0, time.Second} {
		require.NoError(t, store.CreateMessage(ctx, &models.Message{
			ID: uuid.New(), ConversationID: convID, SenderID: uuid.New(),
			EncryptedMessage: "m", CreatedAt: base.Add(offset),
		}))
	}

	msgs, err := store.GetMessagesByConversationID(ctx, convID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt))
	assert.True(t, msgs[1].CreatedAt.Before(msgs[2].CreatedAt))
}

func TestContactRequestLookups(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	a, b := uuid.New(), uuid.New()
	req := &models.ContactRequest{
		ID: uuid.New(), FromUser: a, ToUser: b,
		Status: models.ContactStatusPending, CreatedAt: time.Now(),
	}
	require.NoError(t, store.CreateContactRequest(ctx, req))

	// FindContactRequest filtra por direção e status
	found, err := store.FindContactRequest(ctx, a, b, models.ContactStatusPending)
	require.NoError(t, err)
	assert.Equal(t, req.ID, found.ID)

	_, err = store.FindContactRequest(ctx, b, a, models.ContactStatusPending)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = store.FindContactRequest(ctx, a, b, models.ContactStatusAccepted)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	req.Status = models.ContactStatusAccepted
	require.NoError(t, store.UpdateContactRequest(ctx, req))

	accepted, err := store.ListAcceptedInvolving(ctx, b)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, req.ID, accepted[0].ID)
}
