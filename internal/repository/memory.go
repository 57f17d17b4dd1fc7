package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"comchat-backend/internal/apperrors"
	"comchat-backend/internal/models"

	"github.com/google/uuid"
)

// InMemoryStore é uma implementação em-memória da interface Store,
// usada em testes e desenvolvimento local
type InMemoryStore struct {
	mu              sync.RWMutex
	usersByID       map[uuid.UUID]*models.User
	usersByUsername map[string]*models.User
	convsByID       map[uuid.UUID]*models.Conversation
	convsByPairKey  map[string]*models.Conversation
	messagesByConv  map[uuid.UUID][]*models.Message
	requestsByID    map[uuid.UUID]*models.ContactRequest
}

// NewInMemoryStore cria uma nova instância do store em memória
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		usersByID:       make(map[uuid.UUID]*models.User),
		usersByUsername: make(map[string]*models.User),
		convsByID:       make(map[uuid.UUID]*models.Conversation),
		convsByPairKey:  make(map[string]*models.Conversation),
		messagesByConv:  make(map[uuid.UUID][]*models.Message),
		requestsByID:    make(map[uuid.UUID]*models.ContactRequest),
	}
}

// --- UserStore ---

func (s *InMemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[user.Username]; exists {
		return apperrors.ErrUserExists
	}

	s.usersByID[user.ID] = user
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *InMemoryStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return nil, apperrors.ErrNotFound
	}
	return user, nil
}

func (s *InMemoryStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByID[id]
	if !exists {
		return nil, apperrors.ErrNotFound
	}
	return user, nil
}

func (s *InMemoryStore) SearchUsers(ctx context.Context, query string) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	users := []*models.User{}
	for _, u := range s.usersByID {
		if needle == "" || strings.Contains(strings.ToLower(u.Username), needle) {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

func (s *InMemoryStore) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := []*models.User{}
	for _, id := range ids {
		if u, ok := s.usersByID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

// --- ConversationStore ---

func (s *InMemoryStore) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check-and-insert sob o mesmo lock: equivale à constraint de
	// unicidade do Postgres sobre o par canônico
	if _, exists := s.convsByPairKey[conv.PairKey]; exists {
		return apperrors.ErrConversationExists
	}

	s.convsByID[conv.ID] = conv
	s.convsByPairKey[conv.PairKey] = conv
	return nil
}

func (s *InMemoryStore) GetConversationByPairKey(ctx context.Context, pairKey string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.convsByPairKey[pairKey]
	if !exists {
		return nil, apperrors.ErrNotFound
	}
	return conv, nil
}

func (s *InMemoryStore) GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, exists := s.convsByID[id]
	if !exists {
		return nil, apperrors.ErrNotFound
	}
	return conv, nil
}

func (s *InMemoryStore) GetConversationsByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	convs := []*models.Conversation{}
	for _, c := range s.convsByID {
		if c.HasParticipant(userID) {
			convs = append(convs, c)
		}
	}
	sort.Slice(convs, func(i, j int) bool { return convs[i].CreatedAt.After(convs[j].CreatedAt) })
	return convs, nil
}

// --- MessageStore ---

func (s *InMemoryStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messagesByConv[msg.ConversationID] = append(s.messagesByConv[msg.ConversationID], msg)
	return nil
}

func (s *InMemoryStore) GetMessagesByConversationID(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := append([]*models.Message{}, s.messagesByConv[conversationID]...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

// --- ContactRequestStore ---

func (s *InMemoryStore) CreateContactRequest(ctx context.Context, req *models.ContactRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestsByID[req.ID] = req
	return nil
}

func (s *InMemoryStore) GetContactRequestByID(ctx context.Context, id uuid.UUID) (*models.ContactRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, exists := s.requestsByID[id]
	if !exists {
		return nil, apperrors.ErrNotFound
	}
	return req, nil
}

func (s *InMemoryStore) FindContactRequest(ctx context.Context, from, to uuid.UUID, status string) (*models.ContactRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.requestsByID {
		if r.FromUser == from && r.ToUser == to && r.Status == status {
			return r, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *InMemoryStore) UpdateContactRequest(ctx context.Context, req *models.ContactRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requestsByID[req.ID]; !exists {
		return apperrors.ErrNotFound
	}
	s.requestsByID[req.ID] = req
	return nil
}

func (s *InMemoryStore) ListPendingForUser(ctx context.Context, to uuid.UUID) ([]*models.ContactRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reqs := []*models.ContactRequest{}
	for _, r := range s.requestsByID {
		if r.ToUser == to && r.Status == models.ContactStatusPending {
			reqs = append(reqs, r)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedAt.After(reqs[j].CreatedAt) })
	return reqs, nil
}

func (s *InMemoryStore) ListPendingFromUser(ctx context.Context, from uuid.UUID) ([]*models.ContactRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reqs := []*models.ContactRequest{}
	for _, r := range s.requestsByID {
		if r.FromUser == from && r.Status == models.ContactStatusPending {
			reqs = append(reqs, r)
		}
	}
	return reqs, nil
}

func (s *InMemoryStore) ListAcceptedInvolving(ctx context.Context, userID uuid.UUID) ([]*models.ContactRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reqs := []*models.ContactRequest{}
	for _, r := range s.requestsByID {
		if r.Status == models.ContactStatusAccepted && (r.FromUser == userID || r.ToUser == userID) {
			reqs = append(reqs, r)
		}
	}
	return reqs, nil
}
