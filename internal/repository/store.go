package repository

import (
	"context"

	"comchat-backend/internal/models"

	"github.com/google/uuid"
)

// UserStore define a interface para operações de usuário no DB
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// SearchUsers busca por substring do username, sem diferenciar
	// maiúsculas (busca vazia devolve todos)
	SearchUsers(ctx context.Context, query string) ([]*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error)
}

// ConversationStore define a interface para operações de conversa no DB.
// CreateConversation deve ser atômico sob corrida: a unicidade do par
// canônico (PairKey) é garantida pelo store, e o perdedor da corrida
// recebe apperrors.ErrConversationExists para reler o vencedor.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversationByPairKey(ctx context.Context, pairKey string) (*models.Conversation, error)
	GetConversationByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	GetConversationsByParticipant(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error)
}

// MessageStore define a interface para o caminho durável de mensagens
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *models.Message) error
	// GetMessagesByConversationID devolve sempre em ordem ascendente
	// de criação
	GetMessagesByConversationID(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error)
}

// ContactRequestStore define a interface para pedidos de contato no DB
type ContactRequestStore interface {
	CreateContactRequest(ctx context.Context, req *models.ContactRequest) error
	GetContactRequestByID(ctx context.Context, id uuid.UUID) (*models.ContactRequest, error)
	// FindContactRequest busca por (de, para, status) exatos
	FindContactRequest(ctx context.Context, from, to uuid.UUID, status string) (*models.ContactRequest, error)
	// UpdateContactRequest persiste status e timestamp de um pedido
	// existente (mutação de linha única, ator único)
	UpdateContactRequest(ctx context.Context, req *models.ContactRequest) error
	ListPendingForUser(ctx context.Context, to uuid.UUID) ([]*models.ContactRequest, error)
	ListPendingFromUser(ctx context.Context, from uuid.UUID) ([]*models.ContactRequest, error)
	// ListAcceptedInvolving devolve os aceitos em qualquer direção
	ListAcceptedInvolving(ctx context.Context, userID uuid.UUID) ([]*models.ContactRequest, error)
}

// Store é uma interface agregada para todas as operações de store
// Facilita a injeção de dependência
type Store interface {
	UserStore
	ConversationStore
	MessageStore
	ContactRequestStore
}
