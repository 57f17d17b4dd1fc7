package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"time"

	"comchat-backend/internal/apperrors"
	"comchat-backend/internal/keystore"
	"comchat-backend/internal/models"
	"comchat-backend/internal/repository"
	"comchat-backend/internal/topic"

	"github.com/google/uuid"
)

// ConversationService é a autoridade do servidor sobre conversas:
// dado um par de participantes, devolve a única conversa entre eles,
// gerando e embrulhando a chave simétrica na primeira criação.
type ConversationService struct {
	store   repository.Store
	deriver *topic.Deriver
}

// NewConversationService cria um novo serviço de conversas
func NewConversationService(store repository.Store, deriver *topic.Deriver) *ConversationService {
	return &ConversationService{
		store:   store,
		deriver: deriver,
	}
}

// ConversationKey é a resposta de GetOrCreate: o requisitante só
// recebe a cópia da chave embrulhada para ele mesmo.
type ConversationKey struct {
	ConversationID uuid.UUID `json:"conversationId"`
	Topic          string    `json:"topic"`
	WrappedKey     string    `json:"encryptedKey"` // base64
}

// ConversationSummary resume uma conversa para listagens
type ConversationSummary struct {
	ID               uuid.UUID    `json:"id"`
	Topic            string       `json:"topic"`
	OtherParticipant *models.User `json:"otherParticipant"`
}

// GetOrCreate devolve a conversa entre o requisitante e o outro
// participante, criando-a com chave fresca se ainda não existe.
// Idempotente: chamadas repetidas (de qualquer um dos dois lados)
// devolvem o mesmo conversationId e tópico.
func (s *ConversationService) GetOrCreate(ctx context.Context, requesterID, otherID uuid.UUID) (*ConversationKey, error) {
	pairKey := models.PairKeyFor(requesterID, otherID)

	conv, err := s.store.GetConversationByPairKey(ctx, pairKey)
	if err == nil {
		return s.keyFor(conv, requesterID)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		log.Printf("Erro ao buscar conversa no store: %v", err)
		return nil, fmt.Errorf("erro interno ao buscar conversa")
	}

	// Primeira criação: buscar as chaves públicas dos dois lados
	requester, err := s.store.GetUserByID(ctx, requesterID)
	if err != nil {
		return nil, apperrors.ErrParticipantNotFound
	}
	other, err := s.store.GetUserByID(ctx, otherID)
	if err != nil {
		return nil, apperrors.ErrParticipantNotFound
	}

	conv, err = s.buildConversation(requester, other, pairKey)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateConversation(ctx, conv); err != nil {
		if errors.Is(err, apperrors.ErrConversationExists) {
			// Perdemos a corrida de primeira-criação: o vencedor já
			// persistiu a conversa do par, então relemos e usamos a dele
			conv, err = s.store.GetConversationByPairKey(ctx, pairKey)
			if err != nil {
				log.Printf("Erro ao reler conversa após corrida: %v", err)
				return nil, fmt.Errorf("erro interno ao buscar conversa")
			}
			return s.keyFor(conv, requesterID)
		}
		log.Printf("Erro ao salvar conversa no store: %v", err)
		return nil, fmt.Errorf("erro interno ao salvar conversa")
	}

	return s.keyFor(conv, requesterID)
}

// buildConversation gera a chave simétrica fresca e a embrulha para
// cada participante sob a chave pública dele
func (s *ConversationService) buildConversation(a, b *models.User, pairKey string) (*models.Conversation, error) {
	convKey, err := keystore.NewConversationKey()
	if err != nil {
		return nil, err
	}

	keys := make(map[string]string, 2)
	for _, u := range []*models.User{a, b} {
		pub, err := keystore.ParsePublicKeyPEM(u.PublicKey)
		if err != nil {
			log.Printf("Erro: chave pública inválida para usuário %s: %v", u.ID, err)
			return nil, fmt.Errorf("erro interno ao embrulhar chave")
		}
		wrapped, err := keystore.Wrap(convKey, pub)
		if err != nil {
			return nil, err
		}
		keys[u.ID.String()] = base64.StdEncoding.EncodeToString(wrapped)
	}

	return &models.Conversation{
		ID:           uuid.New(),
		Participants: []uuid.UUID{a.ID, b.ID},
		PairKey:      pairKey,
		Topic:        s.deriver.DeriveTopic(a.ID.String(), b.ID.String()),
		Keys:         keys,
		CreatedAt:    time.Now(),
	}, nil
}

// keyFor extrai a entrada de chave embrulhada do requisitante.
// Ausência indica corrupção de dados, não um caminho normal.
func (s *ConversationService) keyFor(conv *models.Conversation, requesterID uuid.UUID) (*ConversationKey, error) {
	wrapped, ok := conv.Keys[requesterID.String()]
	if !ok {
		log.Printf("Erro: conversa %s sem chave embrulhada para %s", conv.ID, requesterID)
		return nil, apperrors.ErrKeyNotFound
	}
	return &ConversationKey{
		ConversationID: conv.ID,
		Topic:          conv.Topic,
		WrappedKey:     wrapped,
	}, nil
}

// List devolve os resumos das conversas do usuário (mais recentes
// primeiro), com o outro participante resolvido
func (s *ConversationService) List(ctx context.Context, userID uuid.UUID) ([]*ConversationSummary, error) {
	convs, err := s.store.GetConversationsByParticipant(ctx, userID)
	if err != nil {
		log.Printf("Erro ao listar conversas no store: %v", err)
		return nil, fmt.Errorf("erro interno ao listar conversas")
	}

	summaries := make([]*ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summary := &ConversationSummary{ID: conv.ID, Topic: conv.Topic}
		otherID := conv.OtherParticipant(userID)
		if other, err := s.store.GetUserByID(ctx, otherID); err == nil {
			summary.OtherParticipant = other
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
