package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"comchat-backend/internal/apperrors"
	"comchat-backend/internal/models"
	"comchat-backend/internal/repository"

	"github.com/google/uuid"
)

// ContactService implementa a máquina de estados de autorização de
// contato: none → pending → {accepted | rejected}, com
// rejected → pending permitido (reenvio pelo remetente original).
// Só 'accepted' autoriza abrir conversa no fluxo do produto.
type ContactService struct {
	store repository.Store
}

// NewContactService cria um novo serviço de contatos
func NewContactService(store repository.Store) *ContactService {
	return &ContactService{store: store}
}

// PendingRequest é um pedido pendente recebido, com o remetente
// resolvido para exibição
type PendingRequest struct {
	ID        uuid.UUID    `json:"id"`
	FromUser  *models.User `json:"fromUser"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Request cria (ou ressuscita) o pedido from→to, aplicando as guardas
// da máquina de estados nesta ordem: destino inválido, já contatos,
// pedido pendente já enviado, pendente recíproco.
func (s *ContactService) Request(ctx context.Context, from, to uuid.UUID) (*models.ContactRequest, error) {
	if from == to || to == uuid.Nil {
		return nil, apperrors.ErrInvalidTarget
	}

	if _, err := s.store.GetUserByID(ctx, to); err != nil {
		return nil, apperrors.ErrInvalidTarget
	}

	// Aceito em qualquer direção → já são contatos
	if s.exists(ctx, from, to, models.ContactStatusAccepted) ||
		s.exists(ctx, to, from, models.ContactStatusAccepted) {
		return nil, apperrors.ErrAlreadyContacts
	}

	// Pendente from→to → pedido duplicado
	if s.exists(ctx, from, to, models.ContactStatusPending) {
		return nil, apperrors.ErrRequestAlreadySent
	}

	// Pendente to→from → o requisitante deve aceitar o que recebeu,
	// não criar um duplicado na direção oposta
	if s.exists(ctx, to, from, models.ContactStatusPending) {
		return nil, apperrors.ErrReciprocalPending
	}

	// Rejeitado from→to → ressuscita o mesmo registro para pending
	// com timestamp atualizado, em vez de criar outra linha
	if rejected, err := s.store.FindContactRequest(ctx, from, to, models.ContactStatusRejected); err == nil {
		rejected.Status = models.ContactStatusPending
		rejected.CreatedAt = time.Now()
		if err := s.store.UpdateContactRequest(ctx, rejected); err != nil {
			log.Printf("Erro ao ressuscitar pedido de contato: %v", err)
			return nil, fmt.Errorf("erro interno ao atualizar pedido")
		}
		return rejected, nil
	}

	req := &models.ContactRequest{
		ID:        uuid.New(),
		FromUser:  from,
		ToUser:    to,
		Status:    models.ContactStatusPending,
		CreatedAt: time.Now(),
	}
	if err := s.store.CreateContactRequest(ctx, req); err != nil {
		log.Printf("Erro ao salvar pedido de contato: %v", err)
		return nil, fmt.Errorf("erro interno ao salvar pedido")
	}
	return req, nil
}

// Accept transita um pedido pendente endereçado a actingAs para
// accepted. Qualquer outra situação (id desconhecido, destinatário
// errado, já resolvido) é NotFound.
func (s *ContactService) Accept(ctx context.Context, requestID, actingAs uuid.UUID) error {
	return s.resolve(ctx, requestID, actingAs, models.ContactStatusAccepted)
}

// Reject é o análogo de Accept para rejected
func (s *ContactService) Reject(ctx context.Context, requestID, actingAs uuid.UUID) error {
	return s.resolve(ctx, requestID, actingAs, models.ContactStatusRejected)
}

func (s *ContactService) resolve(ctx context.Context, requestID, actingAs uuid.UUID, status string) error {
	req, err := s.store.GetContactRequestByID(ctx, requestID)
	if err != nil {
		return apperrors.ErrNotFound
	}
	// Só o destinatário resolve, e só enquanto pendente. Fora disso
	// não se distingue o motivo.
	if req.ToUser != actingAs || req.Status != models.ContactStatusPending {
		return apperrors.ErrNotFound
	}

	req.Status = status
	if err := s.store.UpdateContactRequest(ctx, req); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrNotFound
		}
		log.Printf("Erro ao atualizar pedido de contato: %v", err)
		return fmt.Errorf("erro interno ao atualizar pedido")
	}
	return nil
}

// IncomingPending lista os pedidos pendentes recebidos pela
// identidade, com o remetente resolvido (para notificações)
func (s *ContactService) IncomingPending(ctx context.Context, userID uuid.UUID) ([]*PendingRequest, error) {
	reqs, err := s.store.ListPendingForUser(ctx, userID)
	if err != nil {
		log.Printf("Erro ao listar pedidos recebidos: %v", err)
		return nil, fmt.Errorf("erro interno ao listar pedidos")
	}

	out := make([]*PendingRequest, 0, len(reqs))
	for _, r := range reqs {
		from, err := s.store.GetUserByID(ctx, r.FromUser)
		if err != nil {
			// Remetente sumiu do banco: pula em vez de quebrar a lista
			log.Printf("Erro: pedido %s com remetente inválido %s", r.ID, r.FromUser)
			continue
		}
		out = append(out, &PendingRequest{ID: r.ID, FromUser: from, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

// OutgoingPendingTargets lista os destinos dos pedidos pendentes
// enviados pela identidade
func (s *ContactService) OutgoingPendingTargets(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	reqs, err := s.store.ListPendingFromUser(ctx, userID)
	if err != nil {
		log.Printf("Erro ao listar pedidos enviados: %v", err)
		return nil, fmt.Errorf("erro interno ao listar pedidos")
	}

	targets := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		targets = append(targets, r.ToUser)
	}
	return targets, nil
}

// Contacts devolve o conjunto de contatos aceitos (união das duas
// direções), resolvido para a identidade contraparte
func (s *ContactService) Contacts(ctx context.Context, userID uuid.UUID) ([]*models.User, error) {
	reqs, err := s.store.ListAcceptedInvolving(ctx, userID)
	if err != nil {
		log.Printf("Erro ao listar contatos: %v", err)
		return nil, fmt.Errorf("erro interno ao listar contatos")
	}

	otherIDs := make([]uuid.UUID, 0, len(reqs))
	for _, r := range reqs {
		if r.FromUser == userID {
			otherIDs = append(otherIDs, r.ToUser)
		} else {
			otherIDs = append(otherIDs, r.FromUser)
		}
	}
	if len(otherIDs) == 0 {
		return []*models.User{}, nil
	}

	users, err := s.store.GetUsersByIDs(ctx, otherIDs)
	if err != nil {
		log.Printf("Erro ao resolver contatos: %v", err)
		return nil, fmt.Errorf("erro interno ao listar contatos")
	}
	return users, nil
}

// exists é um atalho para as guardas de Request
func (s *ContactService) exists(ctx context.Context, from, to uuid.UUID, status string) bool {
	_, err := s.store.FindContactRequest(ctx, from, to, status)
	return err == nil
}
