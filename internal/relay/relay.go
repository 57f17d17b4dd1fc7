package relay

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"comchat-backend/internal/broker"
	"comchat-backend/internal/models"
	"comchat-backend/internal/repository"

	"github.com/google/uuid"
)

// Relay entrega ciphertext entre participantes por dois caminhos
// independentes: broadcast best-effort no broker e append durável no
// store. O caminho durável é a fonte de verdade — falha nele é
// devolvida ao chamador; falha de publicação é só logada, porque o
// polling do histórico garante a entrega eventual.
type Relay struct {
	store   repository.Store
	broker  broker.Broker
	backoff broker.Backoff

	mu   sync.Mutex
	subs map[string]*topicSub
}

type topicSub struct {
	sub  broker.Subscription
	refs int
}

// NewRelay cria um relay sobre o store e o broker dados
func NewRelay(store repository.Store, b broker.Broker) *Relay {
	return &Relay{
		store:   store,
		broker:  b,
		backoff: broker.DefaultBackoff(),
		subs:    make(map[string]*topicSub),
	}
}

// Send persiste a mensagem (efeito autoritativo) e publica o envelope
// no tópico da conversa (efeito best-effort, sem confirmação).
// Nenhum dos dois bloqueia o outro.
func (r *Relay) Send(ctx context.Context, conversationID, senderID uuid.UUID, ciphertext string) (*models.Message, error) {
	conv, err := r.store.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversa não encontrada")
	}
	if !conv.HasParticipant(senderID) {
		return nil, fmt.Errorf("remetente não participa da conversa")
	}

	msg := &models.Message{
		ID:               uuid.New(),
		ConversationID:   conversationID,
		SenderID:         senderID,
		EncryptedMessage: ciphertext,
		CreatedAt:        time.Now(),
	}

	// Caminho durável primeiro: sem ele não há fallback, então o erro
	// é escalado ao chamador
	if err := r.store.CreateMessage(ctx, msg); err != nil {
		log.Printf("Erro ao persistir mensagem: %v", err)
		return nil, fmt.Errorf("erro interno ao salvar mensagem")
	}

	// Caminho vivo: fire-and-forget com retry limitado. O contexto da
	// requisição pode morrer antes do retry, então usamos um próprio.
	env := &Envelope{
		ConversationID:   conversationID.String(),
		SenderID:         senderID.String(),
		EncryptedMessage: ciphertext,
	}
	payload, err := env.Encode()
	if err != nil {
		log.Printf("Erro ao serializar envelope: %v", err)
		return msg, nil
	}
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := r.backoff.Retry(pubCtx, func() error {
			return r.broker.Publish(pubCtx, conv.Topic, payload)
		})
		if err != nil {
			log.Printf("Aviso: publicação no tópico %s falhou (caminho durável segue válido): %v", conv.Topic, err)
		}
	}()

	return msg, nil
}

// HandleInbound processa um payload chegado do broker: valida o
// envelope, confere que o remetente participa da conversa e persiste.
// Dá consistência eventual ao caminho durável quando o remetente só
// conseguiu publicar.
func (r *Relay) HandleInbound(topic string, payload []byte) {
	env, err := ParseEnvelope(payload)
	if err != nil {
		log.Printf("Aviso: descartando payload malformado do broker: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	convID := uuid.MustParse(env.ConversationID)
	senderID := uuid.MustParse(env.SenderID)

	conv, err := r.store.GetConversationByID(ctx, convID)
	if err != nil {
		log.Printf("Aviso: conversa %s não encontrada para mensagem do broker", env.ConversationID)
		return
	}
	if conv.Topic != topic || !conv.HasParticipant(senderID) {
		log.Printf("Aviso: remetente %s não participa da conversa %s", env.SenderID, env.ConversationID)
		return
	}

	// O transporte é at-least-once: o mesmo envelope pode já ter sido
	// persistido pelo POST do remetente. Dedup por tupla antes de gravar.
	existing, err := r.store.GetMessagesByConversationID(ctx, convID)
	if err == nil {
		for _, m := range existing {
			if m.SenderID == senderID && m.EncryptedMessage == env.EncryptedMessage {
				return
			}
		}
	}

	msg := &models.Message{
		ID:               uuid.New(),
		ConversationID:   convID,
		SenderID:         senderID,
		EncryptedMessage: env.EncryptedMessage,
		CreatedAt:        time.Now(),
	}
	if err := r.store.CreateMessage(ctx, msg); err != nil {
		log.Printf("Erro ao persistir mensagem vinda do broker: %v", err)
	}
}

// Subscribe assina o tópico no broker, com contagem de referências:
// assinar duas vezes o mesmo tópico não duplica entregas, só
// incrementa o contador.
func (r *Relay) Subscribe(ctx context.Context, topic string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ts, ok := r.subs[topic]; ok {
		ts.refs++
		return nil
	}

	var sub broker.Subscription
	err := r.backoff.Retry(ctx, func() error {
		var err error
		sub, err = r.broker.Subscribe(ctx, topic, r.HandleInbound)
		return err
	})
	if err != nil {
		return fmt.Errorf("falha ao assinar tópico %s: %w", topic, err)
	}

	r.subs[topic] = &topicSub{sub: sub, refs: 1}
	return nil
}

// Unsubscribe decrementa a contagem do tópico e cancela a assinatura
// do broker quando chega a zero. Idempotente para tópico desconhecido.
func (r *Relay) Unsubscribe(topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.subs[topic]
	if !ok {
		return
	}
	ts.refs--
	if ts.refs <= 0 {
		ts.sub.Cancel()
		delete(r.subs, topic)
	}
}

// SubscribedTopics devolve os tópicos com assinatura ativa
func (r *Relay) SubscribedTopics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	topics := make([]string, 0, len(r.subs))
	for t := range r.subs {
		topics = append(topics, t)
	}
	return topics
}

// History devolve o caminho durável da conversa, em ordem ascendente
// de criação, conferindo que o leitor participa dela
func (r *Relay) History(ctx context.Context, conversationID, readerID uuid.UUID) ([]*models.Message, error) {
	conv, err := r.store.GetConversationByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("conversa não encontrada")
	}
	if !conv.HasParticipant(readerID) {
		return nil, fmt.Errorf("leitor não participa da conversa")
	}
	return r.store.GetMessagesByConversationID(ctx, conversationID)
}

// Close cancela todas as assinaturas ativas
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for topic, ts := range r.subs {
		ts.sub.Cancel()
		delete(r.subs, topic)
	}
}
