package relay

import (
	"sort"
	"sync"

	"comchat-backend/internal/models"

	"github.com/google/uuid"
)

// Inbox acumula as mensagens de uma conversa vindas das duas fontes —
// entregas vivas do broker e buscas periódicas do histórico durável —
// e as reconcilia: a mesma mensagem pode chegar pelos dois caminhos,
// então a identidade composta deduplica (id durável quando existe,
// senão a tupla conversa/remetente/ciphertext), e a apresentação é
// sempre em ordem ascendente de criação.
//
// O handler de entrega viva e o handler de reconciliação do poll podem
// rodar concorrentes; todo o estado é protegido pelo mutex.
type Inbox struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]struct{}
	byKey  map[inboxKey]struct{}
	msgs   []*models.Message
	closed bool
}

type inboxKey struct {
	conversationID string
	senderID       string
	ciphertext     string
}

// NewInbox cria uma caixa de entrada vazia
func NewInbox() *Inbox {
	return &Inbox{
		byID:  make(map[uuid.UUID]struct{}),
		byKey: make(map[inboxKey]struct{}),
	}
}

// AddLive incorpora um envelope chegado pelo caminho vivo. Entregas
// vivas não carregam id durável nem timestamp; a chave de igualdade é
// a tupla. Devolve true se a mensagem era inédita.
func (in *Inbox) AddLive(env *Envelope) bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	// Callback tardio depois do Close não pode escrever em estado
	// liberado
	if in.closed {
		return false
	}

	key := inboxKey{env.ConversationID, env.SenderID, env.EncryptedMessage}
	if _, seen := in.byKey[key]; seen {
		return false
	}

	in.byKey[key] = struct{}{}
	in.msgs = append(in.msgs, &models.Message{
		ConversationID:   uuid.MustParse(env.ConversationID),
		SenderID:         uuid.MustParse(env.SenderID),
		EncryptedMessage: env.EncryptedMessage,
	})
	in.resort()
	return true
}

// MergeHistory incorpora um lote do caminho durável. Mensagens já
// vistas (por id ou por tupla) são ignoradas; chegada fora de ordem é
// fundida e reordenada, nunca anexada às cegas. Devolve quantas
// mensagens eram inéditas.
func (in *Inbox) MergeHistory(msgs []*models.Message) int {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return 0
	}

	added := 0
	for _, m := range msgs {
		if m.ID != uuid.Nil {
			if _, seen := in.byID[m.ID]; seen {
				continue
			}
		}
		key := inboxKey{m.ConversationID.String(), m.SenderID.String(), m.EncryptedMessage}
		if _, seen := in.byKey[key]; seen {
			continue
		}

		if m.ID != uuid.Nil {
			in.byID[m.ID] = struct{}{}
		}
		in.byKey[key] = struct{}{}
		in.msgs = append(in.msgs, m)
		added++
	}
	if added > 0 {
		in.resort()
	}
	return added
}

// Messages devolve uma cópia da lista reconciliada, em ordem
// ascendente de criação
func (in *Inbox) Messages() []*models.Message {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]*models.Message{}, in.msgs...)
}

// Len devolve o tamanho da lista reconciliada
func (in *Inbox) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.msgs)
}

// Close congela a caixa: chamadas posteriores de AddLive/MergeHistory
// são descartadas (fechamento da visão da conversa deve parar as
// entregas prontamente, sem callbacks tardios)
func (in *Inbox) Close() {
	in.mu.Lock()
	in.closed = true
	in.mu.Unlock()
}

// resort reordena por criação; entregas vivas sem timestamp preservam
// a posição relativa de chegada (ordenação estável)
func (in *Inbox) resort() {
	sort.SliceStable(in.msgs, func(i, j int) bool {
		a, b := in.msgs[i], in.msgs[j]
		if a.CreatedAt.IsZero() || b.CreatedAt.IsZero() {
			return false
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
}
