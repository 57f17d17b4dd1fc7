package models

import (
	"time"

	"github.com/google/uuid"
)

// Estados possíveis de um pedido de contato
const (
	ContactStatusPending  = "pending"
	ContactStatusAccepted = "accepted"
	ContactStatusRejected = "rejected"
)

// User representa uma identidade registrada no sistema.
// O material de chave (chave privada selada, iv, salt) é produzido pelo
// cliente no registro; o servidor só o armazena, nunca o abre.
type User struct {
	ID                  uuid.UUID `json:"id"`
	Username            string    `json:"username"`
	PasswordHash        string    `json:"-"` // Nunca expor em JSON
	PublicKey           string    `json:"publicKey"`           // SPKI em PEM
	EncryptedPrivateKey string    `json:"encryptedPrivateKey"` // PKCS#8 selado, base64
	IV                  string    `json:"iv"`                  // nonce AES-GCM, base64
	Salt                string    `json:"salt"`                // salt do PBKDF2, base64
	CreatedAt           time.Time `json:"createdAt"`
}

// Conversation é o par não-ordenado de dois participantes com seu tópico
// derivado e a chave simétrica da conversa embrulhada para cada um.
// Invariante: no máximo uma Conversation por par (ver PairKey).
type Conversation struct {
	ID           uuid.UUID   `json:"id"`
	Participants []uuid.UUID `json:"participants"` // sempre exatamente 2
	// PairKey é a forma canônica do par (menor UUID + ":" + maior UUID),
	// usada na constraint de unicidade do banco
	PairKey   string            `json:"-"`
	Topic     string            `json:"topic"`
	Keys      map[string]string `json:"-"` // userID (string) -> chave embrulhada, base64
	CreatedAt time.Time         `json:"createdAt"`
}

// PairKeyFor devolve a forma canônica de um par de participantes,
// independente da ordem dos argumentos.
func PairKeyFor(a, b uuid.UUID) string {
	sa, sb := a.String(), b.String()
	if sa > sb {
		sa, sb = sb, sa
	}
	return sa + ":" + sb
}

// HasParticipant informa se o usuário faz parte da conversa.
func (c *Conversation) HasParticipant(id uuid.UUID) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// OtherParticipant devolve o outro lado da conversa (uuid.Nil se o
// usuário não participa dela).
func (c *Conversation) OtherParticipant(id uuid.UUID) uuid.UUID {
	for _, p := range c.Participants {
		if p != id {
			return p
		}
	}
	return uuid.Nil
}

// Message é um registro durável e imutável de uma mensagem cifrada.
// A ordenação é sempre por CreatedAt ascendente.
type Message struct {
	ID               uuid.UUID `json:"id"`
	ConversationID   uuid.UUID `json:"conversationId"`
	SenderID         uuid.UUID `json:"senderId"`
	EncryptedMessage string    `json:"encryptedMessage"` // ciphertext opaco para o servidor
	CreatedAt        time.Time `json:"createdAt"`
}

// ContactRequest é o par ordenado (de, para) da máquina de estados de
// autorização de contato.
type ContactRequest struct {
	ID        uuid.UUID `json:"id"`
	FromUser  uuid.UUID `json:"fromUser"`
	ToUser    uuid.UUID `json:"toUser"`
	Status    string    `json:"status"` // pending | accepted | rejected
	CreatedAt time.Time `json:"createdAt"`
}
