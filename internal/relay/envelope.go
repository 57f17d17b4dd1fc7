package relay

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Envelope é o formato de fio da mensagem publicada no broker.
// Os nomes dos campos são fixos: o caminho durável e o caminho vivo
// precisam produzir exatamente o mesmo JSON para interoperar.
type Envelope struct {
	ConversationID   string `json:"conversationId"`
	SenderID         string `json:"senderId"`
	EncryptedMessage string `json:"encryptedMessage"`
}

// ParseEnvelope decodifica e valida um payload do broker. Payload
// malformado é rejeitado, nunca confiado pela forma.
func ParseEnvelope(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("envelope inválido: %w", err)
	}
	if env.ConversationID == "" || env.SenderID == "" || env.EncryptedMessage == "" {
		return nil, fmt.Errorf("envelope com campos obrigatórios ausentes")
	}
	if _, err := uuid.Parse(env.ConversationID); err != nil {
		return nil, fmt.Errorf("envelope com conversationId inválido: %w", err)
	}
	if _, err := uuid.Parse(env.SenderID); err != nil {
		return nil, fmt.Errorf("envelope com senderId inválido: %w", err)
	}
	return &env, nil
}

// Encode serializa o envelope para publicação
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}
