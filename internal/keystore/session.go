package keystore

import (
	"crypto/rsa"
	"sync"

	"comchat-backend/internal/apperrors"
)

// PrivateKeySession é o guardião da chave privada aberta durante uma
// sessão autenticada. A chave vive só em memória volátil: é sempre
// re-derivada da senha + blob selado no início da sessão e descartada
// no Close. Nunca é persistida implicitamente.
type PrivateKeySession struct {
	mu   sync.Mutex
	priv *rsa.PrivateKey
}

// OpenSession dessela a chave privada a partir da senha e do material
// selado armazenado, e devolve um handle com tempo de vida explícito.
func OpenSession(password string, sealed, iv, salt []byte) (*PrivateKeySession, error) {
	priv, err := UnsealPrivateKey(password, sealed, iv, salt)
	if err != nil {
		return nil, err
	}
	return &PrivateKeySession{priv: priv}, nil
}

// UnwrapConversationKey desembrulha a chave da conversa com a chave
// privada da sessão. Falha se a sessão já foi fechada.
func (s *PrivateKeySession) UnwrapConversationKey(wrapped []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.priv == nil {
		return nil, apperrors.ErrUnwrapFailed
	}
	return Unwrap(wrapped, s.priv)
}

// Closed informa se o handle já foi fechado.
func (s *PrivateKeySession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.priv == nil
}

// Close descarta a referência à chave privada. Chamadas posteriores a
// UnwrapConversationKey falham.
func (s *PrivateKeySession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.priv = nil
}
