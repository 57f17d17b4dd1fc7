package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"comchat-backend/internal/apperrors"

	"golang.org/x/crypto/pbkdf2"
)

// Parâmetros fixos do esquema de selagem. A contagem de iterações do
// PBKDF2 é deliberadamente alta para resistir a força bruta offline
// (mínimo documentado: 200.000).
const (
	KeyBits             = 2048
	PBKDF2Iters         = 250000
	saltSize            = 16
	gcmNonceSize        = 12
	derivedKeySize      = 32 // AES-256
	ConversationKeySize = 32
)

// GenerateKeyPair produz um par RSA-2048 para embrulho de chaves
// (payloads pequenos e fixos, nunca dados em massa).
func GenerateKeyPair() (*rsa.PublicKey, *rsa.PrivateKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeCryptoUnavailable, "falha ao gerar par de chaves", err)
	}
	return &priv.PublicKey, priv, nil
}

// SealPrivateKey exporta a chave privada (PKCS#8) e a sela com uma
// chave derivada da senha: PBKDF2-SHA256 com salt fresco, depois
// AES-256-GCM com nonce fresco. Tudo no retorno é seguro para
// armazenamento em repouso.
func SealPrivateKey(password string, priv *rsa.PrivateKey) (sealed, iv, salt []byte, err error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("falha ao exportar chave privada: %w", err)
	}

	salt = make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, nil, apperrors.Wrap(apperrors.CodeCryptoUnavailable, "falha ao gerar salt", err)
	}

	aead, err := newAEAD(password, salt)
	if err != nil {
		return nil, nil, nil, err
	}

	iv = make([]byte, gcmNonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, nil, apperrors.Wrap(apperrors.CodeCryptoUnavailable, "falha ao gerar iv", err)
	}

	sealed = aead.Seal(nil, iv, der, nil)
	return sealed, iv, salt, nil
}

// UnsealPrivateKey é a operação inversa de SealPrivateKey. Senha errada
// resulta em ErrAuthenticationFailed — indistinguível de qualquer outra
// falha de decifragem, para não virar oráculo.
func UnsealPrivateKey(password string, sealed, iv, salt []byte) (*rsa.PrivateKey, error) {
	aead, err := newAEAD(password, salt)
	if err != nil {
		return nil, err
	}

	der, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		// Tag inválida ou blob corrompido: mesma resposta nos dois casos
		return nil, apperrors.ErrAuthenticationFailed
	}

	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, apperrors.ErrAuthenticationFailed
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, apperrors.ErrAuthenticationFailed
	}
	return priv, nil
}

// Wrap cifra uma chave simétrica curta sob a chave pública do
// destinatário (RSA-OAEP com SHA-256).
func Wrap(symmetricKey []byte, pub *rsa.PublicKey) ([]byte, error) {
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, symmetricKey, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCryptoUnavailable, "falha ao embrulhar chave", err)
	}
	return wrapped, nil
}

// Unwrap recupera a chave simétrica embrulhada. Entrada corrompida ou
// chave privada errada resultam em ErrUnwrapFailed.
func Unwrap(wrapped []byte, priv *rsa.PrivateKey) ([]byte, error) {
	key, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
	if err != nil {
		return nil, apperrors.ErrUnwrapFailed
	}
	return key, nil
}

// NewConversationKey gera uma chave simétrica fresca de 256 bits para
// uma conversa.
func NewConversationKey() ([]byte, error) {
	key := make([]byte, ConversationKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCryptoUnavailable, "falha ao gerar chave de conversa", err)
	}
	return key, nil
}

// newAEAD deriva a chave simétrica da senha e monta o cifrador GCM
func newAEAD(password string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, PBKDF2Iters, derivedKeySize, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCryptoUnavailable, "falha ao iniciar cifrador", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCryptoUnavailable, "falha ao iniciar GCM", err)
	}
	return aead, nil
}

// === Conversão PEM (o cliente troca chaves públicas em SPKI/PEM) ===

// MarshalPublicKeyPEM serializa a chave pública em SPKI/PEM
func MarshalPublicKeyPEM(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("falha ao exportar chave pública: %w", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return string(pem.EncodeToMemory(block)), nil
}

// ParsePublicKeyPEM faz o caminho inverso de MarshalPublicKeyPEM
func ParsePublicKeyPEM(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, fmt.Errorf("PEM inválido")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("falha ao parsear chave pública: %w", err)
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("chave pública não é RSA")
	}
	return pub, nil
}
