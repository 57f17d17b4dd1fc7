package keystore

import (
	"testing"

	"comchat-backend/internal/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealUnsealPrivateKey(t *testing.T) {
	_, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	sealed, iv, salt, err := SealPrivateKey("senha-muito-secreta", priv)
	require.NoError(t, err)
	require.NotEmpty(t, sealed)
	require.Len(t, iv, 12)
	require.Len(t, salt, 16)

	t.Run("senha correta recupera a chave", func(t *testing.T) {
		recovered, err := UnsealPrivateKey("senha-muito-secreta", sealed, iv, salt)
		require.NoError(t, err)
		assert.True(t, priv.Equal(recovered))
	})

	t.Run("senha errada falha com AuthenticationFailed", func(t *testing.T) {
		_, err := UnsealPrivateKey("senha-errada", sealed, iv, salt)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
	})

	t.Run("blob corrompido falha igual a senha errada", func(t *testing.T) {
		corrupted := append([]byte{}, sealed...)
		corrupted[0] ^= 0xff
		_, err := UnsealPrivateKey("senha-muito-secreta", corrupted, iv, salt)
		assert.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
	})
}

func TestWrapUnwrap(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	convKey, err := NewConversationKey()
	require.NoError(t, err)
	require.Len(t, convKey, ConversationKeySize)

	t.Run("roundtrip com o par correto", func(t *testing.T) {
		wrapped, err := Wrap(convKey, pub)
		require.NoError(t, err)

		unwrapped, err := Unwrap(wrapped, priv)
		require.NoError(t, err)
		assert.Equal(t, convKey, unwrapped)
	})

	t.Run("blob corrompido falha com UnwrapFailed", func(t *testing.T) {
		wrapped, err := Wrap(convKey, pub)
		require.NoError(t, err)
		wrapped[0] ^= 0xff

		_, err = Unwrap(wrapped, priv)
		assert.ErrorIs(t, err, apperrors.ErrUnwrapFailed)
	})

	t.Run("chave privada de outro par falha com UnwrapFailed", func(t *testing.T) {
		_, otherPriv, err := GenerateKeyPair()
		require.NoError(t, err)

		wrapped, err := Wrap(convKey, pub)
		require.NoError(t, err)

		_, err = Unwrap(wrapped, otherPriv)
		assert.ErrorIs(t, err, apperrors.ErrUnwrapFailed)
	})
}

func TestPublicKeyPEMRoundtrip(t *testing.T) {
	pub, _, err := GenerateKeyPair()
	require.NoError(t, err)

	pemStr, err := MarshalPublicKeyPEM(pub)
	require.NoError(t, err)
	assert.Contains(t, pemStr, "BEGIN PUBLIC KEY")

	parsed, err := ParsePublicKeyPEM(pemStr)
	require.NoError(t, err)
	assert.True(t, pub.Equal(parsed))
}

func TestParsePublicKeyPEMInvalid(t *testing.T) {
	_, err := ParsePublicKeyPEM("não é um PEM")
	assert.Error(t, err)
}

func TestPrivateKeySession(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	sealed, iv, salt, err := SealPrivateKey("senha-da-sessao", priv)
	require.NoError(t, err)

	convKey, err := NewConversationKey()
	require.NoError(t, err)
	wrapped, err := Wrap(convKey, pub)
	require.NoError(t, err)

	t.Run("sessão aberta desembrulha a chave da conversa", func(t *testing.T) {
		session, err := OpenSession("senha-da-sessao", sealed, iv, salt)
		require.NoError(t, err)
		defer session.Close()

		unwrapped, err := session.UnwrapConversationKey(wrapped)
		require.NoError(t, err)
		assert.Equal(t, convKey, unwrapped)
	})

	t.Run("senha errada não abre sessão", func(t *testing.T) {
		_, err := OpenSession("senha-errada", sealed, iv, salt)
		assert.ErrorIs(t, err, apperrors.ErrAuthenticationFailed)
	})

	t.Run("sessão fechada não desembrulha mais", func(t *testing.T) {
		session, err := OpenSession("senha-da-sessao", sealed, iv, salt)
		require.NoError(t, err)

		session.Close()
		assert.True(t, session.Closed())

		_, err = session.UnwrapConversationKey(wrapped)
		assert.ErrorIs(t, err, apperrors.ErrUnwrapFailed)
	})
}
