package topic

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDeriverRequiresSecret(t *testing.T) {
	_, err := NewDeriver("")
	assert.Error(t, err)
}

func TestDeriveTopic(t *testing.T) {
	d, err := NewDeriver("segredo-do-servidor")
	require.NoError(t, err)

	t.Run("independente da ordem", func(t *testing.T) {
		assert.Equal(t, d.DeriveTopic("alice", "bob"), d.DeriveTopic("bob", "alice"))
	})

	t.Run("determinístico", func(t *testing.T) {
		assert.Equal(t, d.DeriveTopic("alice", "bob"), d.DeriveTopic("alice", "bob"))
	})

	t.Run("pares distintos geram tópicos distintos", func(t *testing.T) {
		assert.NotEqual(t, d.DeriveTopic("alice", "bob"), d.DeriveTopic("alice", "carol"))
	})

	t.Run("segredos distintos geram tópicos distintos", func(t *testing.T) {
		d2, err := NewDeriver("outro-segredo")
		require.NoError(t, err)
		assert.NotEqual(t, d.DeriveTopic("alice", "bob"), d2.DeriveTopic("alice", "bob"))
	})

	t.Run("formato do tópico", func(t *testing.T) {
		topic := d.DeriveTopic("alice", "bob")
		assert.True(t, strings.HasPrefix(topic, Prefix))
		// HMAC-SHA-256 em hex: 64 caracteres depois do prefixo
		assert.Len(t, topic, len(Prefix)+64)
	})
}
