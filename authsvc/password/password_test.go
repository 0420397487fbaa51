package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	h, err := New(Config{Cost: bcrypt.MinCost})
	require.NoError(t, err)

	hash, err := h.Hash("pw1")
	require.NoError(t, err)

	assert.NotEqual(t, "pw1", hash)
	assert.True(t, h.Verify("pw1", hash))
	assert.False(t, h.Verify("pw2", hash))
	assert.False(t, h.Verify("pw1", "not-a-bcrypt-hash"))
}

func TestHash_Salted(t *testing.T) {
	h, err := New(Config{Cost: bcrypt.MinCost})
	require.NoError(t, err)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestNew_Cost(t *testing.T) {
	h, err := New(Config{})
	require.NoError(t, err)
	hash, err := h.Hash("x")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, DefaultCost, cost)

	_, err = New(Config{Cost: bcrypt.MaxCost + 1})
	assert.Error(t, err)

	_, err = New(Config{Cost: 1})
	assert.Error(t, err)
}
