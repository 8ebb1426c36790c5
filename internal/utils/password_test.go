package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("Password1!")
	require.NoError(t, err)
	assert.NotEqual(t, "Password1!", hash)

	assert.True(t, h.Matches("Password1!", hash))
	assert.False(t, h.Matches("password1!", hash))
	assert.False(t, h.Matches("Password1!", "not-a-bcrypt-hash"))

	again, err := h.Hash("Password1!")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "salted")
}

func TestNewBcryptHasher_ClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewBcryptHasher(1).Cost)
	assert.Equal(t, 11, NewBcryptHasher(11).Cost)
}
