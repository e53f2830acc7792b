package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCompare(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("s3cret")
	require.NoError(t, err)

	assert.NoError(t, h.Compare(hash, "s3cret"))
	assert.ErrorIs(t, h.Compare(hash, "guess"), ErrMismatch)
	assert.ErrorIs(t, h.Compare("", "s3cret"), ErrMismatch)
	assert.ErrorIs(t, h.Compare(hash, ""), ErrMismatch)
}

func TestHashRejectsEmpty(t *testing.T) {
	_, err := NewBcryptHasher(bcrypt.MinCost).Hash("")
	assert.Error(t, err)
}
