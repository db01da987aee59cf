package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashOrRead(t *testing.T) {
	h, err := HashOrRead("secret")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword(h, []byte("secret")))

	again, err := HashOrRead(string(h))
	require.NoError(t, err)
	require.Equal(t, h, again)
}
