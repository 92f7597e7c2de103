package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashSDKKeyStable(t *testing.T) {
	hash := HashSDKKey("s_some-key")

	assert.Equal(t, hash, HashSDKKey("s_some-key"))
	assert.Len(t, hash, 64, "hex-encoded sha256")
	assert.NotEqual(t, hash, HashSDKKey("s_other-key"))
}

func TestGenerateSDKKey(t *testing.T) {
	plain, hash, err := GenerateSDKKey(ServerKeyPrefix)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(plain, ServerKeyPrefix))
	assert.Equal(t, HashSDKKey(plain), hash, "stored hash matches the plain key")

	other, _, err := GenerateSDKKey(ServerKeyPrefix)
	require.NoError(t, err)
	assert.NotEqual(t, plain, other, "keys are random")

	client, _, err := GenerateSDKKey(ClientKeyPrefix)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(client, ClientKeyPrefix))
}
