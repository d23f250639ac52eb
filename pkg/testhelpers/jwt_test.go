package testhelpers

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTestJWT(t *testing.T) {
	token := GenerateTestJWT("user-1", "editor")

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	assert.Empty(t, parts[2])

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{"sub":"user-1","roles":["editor"]}`, string(payload))

	assert.True(t, strings.HasPrefix(GenerateTestJWTWithBearer("u"), "Bearer "))
}
