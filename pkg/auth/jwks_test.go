package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestToken creates an unsigned JWT for dev mode.
func createTestToken(claims *Claims) string {
	headerJSON, _ := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	claimsJSON, _ := json.Marshal(claims)
	return base64.RawURLEncoding.EncodeToString(headerJSON) + "." +
		base64.RawURLEncoding.EncodeToString(claimsJSON) + "."
}

// jwksServer serves the public half of key as a one-key JWKS.
func jwksServer(t *testing.T, key *rsa.PrivateKey, kid string) *httptest.Server {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": kid,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims *Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestJWKSClient_DevModeParsesClaims(t *testing.T) {
	client, err := NewJWKSClient(&JWKSConfig{EnableVerification: false})
	require.NoError(t, err)
	defer client.Close()

	token := createTestToken(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "user-123",
			Issuer:  "https://auth.example.com",
		},
		Email: "ana@example.com",
		Roles: []string{"editor"},
	})

	claims, err := client.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.True(t, claims.IsEditor())
}

func TestJWKSClient_DevModeRejectsGarbage(t *testing.T) {
	client, err := NewJWKSClient(&JWKSConfig{EnableVerification: false})
	require.NoError(t, err)

	for _, token := range []string{"", "not-a-jwt", "a.b.c", "!!!.@@@."} {
		_, err := client.ValidateToken(token)
		assert.Error(t, err, "token %q", token)
	}
}

func TestNewJWKSClient_VerificationWithoutEndpoints(t *testing.T) {
	_, err := NewJWKSClient(&JWKSConfig{EnableVerification: true})
	assert.Error(t, err)
}

func TestJWKSClient_VerifiesSignature(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	const issuer = "https://auth.example.com"
	srv := jwksServer(t, key, "k1")

	client, err := NewJWKSClient(&JWKSConfig{
		EnableVerification: true,
		JWKSEndpoints:      map[string]string{issuer: srv.URL},
	})
	require.NoError(t, err)
	defer client.Close()

	valid := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Roles: []string{"editor"},
	}

	t.Run("valid", func(t *testing.T) {
		claims, err := client.ValidateToken(signToken(t, key, "k1", valid))
		require.NoError(t, err)
		assert.Equal(t, "user-1", claims.Subject)
	})

	t.Run("unknown issuer", func(t *testing.T) {
		other := *valid
		other.Issuer = "https://evil.example.com"
		_, err := client.ValidateToken(signToken(t, key, "k1", &other))
		assert.ErrorContains(t, err, "unauthorized issuer")
	})

	t.Run("expired", func(t *testing.T) {
		expired := *valid
		expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
		_, err := client.ValidateToken(signToken(t, key, "k1", &expired))
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("missing expiry", func(t *testing.T) {
		noExp := *valid
		noExp.ExpiresAt = nil
		_, err := client.ValidateToken(signToken(t, key, "k1", &noExp))
		assert.Error(t, err)
	})

	t.Run("wrong key", func(t *testing.T) {
		otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		_, err = client.ValidateToken(signToken(t, otherKey, "k1", valid))
		assert.Error(t, err)
	})

	t.Run("unsigned token", func(t *testing.T) {
		_, err := client.ValidateToken(createTestToken(valid))
		assert.Error(t, err)
	})
}
