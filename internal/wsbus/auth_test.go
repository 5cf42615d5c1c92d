package wsbus

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-shared-secret"

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestAuthenticateGrantsClaimedPermissions(t *testing.T) {
	auth := NewAuthenticator([]byte(testSecret), "panel")
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "panel",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		ServerUUID:  "server-1",
		Permissions: []string{"websocket.connect", "control.start"},
	}

	perms, err := auth.Authenticate(signToken(t, claims), "server-1")
	require.NoError(t, err)
	assert.True(t, perms.Has(PermConnect))
	assert.True(t, perms.Has(PermStart))
	assert.False(t, perms.Has(PermAdminInstall))
}

func TestAuthenticateWildcardGrantsNonAdminPermissions(t *testing.T) {
	auth := NewAuthenticator([]byte(testSecret), "panel")
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "panel",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		ServerUUID:  "server-1",
		Permissions: []string{"*"},
	}

	perms, err := auth.Authenticate(signToken(t, claims), "server-1")
	require.NoError(t, err)
	assert.True(t, perms.Has(PermConsole))
	assert.False(t, perms.Has(PermAdminErrors))
}

func TestAuthenticateRejectsMismatchedServerUUID(t *testing.T) {
	auth := NewAuthenticator([]byte(testSecret), "panel")
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "panel",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		ServerUUID:  "server-1",
		Permissions: []string{"*"},
	}

	_, err := auth.Authenticate(signToken(t, claims), "server-2")
	assert.ErrorIs(t, err, ErrTokenWrongServer)
}

func TestAuthenticateRejectsBadSignature(t *testing.T) {
	auth := NewAuthenticator([]byte(testSecret), "panel")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ServerUUID: "server-1",
	})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	_, err = auth.Authenticate(signed, "server-1")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
