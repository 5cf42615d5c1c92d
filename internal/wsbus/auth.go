package wsbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Permission is a bit in the permission set carried by a session token.
type Permission uint16

const (
	PermConnect Permission = 1 << iota
	PermStart
	PermStop
	PermRestart
	PermConsole
	PermBackupRead
	PermAdminErrors
	PermAdminInstall
	PermAdminTransfer
)

// nonAdminPermissions is what the "*" wildcard claim grants: every
// permission a regular panel user session can hold, excluding the
// admin-only ones.
const nonAdminPermissions = PermConnect | PermStart | PermStop | PermRestart |
	PermConsole | PermBackupRead

var permissionNames = map[string]Permission{
	"websocket.connect": PermConnect,
	"control.start":     PermStart,
	"control.stop":      PermStop,
	"control.restart":   PermRestart,
	"control.console":   PermConsole,
	"backup.read":       PermBackupRead,
	"admin.errors":      PermAdminErrors,
	"admin.install":     PermAdminInstall,
	"admin.transfer":    PermAdminTransfer,
}

// Has reports whether p includes want.
func (p Permission) Has(want Permission) bool {
	return p&want == want
}

// Claims is the token payload shape issued by the panel for a single
// websocket connection.
type Claims struct {
	jwt.RegisteredClaims
	ServerUUID  string   `json:"server_uuid"`
	Permissions []string `json:"permissions"`
}

// permissionSet folds the claim's raw permission strings into a bitset,
// expanding "*" to the non-admin wildcard set.
func permissionSet(raw []string) Permission {
	var set Permission
	for _, name := range raw {
		if name == "*" {
			set |= nonAdminPermissions
			continue
		}
		if bit, ok := permissionNames[name]; ok {
			set |= bit
		}
	}
	return set
}

// Authenticator validates connection and command tokens against a shared
// HMAC secret (golang-jwt/jwt/v5, HS256 — the panel and agent share a
// configured secret rather than an asymmetric keypair).
type Authenticator struct {
	secret []byte
	issuer string
	leeway time.Duration
}

func NewAuthenticator(secret []byte, issuer string) *Authenticator {
	return &Authenticator{secret: secret, issuer: issuer, leeway: 10 * time.Second}
}

var (
	ErrTokenInvalid       = errors.New("wsbus: token invalid")
	ErrTokenWrongServer   = errors.New("wsbus: token issued for a different server")
	ErrTokenMissingIssuer = errors.New("wsbus: token missing expected issuer")
)

// Authenticate validates tokenString for the given server UUID and
// returns the permission bitset it grants.
func (a *Authenticator) Authenticate(tokenString, serverUUID string) (Permission, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wsbus: unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithLeeway(a.leeway), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if a.issuer != "" && claims.Issuer != a.issuer {
		return 0, ErrTokenMissingIssuer
	}
	if claims.ServerUUID != serverUUID {
		return 0, ErrTokenWrongServer
	}

	return permissionSet(claims.Permissions), nil
}
