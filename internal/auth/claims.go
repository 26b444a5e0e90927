package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const TokenTypeAccess TokenType = "access"

// Claims are the only supported JWT claims shape for this service.
// ClientID identifies the integration the token was issued to; the
// query API never serves a request without one.
type Claims struct {
	jwt.RegisteredClaims

	ClientID  string    `json:"client_id"`
	Scope     string    `json:"scope"`
	TokenType TokenType `json:"token_type"`
}
