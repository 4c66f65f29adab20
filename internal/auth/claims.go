package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for this service.
// The token is the directory: user id, display name, role and cost center are
// read from it and nowhere else.
type Claims struct {
	jwt.RegisteredClaims

	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	CostCenter string    `json:"cost_center,omitempty"`
	TokenType  TokenType `json:"token_type"`
}
