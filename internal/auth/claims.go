package auth

import "github.com/golang-jwt/jwt/v5"

// Claims are the service token shape. Subject names the calling service or
// operator; AccountID scopes every non-admin request.
type Claims struct {
	jwt.RegisteredClaims

	AccountID string `json:"account_id,omitempty"`
	Role      string `json:"role"`
}
