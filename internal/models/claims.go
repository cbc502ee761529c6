package models

import "github.com/golang-jwt/jwt/v5"

// Claims holds the identity fields carried in a signed token: who is acting
// and which role gates their eligibility. The engine needs nothing else from
// the authentication layer.
type Claims struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
