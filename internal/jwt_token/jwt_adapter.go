package jwttoken

import (
	"onboard/internal/platform/middleware"
)

// JWTServiceAdapter narrows JWTService to the middleware.JWTValidator
// interface so the middleware package stays free of token internals.
type JWTServiceAdapter struct {
	service *JWTService
}

// NewJWTServiceAdapter wraps a token service for use by RequireAuth.
func NewJWTServiceAdapter(service *JWTService) *JWTServiceAdapter {
	return &JWTServiceAdapter{service: service}
}

// ValidateToken validates the token and projects its claims into the
// middleware's claim type.
func (a *JWTServiceAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		UserID:       claims.UserID,
		ActivationID: claims.ActivationID,
	}, nil
}
