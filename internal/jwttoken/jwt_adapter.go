package jwttoken

import "recrusearch/internal/platform/middleware"

// MiddlewareAdapter adapts Service to the middleware.JWTValidator interface so
// the middleware package does not depend on this one.
type MiddlewareAdapter struct {
	service *Service
}

func NewMiddlewareAdapter(service *Service) *MiddlewareAdapter {
	return &MiddlewareAdapter{service: service}
}

func (a *MiddlewareAdapter) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	claims, err := a.service.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &middleware.JWTClaims{
		Identity: claims.Identity,
		Role:     claims.Role,
	}, nil
}
