package auth

import (
	"strings"

	"trivia-lab/domain"
	"trivia-lab/errors"
)

// Resolver turns the credentials of a request into an Authority.
type Resolver struct {
	tokens *TokenIssuer
}

func NewResolver(tokens *TokenIssuer) *Resolver {
	return &Resolver{tokens: tokens}
}

// Resolve accepts a bearer access token, a signed participant handle, or both.
// An invalid credential is an error even when the other one is valid.
func (r *Resolver) Resolve(authorization, handleToken string) (domain.Authority, error) {
	bearer := strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer "))
	handleToken = strings.TrimSpace(handleToken)

	var handle *domain.LocalHandle
	if handleToken != "" {
		h, err := r.tokens.ParseHandle(handleToken)
		if err != nil {
			return nil, err
		}
		handle = &h
	}

	if bearer == "" {
		if handle == nil {
			return nil, errors.ErrUnauthenticated
		}
		return domain.Anonymous{Handle: *handle}, nil
	}
	claims, err := r.tokens.ParseAccess(bearer)
	if err != nil {
		return nil, err
	}
	return domain.Authenticated{Principal: domain.UserID(claims.UserID), Handle: handle}, nil
}
