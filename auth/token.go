package auth

import (
	"fmt"
	"time"

	"trivia-lab/domain"
	"trivia-lab/errors"

	"github.com/golang-jwt/jwt/v5"
)

const (
	issuer         = "trivia-lab"
	accessAudience = "access"
	handleAudience = "participant-handle"
)

// AccessClaims identifies an account.
type AccessClaims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// HandleClaims carry the resumable identity of a participant in one session.
// The client keeps the signed token and presents it again after a reload.
type HandleClaims struct {
	SessionID     string `json:"sid"`
	ParticipantID string `json:"pid"`
	IsOwner       bool   `json:"own"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 tokens with a single secret.
type TokenIssuer struct {
	secret         []byte
	accessDuration time.Duration
	handleDuration time.Duration
	now            func() time.Time
}

func NewTokenIssuer(secret string, accessDuration, handleDuration time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:         []byte(secret),
		accessDuration: accessDuration,
		handleDuration: handleDuration,
		now:            time.Now,
	}
}

func (i *TokenIssuer) registered(audience, subject string, duration time.Duration) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
	}
}

func (i *TokenIssuer) IssueAccess(userID string, roles []string) (string, error) {
	claims := &AccessClaims{
		UserID:           userID,
		Roles:            roles,
		RegisteredClaims: i.registered(accessAudience, userID, i.accessDuration),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return signed, nil
}

func (i *TokenIssuer) ParseAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(token, claims, accessAudience); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *TokenIssuer) IssueHandle(handle domain.LocalHandle) (string, error) {
	claims := &HandleClaims{
		SessionID:        string(handle.SessionID),
		ParticipantID:    string(handle.ParticipantID),
		IsOwner:          handle.IsOwner,
		RegisteredClaims: i.registered(handleAudience, string(handle.ParticipantID), i.handleDuration),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTokenGeneration, err)
	}
	return signed, nil
}

func (i *TokenIssuer) ParseHandle(token string) (domain.LocalHandle, error) {
	claims := &HandleClaims{}
	if err := i.parse(token, claims, handleAudience); err != nil {
		return domain.LocalHandle{}, err
	}
	return domain.LocalHandle{
		SessionID:     domain.SessionID(claims.SessionID),
		ParticipantID: domain.ParticipantID(claims.ParticipantID),
		IsOwner:       claims.IsOwner,
	}, nil
}

// parse rejects tokens with a bad signature, a foreign audience or an expiry in the past.
func (i *TokenIssuer) parse(token string, claims jwt.Claims, audience string) error {
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	return nil
}
