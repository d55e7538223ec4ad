package services

import (
	"fmt"
	"strings"

	"trivia-lab/auth"
	"trivia-lab/errors"
	"trivia-lab/repositories"
)

type IAuthService interface {
	Login(email, password string) (Token, error)
	Register(email, password string) (Token, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenIssuer
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenIssuer) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

// Register creates an account and signs the caller in.
// Validation runs before hashing, which is the expensive part.
func (s *AuthService) Register(email, password string) (Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := auth.ValidateRegister(auth.RegisterRequest{Email: email, Password: password}); err != nil {
		return "", err
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(email, hashedPassword)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.IssueAccess(userID, []string{"user"})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

// Login never tells an unknown email from a wrong password.
func (s *AuthService) Login(email, password string) (Token, error) {
	user, err := s.userRepository.GetUserByEmail(strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.IssueAccess(user.ID, user.Roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
