package services

import (
	"testing"
	"time"

	"trivia-lab/auth"
	"trivia-lab/errors"
	"trivia-lab/mocks"
	"trivia-lab/repositories"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenIssuer("secret", 24*time.Hour, time.Hour)
	svc := NewAuthService(mockRepo, tokens)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)

		// Expect the hash, never the plain password
		mockRepo.EXPECT().
			CreateUser("ana@example.com", gomock.Not("secret1")).
			Return("user-uuid", nil).
			Times(1)

		token, err := svc.Register(" Ana@Example.com ", "secret1")

		req.NoError(err)
		claims, err := tokens.ParseAccess(token.String())
		req.NoError(err)
		req.Equal("user-uuid", claims.UserID)
	})

	t.Run("should fail when password is too short", func(t *testing.T) {
		req := require.New(t)

		// Repository should never be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		token, err := svc.Register("ana@example.com", "12345")

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
	})

	t.Run("should fail when email is malformed", func(t *testing.T) {
		req := require.New(t)
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Register("not-an-email", "secret1")

		req.Error(err)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("duplicate@example.com", gomock.Any()).
			Return("", errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register("duplicate@example.com", "secret1")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenIssuer("secret", 24*time.Hour, time.Hour)
	svc := NewAuthService(mockRepo, tokens)

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		hashedPassword, err := auth.HashPassword("secret1")
		req.NoError(err)
		storedUser := repositories.User{
			ID:           "uuid-123",
			Email:        "ana@example.com",
			PasswordHash: hashedPassword,
			Roles:        []string{"user"},
		}

		mockRepo.EXPECT().GetUserByEmail("ana@example.com").Return(storedUser, nil).Times(1)

		token, err := svc.Login("ana@example.com", "secret1")

		req.NoError(err)
		claims, err := tokens.ParseAccess(string(token))
		req.NoError(err)
		req.Equal(storedUser.ID, claims.UserID)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)
		hashedPassword, err := auth.HashPassword("secret1")
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByEmail("ana@example.com").
			Return(repositories.User{Email: "ana@example.com", PasswordHash: hashedPassword}, nil).
			Times(1)

		_, err = svc.Login("ana@example.com", "wrong-one")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByEmail("unknown@example.com").
			Return(repositories.User{}, errors.ErrNotFound).
			Times(1)

		_, err := svc.Login("unknown@example.com", "anyPassword")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}
