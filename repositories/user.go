//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"fmt"
	"time"

	"trivia-lab/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(email, hashedPassword string) (string, error)
	GetUserByEmail(email string) (User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the repository-level representation of an account.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Roles        []string
	CreatedAt    time.Time
}

func userKey(email string) []byte {
	return []byte("user:" + email)
}

// CreateUser persists an account under its email and returns the generated id.
func (u UserRepository) CreateUser(email, hashedPassword string) (string, error) {
	newID := uuid.New().String()
	data, err := encode(userRecord{
		ID:           newID,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UnixNano(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		key := userKey(email)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", storeError(err)
	}
	return newID, nil
}

// GetUserByEmail retrieves an account; a missing one is errors.ErrNotFound.
func (u UserRepository) GetUserByEmail(email string) (User, error) {
	var record userRecord
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return decode(val, &record)
		})
	})
	if err != nil {
		return User{}, storeError(err)
	}
	return User{
		ID:           record.ID,
		Email:        record.Email,
		PasswordHash: record.PasswordHash,
		Roles:        record.Roles,
		CreatedAt:    time.Unix(0, record.CreatedAt).UTC(),
	}, nil
}
