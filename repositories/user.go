//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"chat-relay/errors"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(username, hashedPassword string) (string, error)
	GetUserByUsername(username string) (domain.User, error)
	GetUserByID(userID string) (domain.User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

type diskUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func userKey(username string) []byte { return []byte("user:" + username) }
func userIDKey(userID string) []byte { return []byte("userid:" + userID) }

// CreateUser persists an already hashed password under the username.
// It returns the newly generated User ID
func (u UserRepository) CreateUser(username, hashedPassword string) (string, error) {
	user := diskUser{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}

	err := u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(userKey(username)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := setJSON(txn, userKey(username), user); err != nil {
			return err
		}
		// Secondary index: id -> username
		return txn.Set(userIDKey(user.ID), []byte(username))
	})
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (u UserRepository) GetUserByUsername(username string) (domain.User, error) {
	var user diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(username), &user)
	})
	if err != nil {
		return domain.User{}, notFound(err, username)
	}
	return toUser(user), nil
}

func (u UserRepository) GetUserByID(userID string) (domain.User, error) {
	var user diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userIDKey(userID))
		if err != nil {
			return err
		}
		username, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return getJSON(txn, userKey(string(username)), &user)
	})
	if err != nil {
		return domain.User{}, notFound(err, userID)
	}
	return toUser(user), nil
}

func notFound(err error, key string) error {
	if stdErrors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", errors.ErrUserNotFound, key)
	}
	return err
}

func toUser(user diskUser) domain.User {
	return domain.User{
		ID:           user.ID,
		Username:     user.Username,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	}
}
