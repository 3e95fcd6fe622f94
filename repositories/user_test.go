package repositories

import (
	"testing"

	"chat-relay/errors"

	"github.com/stretchr/testify/require"
)

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	userID, err := repository.CreateUser("alice", "hashed")
	req.NoError(err)
	req.NotEmpty(userID)

	byName, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(userID, byName.ID)
	req.Equal("hashed", byName.PasswordHash)

	byID, err := repository.GetUserByID(userID)
	req.NoError(err)
	req.Equal("alice", byID.Username)
}

func Test_Create_User_Twice(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	_, err := repository.CreateUser("alice", "hashed")
	req.NoError(err)
	_, err = repository.CreateUser("alice", "other")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	_, err := repository.GetUserByUsername("ghost")
	req.ErrorIs(err, errors.ErrUserNotFound)
	_, err = repository.GetUserByID("ghost-id")
	req.ErrorIs(err, errors.ErrUserNotFound)
}
