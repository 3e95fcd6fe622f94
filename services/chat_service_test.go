package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/repositories"
	"context"
	stdErrors "errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type chatFixture struct {
	service      *ChatService
	messages     *mocks.MockIMessageRepository
	participants *mocks.MockIParticipantRepository
	users        *mocks.MockIUserRepository
}

func newChatFixture(t *testing.T) chatFixture {
	ctrl := gomock.NewController(t)
	f := chatFixture{
		messages:     mocks.NewMockIMessageRepository(ctrl),
		participants: mocks.NewMockIParticipantRepository(ctrl),
		users:        mocks.NewMockIUserRepository(ctrl),
	}
	f.service = NewChatService(f.messages, f.participants, f.users, logs.GetLoggerFromLevel(slog.LevelDebug))
	return f
}

func TestChatService_AppendMessage(t *testing.T) {
	t.Run("should stamp and persist the message", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t)
		at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
		f.service.now = func() time.Time { return at }

		var stored repositories.DiskMessage
		f.messages.EXPECT().StoreMessage(gomock.Any()).
			DoAndReturn(func(m repositories.DiskMessage) error {
				stored = m
				return nil
			})

		message, err := f.service.AppendMessage(context.Background(), "general", "u1", "hello")

		req.NoError(err)
		req.NotEqual(uuid.Nil, message.ID)
		req.Equal(at.UTC(), message.CreatedAt)
		req.Equal(message.ID, stored.ID)
		req.Equal("u1", stored.Author)
		req.Equal("hello", stored.Content)
	})

	t.Run("should keep empty content as given", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t)
		f.messages.EXPECT().StoreMessage(gomock.Any()).Return(nil)

		message, err := f.service.AppendMessage(context.Background(), "general", "u1", "   ")

		req.NoError(err)
		req.Equal("   ", message.Content)
	})

	t.Run("should wrap storage failures", func(t *testing.T) {
		req := require.New(t)
		f := newChatFixture(t)
		f.messages.EXPECT().StoreMessage(gomock.Any()).Return(stdErrors.New("disk full"))

		_, err := f.service.AppendMessage(context.Background(), "general", "u1", "hello")

		req.ErrorIs(err, errors.ErrPersistence)
	})
}

func TestChatService_LoadHistory(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	diskMessages := []repositories.DiskMessage{
		{ID: uuid.New(), Room: "general", Author: "u1", Content: "first", At: at},
		{ID: uuid.New(), Room: "general", Author: "u2", Content: "second", At: at.Add(time.Second)},
	}
	f.messages.EXPECT().GetMessages(domain.RoomID("general")).Return(diskMessages, nil)

	history, err := f.service.LoadHistory(context.Background(), "general")

	req.NoError(err)
	req.Len(history, 2)
	req.Equal("u1", history[0].SenderID)
	req.Equal("second", history[1].Content)
	req.Equal(at, history[0].CreatedAt)
}

func TestChatService_Membership_And_Names(t *testing.T) {
	req := require.New(t)
	f := newChatFixture(t)
	f.participants.EXPECT().IsCurrentParticipant(domain.RoomID("general"), "u1").Return(true, nil)
	f.users.EXPECT().GetUserByID("u1").Return(domain.User{ID: "u1", Username: "alice"}, nil)
	f.users.EXPECT().GetUserByID("u9").Return(domain.User{}, errors.ErrUserNotFound)

	isMember, err := f.service.IsMember(context.Background(), "u1", "general")
	req.NoError(err)
	req.True(isMember)

	name, err := f.service.ResolveDisplayName(context.Background(), "u1")
	req.NoError(err)
	req.Equal("alice", name)

	_, err = f.service.ResolveDisplayName(context.Background(), "u9")
	req.ErrorIs(err, errors.ErrUserNotFound)
}
