package services

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/repositories"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// ChatService backs a chat session with the badger repositories:
// room membership, message history and display names.
type ChatService struct {
	messageRepository     repositories.IMessageRepository
	participantRepository repositories.IParticipantRepository
	userRepository        repositories.IUserRepository
	log                   *slog.Logger
	now                   func() time.Time
}

func NewChatService(
	messageRepository repositories.IMessageRepository,
	participantRepository repositories.IParticipantRepository,
	userRepository repositories.IUserRepository,
	log *slog.Logger,
) *ChatService {
	return &ChatService{
		messageRepository:     messageRepository,
		participantRepository: participantRepository,
		userRepository:        userRepository,
		log:                   log,
		now:                   time.Now,
	}
}

func (s *ChatService) IsMember(_ context.Context, userID string, roomID domain.RoomID) (bool, error) {
	return s.participantRepository.IsCurrentParticipant(roomID, userID)
}

func (s *ChatService) LoadHistory(_ context.Context, roomID domain.RoomID) ([]domain.Message, error) {
	diskMessages, err := s.messageRepository.GetMessages(roomID)
	if err != nil {
		return nil, err
	}
	return lo.Map(diskMessages, func(m repositories.DiskMessage, _ int) domain.Message {
		return domain.Message{
			ID:        m.ID,
			Room:      m.Room,
			SenderID:  m.Author,
			Content:   m.Content,
			CreatedAt: m.At,
		}
	}), nil
}

// AppendMessage assigns the message id and timestamp then persists it.
// Content is stored as given, empty or not.
func (s *ChatService) AppendMessage(_ context.Context, roomID domain.RoomID, userID, content string) (domain.Message, error) {
	message := domain.Message{
		ID:        uuid.New(),
		Room:      roomID,
		SenderID:  userID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	err := s.messageRepository.StoreMessage(repositories.DiskMessage{
		ID:      message.ID,
		Room:    message.Room,
		Author:  message.SenderID,
		Content: message.Content,
		At:      message.CreatedAt,
	})
	if err != nil {
		s.log.Error("Unable to store message", "room", roomID, "user", userID, "error", err)
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return message, nil
}

func (s *ChatService) ResolveDisplayName(_ context.Context, userID string) (string, error) {
	user, err := s.userRepository.GetUserByID(userID)
	if err != nil {
		return "", err
	}
	return user.Username, nil
}
