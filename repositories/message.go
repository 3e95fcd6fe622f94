//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(room domain.RoomID) ([]DiskMessage, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

type DiskMessage struct {
	ID      uuid.UUID     `json:"id"`
	Room    domain.RoomID `json:"room"`
	Author  string        `json:"author"`
	Content string        `json:"content"`
	At      time.Time     `json:"at"`
}

func messagePrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", roomSegment(room)))
}

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	key := fmt.Sprintf("%s%019d:%s",
		messagePrefix(message.Room),
		message.At.UnixNano(),
		message.ID,
	)
	return m.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, []byte(key), message)
	})
}

// GetMessages returns the messages of a room oldest first.
// When limitMessages is set only the most recent ones are kept: the scan runs
// backwards from the newest key and the result is reversed afterwards.
func (m MessageRepository) GetMessages(room domain.RoomID) ([]DiskMessage, error) {
	var diskMessages []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(room)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		options.Reverse = m.limitMessages != nil
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := prefix
		if options.Reverse {
			seekKey = append(append([]byte{}, prefix...), 0xFF)
		}

		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(diskMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			var message DiskMessage
			if err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &message)
			}); err != nil {
				return err
			}
			diskMessages = append(diskMessages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if m.limitMessages != nil {
		diskMessages = lo.Reverse(diskMessages)
	}
	return diskMessages, nil
}
