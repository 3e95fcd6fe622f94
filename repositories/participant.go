//go:generate go run go.uber.org/mock/mockgen -source=participant.go -destination=../mocks/mock_participant_repository.go -package=mocks
package repositories

import (
	"chat-relay/domain"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

type IParticipantRepository interface {
	AddParticipant(roomID domain.RoomID, userID string) (domain.Participant, bool, error)
	RemoveParticipant(roomID domain.RoomID, userID string) error
	GetParticipants(roomID domain.RoomID) ([]domain.Participant, error)
	IsCurrentParticipant(roomID domain.RoomID, userID string) (bool, error)
}

type ParticipantRepository struct {
	db *badger.DB
}

func NewParticipantRepository(db *badger.DB) IParticipantRepository {
	return &ParticipantRepository{db: db}
}

type diskParticipant struct {
	Room     domain.RoomID `json:"room"`
	UserID   string        `json:"user_id"`
	JoinedAt time.Time     `json:"joined_at"`
	LeftAt   *time.Time    `json:"left_at,omitempty"`
}

func participantPrefix(roomID domain.RoomID) []byte {
	return []byte(fmt.Sprintf("participant:%s:", roomSegment(roomID)))
}

func participantKey(roomID domain.RoomID, userID string) []byte {
	return append(participantPrefix(roomID), userID...)
}

// AddParticipant records the user as a current member of the room.
// A previous departure is cleared. The boolean reports whether the
// participant was not already a current member.
func (p ParticipantRepository) AddParticipant(roomID domain.RoomID, userID string) (domain.Participant, bool, error) {
	var participant diskParticipant
	added := false
	err := p.db.Update(func(txn *badger.Txn) error {
		err := getJSON(txn, participantKey(roomID, userID), &participant)
		switch {
		case stdErrors.Is(err, badger.ErrKeyNotFound):
			participant = diskParticipant{Room: roomID, UserID: userID, JoinedAt: time.Now().UTC()}
			added = true
		case err != nil:
			return err
		case participant.LeftAt != nil:
			participant.LeftAt = nil
			participant.JoinedAt = time.Now().UTC()
			added = true
		default:
			return nil
		}
		return setJSON(txn, participantKey(roomID, userID), participant)
	})
	if err != nil {
		return domain.Participant{}, false, err
	}
	return domain.Participant(participant), added, nil
}

// RemoveParticipant stamps LeftAt. Unknown participants are ignored.
func (p ParticipantRepository) RemoveParticipant(roomID domain.RoomID, userID string) error {
	return p.db.Update(func(txn *badger.Txn) error {
		var participant diskParticipant
		err := getJSON(txn, participantKey(roomID, userID), &participant)
		if stdErrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if participant.LeftAt != nil {
			return nil
		}
		now := time.Now().UTC()
		participant.LeftAt = &now
		return setJSON(txn, participantKey(roomID, userID), participant)
	})
}

// GetParticipants lists every participant of the room, including the ones who left.
func (p ParticipantRepository) GetParticipants(roomID domain.RoomID) ([]domain.Participant, error) {
	var participants []domain.Participant
	err := p.db.View(func(txn *badger.Txn) error {
		prefix := participantPrefix(roomID)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var participant diskParticipant
			if err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &participant)
			}); err != nil {
				return err
			}
			participants = append(participants, domain.Participant(participant))
		}
		return nil
	})
	return participants, err
}

func (p ParticipantRepository) IsCurrentParticipant(roomID domain.RoomID, userID string) (bool, error) {
	var participant diskParticipant
	err := p.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, participantKey(roomID, userID), &participant)
	})
	if stdErrors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return participant.LeftAt == nil, nil
}
