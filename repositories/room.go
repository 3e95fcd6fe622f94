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

type IRoomRepository interface {
	CreateRoom(caption string) (domain.Room, error)
	GetRoom(roomID domain.RoomID) (domain.Room, error)
}

type RoomRepository struct {
	db *badger.DB
}

func NewRoomRepository(db *badger.DB) IRoomRepository {
	return &RoomRepository{db: db}
}

type diskRoom struct {
	ID        domain.RoomID `json:"id"`
	Caption   string        `json:"caption"`
	CreatedAt time.Time     `json:"created_at"`
}

func roomKey(roomID domain.RoomID) []byte {
	return []byte("room:" + roomSegment(roomID))
}

func (r RoomRepository) CreateRoom(caption string) (domain.Room, error) {
	room := diskRoom{
		ID:        domain.RoomID(uuid.NewString()),
		Caption:   caption,
		CreatedAt: time.Now().UTC(),
	}
	err := r.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, roomKey(room.ID), room)
	})
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room(room), nil
}

func (r RoomRepository) GetRoom(roomID domain.RoomID) (domain.Room, error) {
	var room diskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, roomKey(roomID), &room)
	})
	if stdErrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Room{}, fmt.Errorf("%w: %s", errors.ErrRoomNotFound, roomID)
	}
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room(room), nil
}
