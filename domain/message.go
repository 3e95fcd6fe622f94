// Package domain contains core concepts of the chat system.
// This file defines persisted Messages.
// Messages are immutable once the history store has assigned their id and timestamp.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a persisted chat message.
type Message struct {
	ID        uuid.UUID // unique identifier
	Room      RoomID
	SenderID  string
	Content   string
	CreatedAt time.Time
}
