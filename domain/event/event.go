// Package event defines what a connection receives on the wire.
// One Event is one JSON text frame.
package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Type string

const (
	SystemType  Type = "system"
	MessageType Type = "message"
	ErrorType   Type = "error"
)

const (
	WelcomeContent         = "Connected to chat"
	FailedToProcessContent = "Failed to process message"
	TransportErrorContent  = "WebSocket error occurred"
)

// Event is immutable once built. Username is only set for MessageType.
// MessageID ties a chat event to its stored message and never goes on the wire.
type Event struct {
	Type      Type      `json:"type"`
	Username  string    `json:"username,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	MessageID uuid.UUID `json:"-"`
}

func NewSystem(content string, at time.Time) Event {
	return Event{Type: SystemType, Content: content, Timestamp: at.UTC()}
}

func NewMessage(username, content string, at time.Time) Event {
	return Event{Type: MessageType, Username: username, Content: content, Timestamp: at.UTC()}
}

// NewStoredMessage builds the chat event of a persisted message.
func NewStoredMessage(username, content string, id uuid.UUID, at time.Time) Event {
	e := NewMessage(username, content, at)
	e.MessageID = id
	return e
}

func NewError(content string, at time.Time) Event {
	return Event{Type: ErrorType, Content: content, Timestamp: at.UTC()}
}

func NewDeparture(username string, at time.Time) Event {
	return NewSystem(fmt.Sprintf("User %s disconnected from chat", username), at)
}

// Encode serializes the event into the wire format.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

func Decode(data []byte) (Event, error) {
	var e Event
	err := json.Unmarshal(data, &e)
	return e, err
}
