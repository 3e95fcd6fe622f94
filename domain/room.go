package domain

import "time"

// RoomID identifies a chat room. It is the path segment of the WebSocket endpoint.
type RoomID string

type Room struct {
	ID        RoomID
	Caption   string
	CreatedAt time.Time
}
