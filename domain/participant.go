// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// ConnectionID identifies one open transport session.
type ConnectionID string

// Identity is what a validated credential yields.
type Identity struct {
	UserID      string
	DisplayName string
}

type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Participant links a user to a room. A nil LeftAt means the user is a current member.
type Participant struct {
	Room     RoomID
	UserID   string
	JoinedAt time.Time
	LeftAt   *time.Time
}

func (p Participant) IsCurrent() bool {
	return p.LeftAt == nil
}
